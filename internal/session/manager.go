// Package session orchestrates the interview session lifecycle: creation,
// room provisioning, the start/end transitions, and cancellation. All status
// changes go through compare-and-set updates so concurrent callers converge
// on a single winner.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/interview-orchestrator/internal/domain"
	"github.com/jonesrussell/interview-orchestrator/internal/logger"
	"github.com/jonesrussell/interview-orchestrator/internal/metrics"
)

// Store is the session persistence surface the manager needs.
type Store interface {
	CreateOrGet(ctx context.Context, s *domain.InterviewSession) (*domain.InterviewSession, bool, error)
	GetByID(ctx context.Context, id string) (*domain.InterviewSession, error)
	GetByRoomName(ctx context.Context, roomName string) (*domain.InterviewSession, error)
	MarkRoomCreated(ctx context.Context, id string) (*domain.InterviewSession, error)
	MarkStarted(ctx context.Context, roomName string) (*domain.InterviewSession, error)
	MarkEnded(ctx context.Context, roomName, recordingURL string, durationSeconds int) (*domain.InterviewSession, error)
	MarkCancelled(ctx context.Context, id, reason string) (*domain.InterviewSession, error)
	ListCancelledForTeardown(ctx context.Context, limit int) ([]domain.InterviewSession, error)
	MarkRoomTornDown(ctx context.Context, id string) error
}

// RoomProvider provisions and removes rooms and mints join credentials.
type RoomProvider interface {
	CreateRoom(ctx context.Context, roomName string, metadata map[string]string) (*domain.RoomHandle, error)
	DeleteRoom(ctx context.Context, roomName string) error
	IssueToken(roomName, identity, displayName string) (*domain.Credential, error)
}

// Notifier enqueues lifecycle notifications. Enqueue failures never fail the
// session operation that triggered them.
type Notifier interface {
	EnqueueInvite(ctx context.Context, s *domain.InterviewSession) error
	EnqueueCompletion(ctx context.Context, s *domain.InterviewSession) error
}

// CreateRequest carries the fields needed to schedule a session.
type CreateRequest struct {
	ApplicationID string    `json:"applicationId"`
	JobID         string    `json:"jobId"`
	CandidateID   string    `json:"candidateId"`
	CompanyID     string    `json:"companyId"`
	ScheduledAt   time.Time `json:"scheduledAt"`
}

// Validate checks required fields.
func (r *CreateRequest) Validate() error {
	if r.ApplicationID == "" {
		return domain.Validationf("application_id is required")
	}
	if r.JobID == "" {
		return domain.Validationf("job_id is required")
	}
	if r.CandidateID == "" {
		return domain.Validationf("candidate_id is required")
	}
	if r.CompanyID == "" {
		return domain.Validationf("company_id is required")
	}
	if r.ScheduledAt.IsZero() {
		return domain.Validationf("scheduled_at is required")
	}
	return nil
}

// EndRequest carries the artifacts recorded when a session ends.
type EndRequest struct {
	RecordingURL    string `json:"recordingUrl"`
	DurationSeconds int    `json:"durationSeconds"`
}

// Manager implements the session lifecycle.
type Manager struct {
	store    Store
	rooms    RoomProvider
	notifier Notifier
	metrics  metrics.Recorder
	logger   logger.Logger
}

// NewManager creates a session manager.
func NewManager(store Store, rooms RoomProvider, notifier Notifier, rec metrics.Recorder, log logger.Logger) *Manager {
	return &Manager{
		store:    store,
		rooms:    rooms,
		notifier: notifier,
		metrics:  rec,
		logger:   log,
	}
}

// Create schedules a session for an application. Repeat calls with the same
// application id return the existing session unchanged. The bool reports
// whether a new session was created.
func (m *Manager) Create(ctx context.Context, req *CreateRequest) (*domain.InterviewSession, bool, error) {
	if err := req.Validate(); err != nil {
		return nil, false, err
	}

	candidate := &domain.InterviewSession{
		ApplicationID: req.ApplicationID,
		JobID:         req.JobID,
		CandidateID:   req.CandidateID,
		CompanyID:     req.CompanyID,
		RoomName:      domain.DeriveRoomName(req.ApplicationID),
		ScheduledAt:   req.ScheduledAt,
	}

	s, created, err := m.store.CreateOrGet(ctx, candidate)
	if err != nil {
		return nil, false, err
	}
	if !created {
		m.logger.Debug("Session already exists for application",
			logger.String("application_id", req.ApplicationID),
			logger.String("session_id", s.ID),
		)
		return s, false, nil
	}

	m.metrics.SessionTransition(string(domain.SessionScheduled))
	m.logger.Info("Session created",
		logger.String("session_id", s.ID),
		logger.String("application_id", s.ApplicationID),
		logger.String("room_name", s.RoomName),
	)

	return s, true, nil
}

// Get returns a session by id.
func (m *Manager) Get(ctx context.Context, id string) (*domain.InterviewSession, error) {
	return m.store.GetByID(ctx, id)
}

// Provision ensures the provider room exists and returns the session plus a
// fresh join credential for the given participant. Keyed by room name, which
// is what participants hold. Re-provisioning an already-provisioned or
// in-progress session skips the provider call and just mints a new
// credential, which is how reconnects work.
func (m *Manager) Provision(ctx context.Context, roomName, identity, displayName string) (*domain.InterviewSession, *domain.Credential, error) {
	if identity == "" {
		return nil, nil, domain.Validationf("identity is required")
	}

	s, err := m.store.GetByRoomName(ctx, roomName)
	if err != nil {
		return nil, nil, err
	}

	switch s.Status {
	case domain.SessionScheduled:
		s, err = m.provisionRoom(ctx, s)
		if err != nil {
			return nil, nil, err
		}
	case domain.SessionRoomCreated, domain.SessionInProgress:
		// Room exists; fall through to token issuance.
	default:
		return nil, nil, domain.Conflictf("session %s is %s", s.ID, s.Status)
	}

	cred, err := m.rooms.IssueToken(s.RoomName, identity, displayName)
	if err != nil {
		return nil, nil, fmt.Errorf("issue token: %w", err)
	}
	return s, cred, nil
}

func (m *Manager) provisionRoom(ctx context.Context, s *domain.InterviewSession) (*domain.InterviewSession, error) {
	if _, err := m.rooms.CreateRoom(ctx, s.RoomName, roomMetadata(s)); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	updated, err := m.store.MarkRoomCreated(ctx, s.ID)
	if err == nil {
		m.metrics.SessionTransition(string(domain.SessionRoomCreated))
		m.logger.Info("Room provisioned",
			logger.String("session_id", updated.ID),
			logger.String("room_name", updated.RoomName),
		)

		// Only the transition winner queues the invite, so exactly one is
		// enqueued per session.
		if notifyErr := m.notifier.EnqueueInvite(ctx, updated); notifyErr != nil {
			m.logger.Error("Failed to enqueue invite notification",
				logger.String("session_id", updated.ID),
				logger.Error(notifyErr),
			)
		}
		return updated, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	// Lost the transition race. Re-read to see where the session went;
	// another provisioner finishing first is fine, anything else is not.
	current, readErr := m.store.GetByID(ctx, s.ID)
	if readErr != nil {
		return nil, readErr
	}
	switch current.Status {
	case domain.SessionRoomCreated, domain.SessionInProgress:
		return current, nil
	default:
		return nil, domain.Conflictf("session %s is %s", current.ID, current.Status)
	}
}

// roomMetadata is the display bag attached to the provider room; clients
// render it in the lobby and it travels opaquely through the provider.
func roomMetadata(s *domain.InterviewSession) map[string]string {
	return map[string]string{
		"applicationId": s.ApplicationID,
		"jobId":         s.JobID,
		"candidateId":   s.CandidateID,
		"companyId":     s.CompanyID,
	}
}

// Start marks a session in progress, keyed by room name because the event
// arrives from the video provider. Duplicate start events are idempotent.
func (m *Manager) Start(ctx context.Context, roomName string) (*domain.InterviewSession, error) {
	s, err := m.store.MarkStarted(ctx, roomName)
	if err == nil {
		m.metrics.SessionTransition(string(domain.SessionInProgress))
		m.logger.Info("Session started",
			logger.String("session_id", s.ID),
			logger.String("room_name", roomName),
		)
		return s, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	current, readErr := m.store.GetByRoomName(ctx, roomName)
	if readErr != nil {
		return nil, readErr
	}
	if current.Status == domain.SessionInProgress {
		// Someone else won the race; same outcome.
		return current, nil
	}
	return nil, domain.Conflictf("cannot start session in status %s", current.Status)
}

// End marks a session ended and records its artifacts. The first End wins;
// an identical replay is idempotent, a replay with different artifacts is a
// conflict.
func (m *Manager) End(ctx context.Context, roomName string, req *EndRequest) (*domain.InterviewSession, error) {
	if req.DurationSeconds < 0 {
		return nil, domain.Validationf("duration_seconds must be non-negative")
	}

	s, err := m.store.MarkEnded(ctx, roomName, req.RecordingURL, req.DurationSeconds)
	if err == nil {
		m.metrics.SessionTransition(string(domain.SessionEnded))
		m.logger.Info("Session ended",
			logger.String("session_id", s.ID),
			logger.String("room_name", roomName),
			logger.Int("duration_seconds", req.DurationSeconds),
		)

		if notifyErr := m.notifier.EnqueueCompletion(ctx, s); notifyErr != nil {
			m.logger.Error("Failed to enqueue completion notification",
				logger.String("session_id", s.ID),
				logger.Error(notifyErr),
			)
		}
		return s, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	current, readErr := m.store.GetByRoomName(ctx, roomName)
	if readErr != nil {
		return nil, readErr
	}
	if current.Status == domain.SessionEnded {
		if sameArtifacts(current, req) {
			return current, nil
		}
		return nil, domain.Conflictf("session %s already ended with different artifacts", current.ID)
	}
	return nil, domain.Conflictf("cannot end session in status %s", current.Status)
}

func sameArtifacts(s *domain.InterviewSession, req *EndRequest) bool {
	storedURL := ""
	if s.RecordingURL != nil {
		storedURL = *s.RecordingURL
	}
	storedDuration := 0
	if s.DurationSeconds != nil {
		storedDuration = *s.DurationSeconds
	}
	return storedURL == req.RecordingURL && storedDuration == req.DurationSeconds
}

// Cancel cancels a session that has not started. Cancelling an
// already-cancelled session is idempotent.
func (m *Manager) Cancel(ctx context.Context, id, reason string) (*domain.InterviewSession, error) {
	s, err := m.store.MarkCancelled(ctx, id, reason)
	if err == nil {
		m.metrics.SessionTransition(string(domain.SessionCancelled))
		m.logger.Info("Session cancelled",
			logger.String("session_id", s.ID),
			logger.String("reason", reason),
		)
		return s, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	current, readErr := m.store.GetByID(ctx, id)
	if readErr != nil {
		return nil, readErr
	}
	if current.Status == domain.SessionCancelled {
		return current, nil
	}
	return nil, domain.Conflictf("cannot cancel session in status %s", current.Status)
}
