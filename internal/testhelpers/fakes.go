// Package testhelpers provides in-memory fakes for the orchestrator's
// storage and provider interfaces. The fakes keep the same concurrency
// semantics as the real implementations (compare-and-set transitions,
// insert-if-absent) so race-oriented tests exercise the real contracts.
package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/interview-orchestrator/internal/domain"
)

// FakeSessionStore is an in-memory session store with CAS transitions.
type FakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.InterviewSession // by id
	byApp    map[string]string                   // application id -> session id

	// FailWith, when set, is returned by every method.
	FailWith error
}

// NewFakeSessionStore creates an empty fake store.
func NewFakeSessionStore() *FakeSessionStore {
	return &FakeSessionStore{
		sessions: make(map[string]*domain.InterviewSession),
		byApp:    make(map[string]string),
	}
}

// Seed inserts a session directly, bypassing transition checks.
func (f *FakeSessionStore) Seed(s *domain.InterviewSession) *domain.InterviewSession {
	f.mu.Lock()
	defer f.mu.Unlock()

	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now
	clone := *s
	f.sessions[s.ID] = &clone
	f.byApp[s.ApplicationID] = s.ID
	return s
}

func (f *FakeSessionStore) CreateOrGet(_ context.Context, s *domain.InterviewSession) (*domain.InterviewSession, bool, error) {
	if f.FailWith != nil {
		return nil, false, f.FailWith
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if id, ok := f.byApp[s.ApplicationID]; ok {
		return f.copyLocked(id), false, nil
	}

	now := time.Now()
	stored := *s
	stored.ID = uuid.New().String()
	stored.Status = domain.SessionScheduled
	stored.CreatedAt = now
	stored.UpdatedAt = now
	f.sessions[stored.ID] = &stored
	f.byApp[stored.ApplicationID] = stored.ID
	return f.copyLocked(stored.ID), true, nil
}

func (f *FakeSessionStore) GetByID(_ context.Context, id string) (*domain.InterviewSession, error) {
	if f.FailWith != nil {
		return nil, f.FailWith
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.sessions[id]; !ok {
		return nil, domain.ErrNotFound
	}
	return f.copyLocked(id), nil
}

func (f *FakeSessionStore) GetByRoomName(_ context.Context, roomName string) (*domain.InterviewSession, error) {
	if f.FailWith != nil {
		return nil, f.FailWith
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for id, s := range f.sessions {
		if s.RoomName == roomName {
			return f.copyLocked(id), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *FakeSessionStore) GetByApplicationID(_ context.Context, applicationID string) (*domain.InterviewSession, error) {
	if f.FailWith != nil {
		return nil, f.FailWith
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	id, ok := f.byApp[applicationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return f.copyLocked(id), nil
}

func (f *FakeSessionStore) MarkRoomCreated(_ context.Context, id string) (*domain.InterviewSession, error) {
	return f.cas(func(s *domain.InterviewSession) bool { return s.ID == id },
		domain.SessionScheduled, domain.SessionRoomCreated,
		func(s *domain.InterviewSession) {
			now := time.Now()
			s.RoomCreatedAt = &now
		})
}

func (f *FakeSessionStore) MarkStarted(_ context.Context, roomName string) (*domain.InterviewSession, error) {
	return f.cas(func(s *domain.InterviewSession) bool { return s.RoomName == roomName },
		domain.SessionRoomCreated, domain.SessionInProgress,
		func(s *domain.InterviewSession) {
			now := time.Now()
			s.StartedAt = &now
		})
}

func (f *FakeSessionStore) MarkEnded(_ context.Context, roomName, recordingURL string, durationSeconds int) (*domain.InterviewSession, error) {
	return f.cas(func(s *domain.InterviewSession) bool { return s.RoomName == roomName },
		domain.SessionInProgress, domain.SessionEnded,
		func(s *domain.InterviewSession) {
			now := time.Now()
			s.EndedAt = &now
			s.RecordingURL = &recordingURL
			s.DurationSeconds = &durationSeconds
		})
}

func (f *FakeSessionStore) MarkCancelled(_ context.Context, id, reason string) (*domain.InterviewSession, error) {
	if f.FailWith != nil {
		return nil, f.FailWith
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if s.Status != domain.SessionScheduled && s.Status != domain.SessionRoomCreated {
		return nil, domain.ErrNotFound
	}
	s.Status = domain.SessionCancelled
	s.CancelReason = &reason
	s.UpdatedAt = time.Now()
	return f.copyLocked(id), nil
}

func (f *FakeSessionStore) ListCancelledForTeardown(_ context.Context, limit int) ([]domain.InterviewSession, error) {
	if f.FailWith != nil {
		return nil, f.FailWith
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	out := []domain.InterviewSession{}
	for _, s := range f.sessions {
		if s.Status == domain.SessionCancelled && !s.RoomTornDown && len(out) < limit {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *FakeSessionStore) MarkRoomTornDown(_ context.Context, id string) error {
	if f.FailWith != nil {
		return f.FailWith
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.RoomTornDown = true
	return nil
}

func (f *FakeSessionStore) cas(match func(*domain.InterviewSession) bool, from, to domain.SessionStatus, apply func(*domain.InterviewSession)) (*domain.InterviewSession, error) {
	if f.FailWith != nil {
		return nil, f.FailWith
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for id, s := range f.sessions {
		if match(s) {
			if s.Status != from {
				return nil, domain.ErrNotFound
			}
			s.Status = to
			s.UpdatedAt = time.Now()
			apply(s)
			return f.copyLocked(id), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *FakeSessionStore) copyLocked(id string) *domain.InterviewSession {
	clone := *f.sessions[id]
	return &clone
}

// FakeRoomProvider records room operations in memory.
type FakeRoomProvider struct {
	mu       sync.Mutex
	rooms    map[string]bool
	metadata map[string]map[string]string

	CreateCalls int
	DeleteCalls int

	CreateErr error
	DeleteErr error
	TokenErr  error
}

// NewFakeRoomProvider creates a provider with no rooms.
func NewFakeRoomProvider() *FakeRoomProvider {
	return &FakeRoomProvider{
		rooms:    make(map[string]bool),
		metadata: make(map[string]map[string]string),
	}
}

func (f *FakeRoomProvider) CreateRoom(_ context.Context, roomName string, metadata map[string]string) (*domain.RoomHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.CreateCalls++
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	f.rooms[roomName] = true
	f.metadata[roomName] = metadata
	return &domain.RoomHandle{
		Name:      roomName,
		SID:       "RM_" + roomName,
		ServerURL: "wss://video.test",
	}, nil
}

func (f *FakeRoomProvider) DeleteRoom(_ context.Context, roomName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.DeleteCalls++
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	delete(f.rooms, roomName)
	delete(f.metadata, roomName)
	return nil
}

func (f *FakeRoomProvider) IssueToken(roomName, identity, displayName string) (*domain.Credential, error) {
	if f.TokenErr != nil {
		return nil, f.TokenErr
	}
	return &domain.Credential{
		Token:     fmt.Sprintf("token-%s-%s", roomName, identity),
		Identity:  identity,
		RoomName:  roomName,
		ServerURL: "wss://video.test",
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

// HasRoom reports whether a room currently exists.
func (f *FakeRoomProvider) HasRoom(roomName string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rooms[roomName]
}

// RoomMetadata returns the metadata recorded when the room was created.
func (f *FakeRoomProvider) RoomMetadata(roomName string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metadata[roomName]
}

// FakeNotifier records enqueued notifications.
type FakeNotifier struct {
	mu          sync.Mutex
	Invites     []string // session ids
	Completions []string // session ids

	EnqueueErr error
}

// NewFakeNotifier creates an empty notifier.
func NewFakeNotifier() *FakeNotifier {
	return &FakeNotifier{}
}

func (f *FakeNotifier) EnqueueInvite(_ context.Context, s *domain.InterviewSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.EnqueueErr != nil {
		return f.EnqueueErr
	}
	f.Invites = append(f.Invites, s.ID)
	return nil
}

func (f *FakeNotifier) EnqueueCompletion(_ context.Context, s *domain.InterviewSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.EnqueueErr != nil {
		return f.EnqueueErr
	}
	f.Completions = append(f.Completions, s.ID)
	return nil
}

// InviteCount returns the number of invite enqueues.
func (f *FakeNotifier) InviteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Invites)
}

// CompletionCount returns the number of completion enqueues.
func (f *FakeNotifier) CompletionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Completions)
}
