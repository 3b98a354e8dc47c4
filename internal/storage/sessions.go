// Package storage provides PostgreSQL persistence for sessions, transcript
// segments, and notification records. It contains no business logic; every
// write preserves the invariants the schema and the state machine require.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jonesrussell/interview-orchestrator/internal/domain"
)

// sessionSelectList is the column list for SELECT/RETURNING on
// interview_sessions (single source for schema changes).
const sessionSelectList = `id, application_id, job_id, candidate_id, company_id,
			room_name, status, scheduled_at, room_created_at, started_at, ended_at,
			recording_url, duration_seconds, cancel_reason, room_torn_down,
			created_at, updated_at`

// SessionRepository manages interview sessions in PostgreSQL.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new repository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// CreateOrGet inserts a new SCHEDULED session, or returns the existing one
// when a session for the same application already exists. The bool reports
// whether a row was created.
func (r *SessionRepository) CreateOrGet(ctx context.Context, s *domain.InterviewSession) (*domain.InterviewSession, bool, error) {
	query := `
		INSERT INTO interview_sessions (
			id, application_id, job_id, candidate_id, company_id,
			room_name, status, scheduled_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (application_id) DO NOTHING
		RETURNING ` + sessionSelectList

	created := &domain.InterviewSession{}
	err := scanSession(r.db.QueryRowContext(ctx, query,
		uuid.New().String(), s.ApplicationID, s.JobID, s.CandidateID, s.CompanyID,
		s.RoomName, domain.SessionScheduled, s.ScheduledAt,
	), created)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("insert session: %w", err)
	}

	// Conflict path: another caller created the session first.
	existing, err := r.GetByApplicationID(ctx, s.ApplicationID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetByID retrieves a session by its identifier.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*domain.InterviewSession, error) {
	return r.getOne(ctx, `SELECT `+sessionSelectList+` FROM interview_sessions WHERE id = $1`, id)
}

// GetByRoomName retrieves a session by the provider's natural key.
func (r *SessionRepository) GetByRoomName(ctx context.Context, roomName string) (*domain.InterviewSession, error) {
	return r.getOne(ctx, `SELECT `+sessionSelectList+` FROM interview_sessions WHERE room_name = $1`, roomName)
}

// GetByApplicationID retrieves a session by its owning application.
func (r *SessionRepository) GetByApplicationID(ctx context.Context, applicationID string) (*domain.InterviewSession, error) {
	return r.getOne(ctx, `SELECT `+sessionSelectList+` FROM interview_sessions WHERE application_id = $1`, applicationID)
}

func (r *SessionRepository) getOne(ctx context.Context, query string, arg any) (*domain.InterviewSession, error) {
	s := &domain.InterviewSession{}
	err := scanSession(r.db.QueryRowContext(ctx, query, arg), s)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	return s, nil
}

// MarkRoomCreated is the SCHEDULED -> ROOM_CREATED compare-and-set.
// It returns domain.ErrNotFound when no row matched, which means either the
// session is absent or another caller already advanced it; the caller
// re-reads to tell the two apart.
func (r *SessionRepository) MarkRoomCreated(ctx context.Context, id string) (*domain.InterviewSession, error) {
	query := `
		UPDATE interview_sessions
		SET status = $3, room_created_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + sessionSelectList
	return r.casUpdate(ctx, query, id, domain.SessionScheduled, domain.SessionRoomCreated)
}

// MarkStarted is the ROOM_CREATED -> IN_PROGRESS compare-and-set, keyed by
// room name. Exactly one of N racing callers observes a row here; the rest
// get domain.ErrNotFound and re-read.
func (r *SessionRepository) MarkStarted(ctx context.Context, roomName string) (*domain.InterviewSession, error) {
	query := `
		UPDATE interview_sessions
		SET status = $3, started_at = NOW(), updated_at = NOW()
		WHERE room_name = $1 AND status = $2
		RETURNING ` + sessionSelectList
	return r.casUpdate(ctx, query, roomName, domain.SessionRoomCreated, domain.SessionInProgress)
}

// MarkEnded is the IN_PROGRESS -> ENDED compare-and-set. Recording artifacts
// are written only here, on the first successful transition.
func (r *SessionRepository) MarkEnded(ctx context.Context, roomName, recordingURL string, durationSeconds int) (*domain.InterviewSession, error) {
	query := `
		UPDATE interview_sessions
		SET status = $3, ended_at = NOW(), recording_url = $4,
		    duration_seconds = $5, updated_at = NOW()
		WHERE room_name = $1 AND status = $2
		RETURNING ` + sessionSelectList

	s := &domain.InterviewSession{}
	err := scanSession(r.db.QueryRowContext(ctx, query,
		roomName, domain.SessionInProgress, domain.SessionEnded, recordingURL, durationSeconds,
	), s)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mark ended: %w", err)
	}
	return s, nil
}

// MarkCancelled cancels a session still in SCHEDULED or ROOM_CREATED.
func (r *SessionRepository) MarkCancelled(ctx context.Context, id, reason string) (*domain.InterviewSession, error) {
	query := `
		UPDATE interview_sessions
		SET status = $4, cancel_reason = $3, updated_at = NOW()
		WHERE id = $1 AND status = ANY($2)
		RETURNING ` + sessionSelectList

	s := &domain.InterviewSession{}
	cancellable := []string{string(domain.SessionScheduled), string(domain.SessionRoomCreated)}
	err := scanSession(r.db.QueryRowContext(ctx, query,
		id, pq.StringArray(cancellable), reason, domain.SessionCancelled,
	), s)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mark cancelled: %w", err)
	}
	return s, nil
}

// ListCancelledForTeardown returns cancelled sessions whose provider room may
// still exist, claimed with SKIP LOCKED so concurrent reconcilers never fight.
func (r *SessionRepository) ListCancelledForTeardown(ctx context.Context, limit int) ([]domain.InterviewSession, error) {
	query := `
		SELECT ` + sessionSelectList + `
		FROM interview_sessions
		WHERE status = $1 AND room_torn_down = FALSE
		ORDER BY updated_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED`

	rows, err := r.db.QueryContext(ctx, query, domain.SessionCancelled, limit)
	if err != nil {
		return nil, fmt.Errorf("list cancelled sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]domain.InterviewSession, 0, limit)
	for rows.Next() {
		var s domain.InterviewSession
		if err := scanSession(rows, &s); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// MarkRoomTornDown records that the reconciler removed the provider room.
func (r *SessionRepository) MarkRoomTornDown(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE interview_sessions SET room_torn_down = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark room torn down: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get affected rows: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *SessionRepository) casUpdate(ctx context.Context, query, key string, from, to domain.SessionStatus) (*domain.InterviewSession, error) {
	s := &domain.InterviewSession{}
	err := scanSession(r.db.QueryRowContext(ctx, query, key, from, to), s)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("transition to %s: %w", to, err)
	}
	return s, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner, s *domain.InterviewSession) error {
	return row.Scan(
		&s.ID, &s.ApplicationID, &s.JobID, &s.CandidateID, &s.CompanyID,
		&s.RoomName, &s.Status, &s.ScheduledAt, &s.RoomCreatedAt, &s.StartedAt, &s.EndedAt,
		&s.RecordingURL, &s.DurationSeconds, &s.CancelReason, &s.RoomTornDown,
		&s.CreatedAt, &s.UpdatedAt,
	)
}
