package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// SessionStatus represents the lifecycle state of an interview session.
type SessionStatus string

const (
	SessionScheduled   SessionStatus = "SCHEDULED"
	SessionRoomCreated SessionStatus = "ROOM_CREATED"
	SessionInProgress  SessionStatus = "IN_PROGRESS"
	SessionEnded       SessionStatus = "ENDED"
	SessionCancelled   SessionStatus = "CANCELLED"
)

// transitions is the single source of truth for the session state machine.
// ENDED and CANCELLED are terminal.
var transitions = map[SessionStatus][]SessionStatus{
	SessionScheduled:   {SessionRoomCreated, SessionCancelled},
	SessionRoomCreated: {SessionInProgress, SessionCancelled},
	SessionInProgress:  {SessionEnded},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to SessionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition exists out of the status.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionEnded || s == SessionCancelled
}

// Valid reports whether the status is one of the known lifecycle states.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionScheduled, SessionRoomCreated, SessionInProgress, SessionEnded, SessionCancelled:
		return true
	}
	return false
}

// InterviewSession represents one scheduled-to-completed interview.
// The orchestrator owns Status and the timestamps; the application, job,
// candidate, and company references are opaque and owned by the CRUD layer.
type InterviewSession struct {
	ID            string        `db:"id"             json:"sessionId"`
	ApplicationID string        `db:"application_id" json:"applicationId"`
	JobID         string        `db:"job_id"         json:"jobId"`
	CandidateID   string        `db:"candidate_id"   json:"candidateId"`
	CompanyID     string        `db:"company_id"     json:"companyId"`
	RoomName      string        `db:"room_name"      json:"roomName"`
	Status        SessionStatus `db:"status"         json:"status"`

	ScheduledAt   time.Time  `db:"scheduled_at"    json:"scheduledAt"`
	RoomCreatedAt *time.Time `db:"room_created_at" json:"roomCreatedAt,omitempty"`
	StartedAt     *time.Time `db:"started_at"      json:"startedAt,omitempty"`
	EndedAt       *time.Time `db:"ended_at"        json:"endedAt,omitempty"`

	RecordingURL    *string `db:"recording_url"    json:"recordingUrl,omitempty"`
	DurationSeconds *int    `db:"duration_seconds" json:"durationSeconds,omitempty"`
	CancelReason    *string `db:"cancel_reason"    json:"cancelReason,omitempty"`

	// RoomTornDown tracks reconciliation of rooms for cancelled sessions.
	RoomTornDown bool `db:"room_torn_down" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// roomNameLen is the number of hex digits taken from the digest. Room names
// must stay short enough for provider display while avoiding collisions.
const roomNameLen = 16

// DeriveRoomName deterministically derives the provider room name from the
// application reference, making room provisioning idempotent per application.
func DeriveRoomName(applicationID string) string {
	sum := sha256.Sum256([]byte("interview:" + applicationID))
	return "interview-" + hex.EncodeToString(sum[:])[:roomNameLen]
}

// RoomHandle is a provisioned room as reported by the video provider.
type RoomHandle struct {
	Name      string `json:"name"`
	SID       string `json:"sid"`
	ServerURL string `json:"serverUrl"`
}

// Credential is a scoped, time-bounded join token for one participant in
// one room. Credentials are never persisted.
type Credential struct {
	Token     string    `json:"joinToken"`
	Identity  string    `json:"identity"`
	RoomName  string    `json:"roomName"`
	ServerURL string    `json:"serverUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}
