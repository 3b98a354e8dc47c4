package domain

import (
	"time"
)

// NotificationChannel is the delivery medium for a message.
type NotificationChannel string

const (
	ChannelWhatsApp NotificationChannel = "WHATSAPP"
	ChannelEmail    NotificationChannel = "EMAIL"
	ChannelSMS      NotificationChannel = "SMS"
)

// Valid reports whether the channel is one of the known values.
func (c NotificationChannel) Valid() bool {
	switch c {
	case ChannelWhatsApp, ChannelEmail, ChannelSMS:
		return true
	}
	return false
}

// NotificationStatus is the delivery state of a notification record.
// Transitions only move forward: QUEUED -> SENT -> DELIVERED, or
// QUEUED -> FAILED once retries are exhausted. FAILED and DELIVERED
// are terminal.
type NotificationStatus string

const (
	NotificationQueued    NotificationStatus = "QUEUED"
	NotificationSent      NotificationStatus = "SENT"
	NotificationDelivered NotificationStatus = "DELIVERED"
	NotificationFailed    NotificationStatus = "FAILED"
)

// Message templates used by the session manager.
const (
	TemplateInterviewInvite     = "interview_invite"
	TemplateInterviewCompletion = "interview_completion"
)

// NotificationRecord is one message owned exclusively by the dispatcher.
// AttemptCount and NextRetryAt drive the backoff sweep; the recipient is an
// opaque handle resolved by the messaging provider.
type NotificationRecord struct {
	ID        string              `db:"id"         json:"id"`
	SessionID string              `db:"session_id" json:"sessionId"`
	Channel   NotificationChannel `db:"channel"    json:"channel"`
	Template  string              `db:"template"   json:"template"`
	Recipient string              `db:"recipient"  json:"recipient"`
	Params    map[string]string   `db:"params"     json:"params,omitempty"`

	Status       NotificationStatus `db:"status"        json:"status"`
	AttemptCount int                `db:"attempt_count" json:"attemptCount"`
	MaxAttempts  int                `db:"max_attempts"  json:"maxAttempts"`
	LastError    *string            `db:"last_error"    json:"lastError,omitempty"`

	ProviderMessageID *string    `db:"provider_message_id" json:"providerMessageId,omitempty"`
	LastAttemptAt     *time.Time `db:"last_attempt_at"     json:"lastAttemptAt,omitempty"`
	NextRetryAt       *time.Time `db:"next_retry_at"       json:"nextRetryAt,omitempty"`
	SentAt            *time.Time `db:"sent_at"             json:"sentAt,omitempty"`
	DeliveredAt       *time.Time `db:"delivered_at"        json:"deliveredAt,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// RetriesExhausted reports whether the record has used up its attempts.
func (n *NotificationRecord) RetriesExhausted() bool {
	return n.AttemptCount >= n.MaxAttempts
}

// maxBackoffShift caps the exponent so the delay cannot overflow.
const maxBackoffShift = 16

// BackoffDelay computes the delay before retry number attempt (1-based):
// base doubling per attempt, capped at maxDelay. The result feeds
// NextRetryAt so the sweep never re-derives backoff logic.
func BackoffDelay(attempt int, base, maxDelay time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := attempt - 1
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	delay := base << shift
	if maxDelay > 0 && delay > maxDelay {
		return maxDelay
	}
	return delay
}

// NotificationStats summarizes dispatcher state for observability.
type NotificationStats struct {
	Queued    int64 `json:"queued"`
	Sent      int64 `json:"sent"`
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
}
