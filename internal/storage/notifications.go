package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/interview-orchestrator/internal/domain"
)

const notificationSelectList = `id, session_id, channel, template, recipient, params,
			status, attempt_count, max_attempts, last_error, provider_message_id,
			last_attempt_at, next_retry_at, sent_at, delivered_at, created_at, updated_at`

// NotificationRepository manages the notification outbox in PostgreSQL.
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository creates a new repository.
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Insert enqueues a QUEUED notification record.
func (r *NotificationRepository) Insert(ctx context.Context, n *domain.NotificationRecord) (*domain.NotificationRecord, error) {
	params, err := json.Marshal(n.Params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	query := `
		INSERT INTO notification_records (
			id, session_id, channel, template, recipient, params,
			status, attempt_count, max_attempts, next_retry_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, NOW(), NOW(), NOW())
		RETURNING ` + notificationSelectList

	inserted := &domain.NotificationRecord{}
	err = scanNotification(r.db.QueryRowContext(ctx, query,
		uuid.New().String(), n.SessionID, n.Channel, n.Template, n.Recipient, params,
		domain.NotificationQueued, n.MaxAttempts,
	), inserted)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return inserted, nil
}

// ClaimDue atomically claims up to limit QUEUED notifications whose retry
// time has arrived. Claiming bumps attempt_count and pushes next_retry_at out
// by an exponential backoff, capped at maxBackoff, so a crashed worker's
// claim expires on its own; SKIP LOCKED keeps concurrent workers from
// claiming the same rows.
func (r *NotificationRepository) ClaimDue(ctx context.Context, limit int, baseBackoff, maxBackoff time.Duration) ([]domain.NotificationRecord, error) {
	query := `
		UPDATE notification_records
		SET attempt_count = attempt_count + 1,
		    last_attempt_at = NOW(),
		    next_retry_at = NOW() + LEAST($2::interval * POWER(2, attempt_count), $3::interval),
		    updated_at = NOW()
		WHERE id IN (
			SELECT id FROM notification_records
			WHERE status = $1 AND next_retry_at <= NOW()
			ORDER BY next_retry_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + notificationSelectList

	rows, err := r.db.QueryContext(ctx, query,
		domain.NotificationQueued, backoffInterval(baseBackoff), backoffInterval(maxBackoff), limit)
	if err != nil {
		return nil, fmt.Errorf("claim notifications: %w", err)
	}
	defer rows.Close()

	claimed := make([]domain.NotificationRecord, 0, limit)
	for rows.Next() {
		var n domain.NotificationRecord
		if err := scanNotification(rows, &n); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		claimed = append(claimed, n)
	}
	return claimed, rows.Err()
}

// MarkSent records a successful provider send.
func (r *NotificationRepository) MarkSent(ctx context.Context, id, providerMessageID string) error {
	return r.execOneRow(ctx, `
		UPDATE notification_records
		SET status = $2, provider_message_id = $3, sent_at = NOW(),
		    last_error = NULL, updated_at = NOW()
		WHERE id = $1`,
		id, domain.NotificationSent, providerMessageID)
}

// MarkDelivered records a provider delivery receipt. Only SENT records
// advance; unknown message ids or replayed receipts yield domain.ErrNotFound.
func (r *NotificationRepository) MarkDelivered(ctx context.Context, providerMessageID string) error {
	return r.execOneRow(ctx, `
		UPDATE notification_records
		SET status = $2, delivered_at = NOW(), updated_at = NOW()
		WHERE provider_message_id = $1 AND status = $3`,
		providerMessageID, domain.NotificationDelivered, domain.NotificationSent)
}

// MarkFailed moves a record to its terminal FAILED state.
func (r *NotificationRepository) MarkFailed(ctx context.Context, id, lastError string) error {
	return r.execOneRow(ctx, `
		UPDATE notification_records
		SET status = $2, last_error = $3, updated_at = NOW()
		WHERE id = $1`,
		id, domain.NotificationFailed, lastError)
}

// RecordError stores the most recent attempt error on a still-QUEUED record.
// The retry schedule was already set at claim time.
func (r *NotificationRepository) RecordError(ctx context.Context, id, lastError string) error {
	return r.execOneRow(ctx, `
		UPDATE notification_records
		SET last_error = $2, updated_at = NOW()
		WHERE id = $1`,
		id, lastError)
}

// ListBySession returns all notification records for a session, newest first.
func (r *NotificationRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.NotificationRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+notificationSelectList+`
		 FROM notification_records
		 WHERE session_id = $1
		 ORDER BY created_at DESC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	records := []domain.NotificationRecord{}
	for rows.Next() {
		var n domain.NotificationRecord
		if err := scanNotification(rows, &n); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		records = append(records, n)
	}
	return records, rows.Err()
}

// Stats returns per-status counts across the outbox.
func (r *NotificationRepository) Stats(ctx context.Context) (*domain.NotificationStats, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM notification_records GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("query notification stats: %w", err)
	}
	defer rows.Close()

	stats := &domain.NotificationStats{}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		switch domain.NotificationStatus(status) {
		case domain.NotificationQueued:
			stats.Queued = count
		case domain.NotificationSent:
			stats.Sent = count
		case domain.NotificationDelivered:
			stats.Delivered = count
		case domain.NotificationFailed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}

func (r *NotificationRepository) execOneRow(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
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

func scanNotification(row rowScanner, n *domain.NotificationRecord) error {
	var params []byte
	err := row.Scan(
		&n.ID, &n.SessionID, &n.Channel, &n.Template, &n.Recipient, &params,
		&n.Status, &n.AttemptCount, &n.MaxAttempts, &n.LastError, &n.ProviderMessageID,
		&n.LastAttemptAt, &n.NextRetryAt, &n.SentAt, &n.DeliveredAt, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &n.Params); err != nil {
			return fmt.Errorf("unmarshal params: %w", err)
		}
	}
	return nil
}

// backoffInterval renders a duration as a PostgreSQL interval literal.
func backoffInterval(d time.Duration) string {
	return fmt.Sprintf("%d seconds", int64(d.Seconds()))
}
