// Package notify implements the notification outbox: lifecycle events
// enqueue durable records, a polling worker pushes them through the
// messaging provider with retry and backoff, and provider receipts move
// them to DELIVERED.
package notify

import (
	"context"
	"time"

	"github.com/jonesrussell/interview-orchestrator/internal/domain"
	"github.com/jonesrussell/interview-orchestrator/internal/logger"
)

// Store is the outbox persistence surface.
type Store interface {
	Insert(ctx context.Context, n *domain.NotificationRecord) (*domain.NotificationRecord, error)
	ClaimDue(ctx context.Context, limit int, baseBackoff, maxBackoff time.Duration) ([]domain.NotificationRecord, error)
	MarkSent(ctx context.Context, id, providerMessageID string) error
	MarkDelivered(ctx context.Context, providerMessageID string) error
	MarkFailed(ctx context.Context, id, lastError string) error
	RecordError(ctx context.Context, id, lastError string) error
	ListBySession(ctx context.Context, sessionID string) ([]domain.NotificationRecord, error)
	Stats(ctx context.Context) (*domain.NotificationStats, error)
}

// Dispatcher enqueues notifications and handles delivery receipts.
type Dispatcher struct {
	store       Store
	maxAttempts int
	logger      logger.Logger
}

// NewDispatcher creates a dispatcher. maxAttempts is stamped onto every
// enqueued record.
func NewDispatcher(store Store, maxAttempts int, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		store:       store,
		maxAttempts: maxAttempts,
		logger:      log,
	}
}

// EnqueueInvite queues the interview invitation for a newly created session.
func (d *Dispatcher) EnqueueInvite(ctx context.Context, s *domain.InterviewSession) error {
	return d.enqueue(ctx, s, domain.TemplateInterviewInvite, map[string]string{
		"room_name":    s.RoomName,
		"scheduled_at": s.ScheduledAt.Format(time.RFC3339),
	})
}

// EnqueueCompletion queues the post-interview notification for an ended
// session.
func (d *Dispatcher) EnqueueCompletion(ctx context.Context, s *domain.InterviewSession) error {
	return d.enqueue(ctx, s, domain.TemplateInterviewCompletion, map[string]string{
		"room_name": s.RoomName,
	})
}

func (d *Dispatcher) enqueue(ctx context.Context, s *domain.InterviewSession, template string, params map[string]string) error {
	record, err := d.store.Insert(ctx, &domain.NotificationRecord{
		SessionID:   s.ID,
		Channel:     domain.ChannelWhatsApp,
		Template:    template,
		Recipient:   s.CandidateID,
		Params:      params,
		MaxAttempts: d.maxAttempts,
	})
	if err != nil {
		return err
	}

	d.logger.Debug("Notification enqueued",
		logger.String("notification_id", record.ID),
		logger.String("session_id", s.ID),
		logger.String("template", template))
	return nil
}

// HandleDeliveryReceipt marks the notification with this provider message id
// as delivered. Unknown ids and replayed receipts return
// domain.ErrNotFound.
func (d *Dispatcher) HandleDeliveryReceipt(ctx context.Context, providerMessageID string) error {
	if providerMessageID == "" {
		return domain.Validationf("message_id is required")
	}
	return d.store.MarkDelivered(ctx, providerMessageID)
}

// ListBySession returns the notification records for a session.
func (d *Dispatcher) ListBySession(ctx context.Context, sessionID string) ([]domain.NotificationRecord, error) {
	return d.store.ListBySession(ctx, sessionID)
}

// Stats returns per-status outbox counts.
func (d *Dispatcher) Stats(ctx context.Context) (*domain.NotificationStats, error) {
	return d.store.Stats(ctx)
}
