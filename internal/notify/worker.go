package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonesrussell/interview-orchestrator/internal/domain"
	"github.com/jonesrussell/interview-orchestrator/internal/logger"
	"github.com/jonesrussell/interview-orchestrator/internal/metrics"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultBatchSize    = 50
	defaultBaseBackoff  = 30 * time.Second
	defaultMaxBackoff   = 30 * time.Minute
	defaultSendTimeout  = 10 * time.Second

	outcomeSent      = "sent"
	outcomeRetryable = "retryable"
	outcomeFailed    = "failed"
)

// Sender performs one delivery attempt.
type Sender interface {
	Send(ctx context.Context, channel domain.NotificationChannel, recipient, template string, params map[string]string) (string, error)
}

// Worker polls the outbox and pushes queued notifications through the
// sender. A claimed record that fails transiently stays QUEUED and comes
// back after its backoff; permanent failures and exhausted retries go to
// FAILED.
type Worker struct {
	store   Store
	sender  Sender
	metrics metrics.Recorder
	logger  logger.Logger
	tracer  trace.Tracer

	pollInterval time.Duration
	batchSize    int
	baseBackoff  time.Duration
	maxBackoff   time.Duration
	sendTimeout  time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

// WorkerConfig holds worker tuning options.
type WorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	SendTimeout  time.Duration
}

// NewWorker creates a dispatch worker.
func NewWorker(store Store, sender Sender, cfg WorkerConfig, rec metrics.Recorder, log logger.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = defaultBaseBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}

	return &Worker{
		store:        store,
		sender:       sender,
		metrics:      rec,
		logger:       log,
		tracer:       otel.Tracer("notification-worker"),
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
		baseBackoff:  cfg.BaseBackoff,
		maxBackoff:   cfg.MaxBackoff,
		sendTimeout:  cfg.SendTimeout,
		stopChan:     make(chan struct{}),
	}
}

// Start begins the polling loop.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)

	w.logger.Info("Notification worker started",
		logger.Duration("poll_interval", w.pollInterval),
		logger.Int("batch_size", w.batchSize))
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Notification worker stopped")
}

// IsRunning reports whether the worker loop is active.
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.ProcessOnce(ctx)

	for {
		select {
		case <-ticker.C:
			w.ProcessOnce(ctx)
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// ProcessOnce claims and dispatches one batch. Exported so tests and
// drain-style callers can drive the worker without the ticker.
func (w *Worker) ProcessOnce(ctx context.Context) {
	claimed, err := w.store.ClaimDue(ctx, w.batchSize, w.baseBackoff, w.maxBackoff)
	if err != nil {
		w.logger.Error("Failed to claim notifications", logger.Error(err))
		return
	}
	if len(claimed) == 0 {
		return
	}

	w.logger.Debug("Dispatching notifications", logger.Int("count", len(claimed)))
	for i := range claimed {
		w.dispatchOne(ctx, &claimed[i])
	}
}

func (w *Worker) dispatchOne(ctx context.Context, n *domain.NotificationRecord) {
	ctx, span := w.tracer.Start(ctx, "notification.dispatch",
		trace.WithAttributes(
			attribute.String("notification_id", n.ID),
			attribute.String("session_id", n.SessionID),
			attribute.String("channel", string(n.Channel)),
			attribute.Int("attempt", n.AttemptCount),
		))
	defer span.End()

	sendCtx, cancel := context.WithTimeout(ctx, w.sendTimeout)
	defer cancel()

	started := time.Now()
	messageID, err := w.sender.Send(sendCtx, n.Channel, n.Recipient, n.Template, n.Params)
	w.metrics.ProviderCall("messaging", time.Since(started))

	if err != nil {
		w.handleSendError(ctx, n, err)
		return
	}

	if markErr := w.store.MarkSent(ctx, n.ID, messageID); markErr != nil {
		// The provider accepted the message; the next claim of this
		// record will resend. Acceptable for at-least-once delivery.
		w.logger.Error("Failed to mark notification as sent",
			logger.String("notification_id", n.ID),
			logger.Error(markErr))
		return
	}

	w.metrics.NotificationAttempt(string(n.Channel), outcomeSent)
	w.logger.Info("Notification sent",
		logger.String("notification_id", n.ID),
		logger.String("session_id", n.SessionID),
		logger.String("message_id", messageID),
		logger.Int("attempt", n.AttemptCount))
}

func (w *Worker) handleSendError(ctx context.Context, n *domain.NotificationRecord, sendErr error) {
	permanent := errors.Is(sendErr, domain.ErrProviderPermanent)
	exhausted := n.RetriesExhausted()

	if permanent || exhausted {
		reason := sendErr.Error()
		if exhausted && !permanent {
			reason = fmt.Sprintf("retries exhausted after %d attempts: %s", n.AttemptCount, reason)
		}
		if markErr := w.store.MarkFailed(ctx, n.ID, reason); markErr != nil {
			w.logger.Error("Failed to mark notification as failed",
				logger.String("notification_id", n.ID),
				logger.Error(markErr))
		}
		w.metrics.NotificationAttempt(string(n.Channel), outcomeFailed)
		w.logger.Error("Notification failed permanently",
			logger.String("notification_id", n.ID),
			logger.String("session_id", n.SessionID),
			logger.Int("attempt", n.AttemptCount),
			logger.Error(sendErr))
		return
	}

	if recordErr := w.store.RecordError(ctx, n.ID, sendErr.Error()); recordErr != nil {
		w.logger.Error("Failed to record notification error",
			logger.String("notification_id", n.ID),
			logger.Error(recordErr))
	}
	w.metrics.NotificationAttempt(string(n.Channel), outcomeRetryable)
	w.logger.Warn("Notification attempt failed, will retry",
		logger.String("notification_id", n.ID),
		logger.Int("attempt", n.AttemptCount),
		logger.Int("max_attempts", n.MaxAttempts),
		logger.Error(sendErr))
}
