package session

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonesrussell/interview-orchestrator/internal/domain"
	"github.com/jonesrussell/interview-orchestrator/internal/logger"
)

const (
	defaultReconcileInterval = time.Minute
	defaultTeardownBatch     = 20
	teardownTimeout          = 15 * time.Second
)

// Reconciler sweeps cancelled sessions whose provider room was never torn
// down and removes it. Teardown after cancellation is best effort at request
// time; this loop guarantees it eventually happens.
type Reconciler struct {
	store  Store
	rooms  RoomProvider
	logger logger.Logger
	tracer trace.Tracer

	interval  time.Duration
	batchSize int

	stopChan chan struct{}
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

// NewReconciler creates a room-teardown reconciler.
func NewReconciler(store Store, rooms RoomProvider, interval time.Duration, log logger.Logger) *Reconciler {
	if interval <= 0 {
		interval = defaultReconcileInterval
	}

	return &Reconciler{
		store:     store,
		rooms:     rooms,
		logger:    log,
		tracer:    otel.Tracer("session-reconciler"),
		interval:  interval,
		batchSize: defaultTeardownBatch,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the reconcile loop.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(ctx)

	r.logger.Info("Session reconciler started",
		logger.Duration("interval", r.interval))
}

// Stop gracefully stops the reconciler.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	close(r.stopChan)
	r.wg.Wait()
	r.logger.Info("Session reconciler stopped")
}

func (r *Reconciler) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.sweepOnce(ctx)

	for {
		select {
		case <-ticker.C:
			r.sweepOnce(ctx)
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *Reconciler) sweepOnce(ctx context.Context) {
	sessions, err := r.store.ListCancelledForTeardown(ctx, r.batchSize)
	if err != nil {
		r.logger.Error("Failed to list sessions pending teardown", logger.Error(err))
		return
	}
	if len(sessions) == 0 {
		return
	}

	r.logger.Debug("Tearing down rooms for cancelled sessions",
		logger.Int("count", len(sessions)))

	for i := range sessions {
		r.teardownOne(ctx, &sessions[i])
	}
}

func (r *Reconciler) teardownOne(ctx context.Context, s *domain.InterviewSession) {
	ctx, span := r.tracer.Start(ctx, "session.teardown_room",
		trace.WithAttributes(
			attribute.String("session_id", s.ID),
			attribute.String("room_name", s.RoomName),
		))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, teardownTimeout)
	defer cancel()

	if err := r.rooms.DeleteRoom(callCtx, s.RoomName); err != nil {
		// Leave the flag unset; the next sweep retries.
		r.logger.Error("Room teardown failed",
			logger.String("session_id", s.ID),
			logger.String("room_name", s.RoomName),
			logger.Error(err))
		return
	}

	if err := r.store.MarkRoomTornDown(ctx, s.ID); err != nil {
		r.logger.Error("Failed to record room teardown",
			logger.String("session_id", s.ID),
			logger.Error(err))
		return
	}

	r.logger.Info("Room torn down",
		logger.String("session_id", s.ID),
		logger.String("room_name", s.RoomName))
}
