// Package transcript ingests transcript segments for in-progress sessions.
// Segments are keyed by (session id, sequence number); replays of a stored
// segment are classified as duplicates when the content matches and as
// conflicts when it does not.
package transcript

import (
	"context"
	"fmt"

	"github.com/jonesrussell/interview-orchestrator/internal/domain"
	"github.com/jonesrussell/interview-orchestrator/internal/logger"
	"github.com/jonesrussell/interview-orchestrator/internal/metrics"
)

// Store is the segment persistence surface the ingestor needs.
type Store interface {
	InsertSegment(ctx context.Context, seg *domain.TranscriptSegment) (bool, error)
	GetSegmentContent(ctx context.Context, sessionID string, sequenceNumber int64) (string, error)
	ListBySession(ctx context.Context, sessionID string) ([]domain.TranscriptSegment, error)
}

// SessionReader looks up the session a batch targets.
type SessionReader interface {
	GetByID(ctx context.Context, id string) (*domain.InterviewSession, error)
}

// Ingestor validates and stores transcript segment batches.
type Ingestor struct {
	store        Store
	sessions     SessionReader
	maxBatchSize int
	metrics      metrics.Recorder
	logger       logger.Logger
}

// NewIngestor creates a transcript ingestor. maxBatchSize bounds the number
// of segments accepted per call.
func NewIngestor(store Store, sessions SessionReader, maxBatchSize int, rec metrics.Recorder, log logger.Logger) *Ingestor {
	return &Ingestor{
		store:        store,
		sessions:     sessions,
		maxBatchSize: maxBatchSize,
		metrics:      rec,
		logger:       log,
	}
}

// Ingest stores a batch of segments for a session and reports a per-segment
// result. The batch is only accepted while the session is IN_PROGRESS; each
// segment then succeeds or fails on its own.
func (i *Ingestor) Ingest(ctx context.Context, sessionID string, segments []domain.TranscriptSegment) (*domain.IngestResult, error) {
	if len(segments) == 0 {
		return nil, domain.Validationf("segments must not be empty")
	}
	if len(segments) > i.maxBatchSize {
		return nil, domain.Validationf("batch exceeds %d segments", i.maxBatchSize)
	}

	s, err := i.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status != domain.SessionInProgress {
		return nil, domain.Conflictf("session %s is %s, transcripts require %s",
			s.ID, s.Status, domain.SessionInProgress)
	}

	result := &domain.IngestResult{
		SessionID: sessionID,
		Results:   make([]domain.SegmentResult, 0, len(segments)),
	}
	for idx := range segments {
		seg := segments[idx]
		seg.SessionID = sessionID
		result.Results = append(result.Results, i.ingestOne(ctx, &seg))
	}
	return result, nil
}

func (i *Ingestor) ingestOne(ctx context.Context, seg *domain.TranscriptSegment) domain.SegmentResult {
	res := domain.SegmentResult{SequenceNumber: seg.SequenceNumber}

	if err := seg.Validate(); err != nil {
		res.Status = domain.IngestInvalid
		res.Reason = err.Error()
		i.metrics.SegmentIngested(string(res.Status))
		return res
	}

	inserted, err := i.store.InsertSegment(ctx, seg)
	if err != nil {
		i.logger.Error("Failed to insert transcript segment",
			logger.String("session_id", seg.SessionID),
			logger.Int64("sequence_number", seg.SequenceNumber),
			logger.Error(err))
		res.Status = domain.IngestFailed
		res.Reason = "storage error"
		i.metrics.SegmentIngested(string(res.Status))
		return res
	}
	if inserted {
		res.Status = domain.IngestCreated
		i.metrics.SegmentIngested(string(res.Status))
		return res
	}

	stored, err := i.store.GetSegmentContent(ctx, seg.SessionID, seg.SequenceNumber)
	if err != nil {
		res.Status = domain.IngestFailed
		res.Reason = "storage error"
		i.metrics.SegmentIngested(string(res.Status))
		return res
	}
	if stored == seg.Content {
		res.Status = domain.IngestDuplicate
	} else {
		res.Status = domain.IngestConflict
		res.Reason = fmt.Sprintf("sequence %d already stored with different content", seg.SequenceNumber)
		i.logger.Warn("Transcript segment conflict",
			logger.String("session_id", seg.SessionID),
			logger.Int64("sequence_number", seg.SequenceNumber))
	}
	i.metrics.SegmentIngested(string(res.Status))
	return res
}

// List returns all stored segments for a session in sequence order. The
// session must exist; an empty transcript is a valid response.
func (i *Ingestor) List(ctx context.Context, sessionID string) ([]domain.TranscriptSegment, error) {
	if _, err := i.sessions.GetByID(ctx, sessionID); err != nil {
		return nil, err
	}
	return i.store.ListBySession(ctx, sessionID)
}
