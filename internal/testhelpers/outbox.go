package testhelpers

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/interview-orchestrator/internal/domain"
)

// FakeTranscriptStore is an in-memory segment store keyed by
// (session id, sequence number).
type FakeTranscriptStore struct {
	mu       sync.Mutex
	segments map[string]map[int64]*domain.TranscriptSegment

	FailWith error
}

// NewFakeTranscriptStore creates an empty store.
func NewFakeTranscriptStore() *FakeTranscriptStore {
	return &FakeTranscriptStore{segments: make(map[string]map[int64]*domain.TranscriptSegment)}
}

func (f *FakeTranscriptStore) InsertSegment(_ context.Context, seg *domain.TranscriptSegment) (bool, error) {
	if f.FailWith != nil {
		return false, f.FailWith
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	bySeq, ok := f.segments[seg.SessionID]
	if !ok {
		bySeq = make(map[int64]*domain.TranscriptSegment)
		f.segments[seg.SessionID] = bySeq
	}
	if _, exists := bySeq[seg.SequenceNumber]; exists {
		return false, nil
	}
	clone := *seg
	clone.CreatedAt = time.Now()
	bySeq[seg.SequenceNumber] = &clone
	return true, nil
}

func (f *FakeTranscriptStore) GetSegmentContent(_ context.Context, sessionID string, sequenceNumber int64) (string, error) {
	if f.FailWith != nil {
		return "", f.FailWith
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	seg, ok := f.segments[sessionID][sequenceNumber]
	if !ok {
		return "", domain.ErrNotFound
	}
	return seg.Content, nil
}

func (f *FakeTranscriptStore) ListBySession(_ context.Context, sessionID string) ([]domain.TranscriptSegment, error) {
	if f.FailWith != nil {
		return nil, f.FailWith
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	bySeq := f.segments[sessionID]
	out := make([]domain.TranscriptSegment, 0, len(bySeq))
	var maxSeq int64 = -1
	for seq := range bySeq {
		if seq > maxSeq {
			maxSeq = seq
		}
	}
	for seq := int64(0); seq <= maxSeq; seq++ {
		if seg, ok := bySeq[seq]; ok {
			out = append(out, *seg)
		}
	}
	return out, nil
}

// FakeNotificationStore is an in-memory notification outbox.
type FakeNotificationStore struct {
	mu      sync.Mutex
	records map[string]*domain.NotificationRecord

	FailWith error
}

// NewFakeNotificationStore creates an empty outbox.
func NewFakeNotificationStore() *FakeNotificationStore {
	return &FakeNotificationStore{records: make(map[string]*domain.NotificationRecord)}
}

// Seed inserts a record directly.
func (f *FakeNotificationStore) Seed(n *domain.NotificationRecord) *domain.NotificationRecord {
	f.mu.Lock()
	defer f.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	clone := *n
	f.records[n.ID] = &clone
	return n
}

// Get returns a stored record by id.
func (f *FakeNotificationStore) Get(id string) *domain.NotificationRecord {
	f.mu.Lock()
	defer f.mu.Unlock()

	if n, ok := f.records[id]; ok {
		clone := *n
		return &clone
	}
	return nil
}

func (f *FakeNotificationStore) Insert(_ context.Context, n *domain.NotificationRecord) (*domain.NotificationRecord, error) {
	if f.FailWith != nil {
		return nil, f.FailWith
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	stored := *n
	stored.ID = uuid.New().String()
	stored.Status = domain.NotificationQueued
	stored.NextRetryAt = &now
	stored.CreatedAt = now
	stored.UpdatedAt = now
	f.records[stored.ID] = &stored
	clone := stored
	return &clone, nil
}

func (f *FakeNotificationStore) ClaimDue(_ context.Context, limit int, baseBackoff, maxBackoff time.Duration) ([]domain.NotificationRecord, error) {
	if f.FailWith != nil {
		return nil, f.FailWith
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	claimed := []domain.NotificationRecord{}
	for _, n := range f.records {
		if len(claimed) >= limit {
			break
		}
		if n.Status != domain.NotificationQueued {
			continue
		}
		if n.NextRetryAt != nil && n.NextRetryAt.After(now) {
			continue
		}
		n.AttemptCount++
		n.LastAttemptAt = &now
		next := now.Add(domain.BackoffDelay(n.AttemptCount, baseBackoff, maxBackoff))
		n.NextRetryAt = &next
		claimed = append(claimed, *n)
	}
	return claimed, nil
}

func (f *FakeNotificationStore) MarkSent(_ context.Context, id, providerMessageID string) error {
	return f.update(id, func(n *domain.NotificationRecord) {
		now := time.Now()
		n.Status = domain.NotificationSent
		n.ProviderMessageID = &providerMessageID
		n.SentAt = &now
	})
}

func (f *FakeNotificationStore) MarkDelivered(_ context.Context, providerMessageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailWith != nil {
		return f.FailWith
	}
	for _, n := range f.records {
		if n.Status == domain.NotificationSent &&
			n.ProviderMessageID != nil && *n.ProviderMessageID == providerMessageID {
			now := time.Now()
			n.Status = domain.NotificationDelivered
			n.DeliveredAt = &now
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *FakeNotificationStore) MarkFailed(_ context.Context, id, lastError string) error {
	return f.update(id, func(n *domain.NotificationRecord) {
		n.Status = domain.NotificationFailed
		n.LastError = &lastError
	})
}

func (f *FakeNotificationStore) RecordError(_ context.Context, id, lastError string) error {
	return f.update(id, func(n *domain.NotificationRecord) {
		n.LastError = &lastError
	})
}

func (f *FakeNotificationStore) ListBySession(_ context.Context, sessionID string) ([]domain.NotificationRecord, error) {
	if f.FailWith != nil {
		return nil, f.FailWith
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	out := []domain.NotificationRecord{}
	for _, n := range f.records {
		if n.SessionID == sessionID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (f *FakeNotificationStore) Stats(_ context.Context) (*domain.NotificationStats, error) {
	if f.FailWith != nil {
		return nil, f.FailWith
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	stats := &domain.NotificationStats{}
	for _, n := range f.records {
		switch n.Status {
		case domain.NotificationQueued:
			stats.Queued++
		case domain.NotificationSent:
			stats.Sent++
		case domain.NotificationDelivered:
			stats.Delivered++
		case domain.NotificationFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func (f *FakeNotificationStore) update(id string, apply func(*domain.NotificationRecord)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailWith != nil {
		return f.FailWith
	}
	n, ok := f.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	apply(n)
	n.UpdatedAt = time.Now()
	return nil
}

// FakeSender is a scripted messaging sender.
type FakeSender struct {
	mu    sync.Mutex
	Calls int

	// Errs is consumed one per call; nil entries mean success. Once
	// exhausted, calls succeed.
	Errs []error

	MessageID string
}

func (f *FakeSender) Send(_ context.Context, _ domain.NotificationChannel, _, _ string, _ map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls++
	if len(f.Errs) > 0 {
		err := f.Errs[0]
		f.Errs = f.Errs[1:]
		if err != nil {
			return "", err
		}
	}
	if f.MessageID != "" {
		return f.MessageID, nil
	}
	return "msg-fake", nil
}

// CallCount returns the number of Send calls.
func (f *FakeSender) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls
}
