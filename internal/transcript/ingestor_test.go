package transcript_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jonesrussell/interview-orchestrator/internal/domain"
	"github.com/jonesrussell/interview-orchestrator/internal/logger"
	"github.com/jonesrussell/interview-orchestrator/internal/metrics"
	"github.com/jonesrussell/interview-orchestrator/internal/testhelpers"
	"github.com/jonesrussell/interview-orchestrator/internal/transcript"
)

const testBatchLimit = 10

func newIngestor(t *testing.T, status domain.SessionStatus) (*transcript.Ingestor, *domain.InterviewSession, *testhelpers.FakeTranscriptStore) {
	t.Helper()

	sessions := testhelpers.NewFakeSessionStore()
	s := sessions.Seed(&domain.InterviewSession{
		ApplicationID: "app-1",
		RoomName:      domain.DeriveRoomName("app-1"),
		Status:        status,
	})

	store := testhelpers.NewFakeTranscriptStore()
	ing := transcript.NewIngestor(store, sessions, testBatchLimit, metrics.NewNop(), logger.NewNop())
	return ing, s, store
}

func segment(seq int64, content string) domain.TranscriptSegment {
	return domain.TranscriptSegment{
		SequenceNumber: seq,
		SpeakerType:    domain.SpeakerCandidate,
		SpeakerID:      "cand-1",
		SpeakerName:    "A. Candidate",
		Content:        content,
		StartTime:      float64(seq) * 5,
		EndTime:        float64(seq)*5 + 4,
		Confidence:     0.9,
	}
}

func TestIngestor_Ingest(t *testing.T) {
	ing, s, _ := newIngestor(t, domain.SessionInProgress)

	result, err := ing.Ingest(context.Background(), s.ID, []domain.TranscriptSegment{
		segment(0, "Tell me about yourself."),
		segment(1, "Sure, I started in backend engineering."),
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(result.Results) != 2 {
		t.Fatalf("Ingest() returned %d results, want 2", len(result.Results))
	}
	for _, r := range result.Results {
		if r.Status != domain.IngestCreated {
			t.Errorf("segment %d status = %s, want %s", r.SequenceNumber, r.Status, domain.IngestCreated)
		}
	}
}

func TestIngestor_Ingest_ReplayClassification(t *testing.T) {
	ing, s, _ := newIngestor(t, domain.SessionInProgress)
	ctx := context.Background()

	if _, err := ing.Ingest(ctx, s.ID, []domain.TranscriptSegment{segment(0, "original content")}); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	result, err := ing.Ingest(ctx, s.ID, []domain.TranscriptSegment{
		segment(0, "original content"),
		segment(0, "rewritten content"),
	})
	if err != nil {
		t.Fatalf("Ingest() replay error = %v", err)
	}

	if result.Results[0].Status != domain.IngestDuplicate {
		t.Errorf("identical replay status = %s, want %s", result.Results[0].Status, domain.IngestDuplicate)
	}
	if result.Results[1].Status != domain.IngestConflict {
		t.Errorf("differing replay status = %s, want %s", result.Results[1].Status, domain.IngestConflict)
	}

	// First write wins.
	stored, _ := ing.List(ctx, s.ID)
	if len(stored) != 1 || stored[0].Content != "original content" {
		t.Errorf("stored segments = %+v, want the original content only", stored)
	}
}

func TestIngestor_Ingest_MixedBatch(t *testing.T) {
	ing, s, _ := newIngestor(t, domain.SessionInProgress)

	bad := segment(2, "")
	result, err := ing.Ingest(context.Background(), s.ID, []domain.TranscriptSegment{
		segment(0, "fine"),
		bad,
		segment(3, "also fine"),
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	wantStatuses := []domain.IngestStatus{domain.IngestCreated, domain.IngestInvalid, domain.IngestCreated}
	for i, want := range wantStatuses {
		if result.Results[i].Status != want {
			t.Errorf("segment %d status = %s, want %s", i, result.Results[i].Status, want)
		}
	}
}

func TestIngestor_Ingest_SessionGate(t *testing.T) {
	testCases := []struct {
		name    string
		status  domain.SessionStatus
		wantErr error
	}{
		{name: "scheduled rejects", status: domain.SessionScheduled, wantErr: domain.ErrConflict},
		{name: "room created rejects", status: domain.SessionRoomCreated, wantErr: domain.ErrConflict},
		{name: "ended rejects", status: domain.SessionEnded, wantErr: domain.ErrConflict},
		{name: "cancelled rejects", status: domain.SessionCancelled, wantErr: domain.ErrConflict},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ing, s, _ := newIngestor(t, tc.status)

			_, err := ing.Ingest(context.Background(), s.ID, []domain.TranscriptSegment{segment(0, "content")})
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Ingest() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestIngestor_Ingest_UnknownSession(t *testing.T) {
	ing, _, _ := newIngestor(t, domain.SessionInProgress)

	_, err := ing.Ingest(context.Background(), "missing", []domain.TranscriptSegment{segment(0, "content")})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Ingest() error = %v, want %v", err, domain.ErrNotFound)
	}
}

func TestIngestor_Ingest_BatchLimits(t *testing.T) {
	ing, s, _ := newIngestor(t, domain.SessionInProgress)
	ctx := context.Background()

	if _, err := ing.Ingest(ctx, s.ID, nil); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("empty batch error = %v, want %v", err, domain.ErrValidation)
	}

	oversized := make([]domain.TranscriptSegment, testBatchLimit+1)
	for i := range oversized {
		oversized[i] = segment(int64(i), "content")
	}
	if _, err := ing.Ingest(ctx, s.ID, oversized); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("oversized batch error = %v, want %v", err, domain.ErrValidation)
	}
}

func TestIngestor_List_GapsPreserved(t *testing.T) {
	ing, s, _ := newIngestor(t, domain.SessionInProgress)
	ctx := context.Background()

	if _, err := ing.Ingest(ctx, s.ID, []domain.TranscriptSegment{
		segment(5, "later"),
		segment(1, "earlier"),
	}); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	stored, err := ing.List(ctx, s.ID)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("List() returned %d segments, want 2", len(stored))
	}
	if stored[0].SequenceNumber != 1 || stored[1].SequenceNumber != 5 {
		t.Errorf("List() order = %d, %d; want 1, 5",
			stored[0].SequenceNumber, stored[1].SequenceNumber)
	}
}
