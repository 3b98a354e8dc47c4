package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonesrussell/interview-orchestrator/internal/domain"
	"github.com/jonesrussell/interview-orchestrator/internal/logger"
	"github.com/jonesrussell/interview-orchestrator/internal/metrics"
	"github.com/jonesrussell/interview-orchestrator/internal/session"
	"github.com/jonesrussell/interview-orchestrator/internal/testhelpers"
)

type fixture struct {
	store    *testhelpers.FakeSessionStore
	rooms    *testhelpers.FakeRoomProvider
	notifier *testhelpers.FakeNotifier
	manager  *session.Manager
}

func newFixture() *fixture {
	store := testhelpers.NewFakeSessionStore()
	rooms := testhelpers.NewFakeRoomProvider()
	notifier := testhelpers.NewFakeNotifier()
	manager := session.NewManager(store, rooms, notifier, metrics.NewNop(), logger.NewNop())
	return &fixture{store: store, rooms: rooms, notifier: notifier, manager: manager}
}

func validCreateRequest() *session.CreateRequest {
	return &session.CreateRequest{
		ApplicationID: "app-1",
		JobID:         "job-1",
		CandidateID:   "cand-1",
		CompanyID:     "comp-1",
		ScheduledAt:   time.Now().Add(24 * time.Hour),
	}
}

func TestManager_Create(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	s, created, err := f.manager.Create(ctx, validCreateRequest())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !created {
		t.Error("Create() created = false, want true")
	}
	if s.Status != domain.SessionScheduled {
		t.Errorf("Create() status = %s, want %s", s.Status, domain.SessionScheduled)
	}
	if s.RoomName != domain.DeriveRoomName("app-1") {
		t.Errorf("Create() room name = %s", s.RoomName)
	}
	if f.notifier.InviteCount() != 0 {
		t.Errorf("invite count = %d, want 0 before provisioning", f.notifier.InviteCount())
	}
}

func TestManager_Create_Idempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, _, err := f.manager.Create(ctx, validCreateRequest())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	second, created, err := f.manager.Create(ctx, validCreateRequest())
	if err != nil {
		t.Fatalf("Create() second call error = %v", err)
	}
	if created {
		t.Error("Create() second call created = true, want false")
	}
	if second.ID != first.ID {
		t.Errorf("Create() returned different session: %s vs %s", second.ID, first.ID)
	}
}

func TestManager_Create_Validation(t *testing.T) {
	f := newFixture()

	req := validCreateRequest()
	req.ApplicationID = ""

	_, _, err := f.manager.Create(context.Background(), req)
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("Create() error = %v, want %v", err, domain.ErrValidation)
	}
}

func TestManager_Provision_NotifierFailureDoesNotFailProvision(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.notifier.EnqueueErr = errors.New("outbox unavailable")

	s, _, err := f.manager.Create(ctx, validCreateRequest())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, cred, err := f.manager.Provision(ctx, s.RoomName, "candidate:cand-1", "A. Candidate")
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if got.Status != domain.SessionRoomCreated || cred == nil {
		t.Errorf("Provision() = %s, cred %v", got.Status, cred)
	}
}

func TestManager_Provision(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	s, _, _ := f.manager.Create(ctx, validCreateRequest())

	got, cred, err := f.manager.Provision(ctx, s.RoomName, "candidate:cand-1", "A. Candidate")
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if got.Status != domain.SessionRoomCreated {
		t.Errorf("Provision() status = %s, want %s", got.Status, domain.SessionRoomCreated)
	}
	if cred.RoomName != s.RoomName {
		t.Errorf("Provision() credential room = %s, want %s", cred.RoomName, s.RoomName)
	}
	if !f.rooms.HasRoom(s.RoomName) {
		t.Error("Provision() did not create the provider room")
	}
	if f.notifier.InviteCount() != 1 {
		t.Errorf("invite count = %d, want 1", f.notifier.InviteCount())
	}

	meta := f.rooms.RoomMetadata(s.RoomName)
	if meta["applicationId"] != "app-1" || meta["jobId"] != "job-1" ||
		meta["candidateId"] != "cand-1" || meta["companyId"] != "comp-1" {
		t.Errorf("room metadata = %v", meta)
	}
}

func TestManager_Provision_ReconnectSkipsProviderCall(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	s, _, _ := f.manager.Create(ctx, validCreateRequest())
	if _, _, err := f.manager.Provision(ctx, s.RoomName, "candidate:cand-1", "A. Candidate"); err != nil {
		t.Fatalf("first Provision() error = %v", err)
	}

	_, cred, err := f.manager.Provision(ctx, s.RoomName, "candidate:cand-1", "A. Candidate")
	if err != nil {
		t.Fatalf("second Provision() error = %v", err)
	}
	if cred == nil {
		t.Fatal("second Provision() returned no credential")
	}
	if f.rooms.CreateCalls != 1 {
		t.Errorf("provider create calls = %d, want 1", f.rooms.CreateCalls)
	}
	if f.notifier.InviteCount() != 1 {
		t.Errorf("invite count = %d, want 1 (no invite on reconnect)", f.notifier.InviteCount())
	}
}

func TestManager_Provision_TerminalStatusConflicts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	s := f.store.Seed(&domain.InterviewSession{
		ApplicationID: "app-ended",
		RoomName:      domain.DeriveRoomName("app-ended"),
		Status:        domain.SessionEnded,
	})

	_, _, err := f.manager.Provision(ctx, s.RoomName, "candidate:cand-1", "A. Candidate")
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("Provision() error = %v, want %v", err, domain.ErrConflict)
	}
}

func TestManager_Provision_ProviderFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	s, _, _ := f.manager.Create(ctx, validCreateRequest())
	f.rooms.CreateErr = domain.ErrProviderTransient

	_, _, err := f.manager.Provision(ctx, s.RoomName, "candidate:cand-1", "A. Candidate")
	if !errors.Is(err, domain.ErrProviderTransient) {
		t.Errorf("Provision() error = %v, want %v", err, domain.ErrProviderTransient)
	}

	// Session stays SCHEDULED; a later provision can retry.
	current, _ := f.store.GetByID(ctx, s.ID)
	if current.Status != domain.SessionScheduled {
		t.Errorf("status after failed provision = %s, want %s", current.Status, domain.SessionScheduled)
	}
}

func TestManager_Start_Idempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	s, _, _ := f.manager.Create(ctx, validCreateRequest())
	if _, _, err := f.manager.Provision(ctx, s.RoomName, "candidate:cand-1", "A. Candidate"); err != nil {
		t.Fatalf("Provision() error = %v", err)
	}

	first, err := f.manager.Start(ctx, s.RoomName)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if first.Status != domain.SessionInProgress {
		t.Errorf("Start() status = %s", first.Status)
	}

	second, err := f.manager.Start(ctx, s.RoomName)
	if err != nil {
		t.Fatalf("Start() replay error = %v", err)
	}
	if second.Status != domain.SessionInProgress {
		t.Errorf("Start() replay status = %s", second.Status)
	}
}

func TestManager_Start_ConcurrentCallersConverge(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	s, _, _ := f.manager.Create(ctx, validCreateRequest())
	if _, _, err := f.manager.Provision(ctx, s.RoomName, "candidate:cand-1", "A. Candidate"); err != nil {
		t.Fatalf("Provision() error = %v", err)
	}

	const callers = 16
	var wg sync.WaitGroup
	results := make([]*domain.InterviewSession, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.manager.Start(ctx, s.RoomName)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d: Start() error = %v", i, err)
		}
	}

	// Every caller sees the same start time: one writer won, the rest
	// converged on its result.
	if results[0] == nil || results[0].StartedAt == nil {
		t.Fatal("caller 0 got no started session")
	}
	want := *results[0].StartedAt
	for i, got := range results {
		if got == nil || got.StartedAt == nil {
			t.Errorf("caller %d: missing started_at", i)
			continue
		}
		if !got.StartedAt.Equal(want) {
			t.Errorf("caller %d: started_at = %v, want %v", i, got.StartedAt, want)
		}
	}

	current, _ := f.store.GetByRoomName(ctx, s.RoomName)
	if current.Status != domain.SessionInProgress {
		t.Errorf("final status = %s, want %s", current.Status, domain.SessionInProgress)
	}
}

func TestManager_Start_WrongStatusConflicts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	s, _, _ := f.manager.Create(ctx, validCreateRequest())

	// Still SCHEDULED; room was never provisioned.
	_, err := f.manager.Start(ctx, s.RoomName)
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("Start() error = %v, want %v", err, domain.ErrConflict)
	}
}

func inProgressSession(t *testing.T, f *fixture) *domain.InterviewSession {
	t.Helper()
	ctx := context.Background()

	s, _, err := f.manager.Create(ctx, validCreateRequest())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, _, err := f.manager.Provision(ctx, s.RoomName, "candidate:cand-1", "A. Candidate"); err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if _, err := f.manager.Start(ctx, s.RoomName); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return s
}

func TestManager_End(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	s := inProgressSession(t, f)

	req := &session.EndRequest{RecordingURL: "https://cdn.test/rec.mp4", DurationSeconds: 1800}

	ended, err := f.manager.End(ctx, s.RoomName, req)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.Status != domain.SessionEnded {
		t.Errorf("End() status = %s", ended.Status)
	}
	if ended.RecordingURL == nil || *ended.RecordingURL != req.RecordingURL {
		t.Errorf("End() recording url = %v", ended.RecordingURL)
	}
	if f.notifier.CompletionCount() != 1 {
		t.Errorf("completion count = %d, want 1", f.notifier.CompletionCount())
	}
}

func TestManager_End_IdenticalReplayIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	s := inProgressSession(t, f)

	req := &session.EndRequest{RecordingURL: "https://cdn.test/rec.mp4", DurationSeconds: 1800}
	if _, err := f.manager.End(ctx, s.RoomName, req); err != nil {
		t.Fatalf("End() error = %v", err)
	}

	replayed, err := f.manager.End(ctx, s.RoomName, req)
	if err != nil {
		t.Fatalf("End() replay error = %v", err)
	}
	if replayed.Status != domain.SessionEnded {
		t.Errorf("End() replay status = %s", replayed.Status)
	}
	if f.notifier.CompletionCount() != 1 {
		t.Errorf("completion count = %d, want 1 (no enqueue on replay)", f.notifier.CompletionCount())
	}
}

func TestManager_End_DifferentArtifactsConflict(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	s := inProgressSession(t, f)

	if _, err := f.manager.End(ctx, s.RoomName,
		&session.EndRequest{RecordingURL: "https://cdn.test/rec.mp4", DurationSeconds: 1800}); err != nil {
		t.Fatalf("End() error = %v", err)
	}

	_, err := f.manager.End(ctx, s.RoomName,
		&session.EndRequest{RecordingURL: "https://cdn.test/other.mp4", DurationSeconds: 1750})
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("End() error = %v, want %v", err, domain.ErrConflict)
	}

	// First writer's artifacts survive.
	current, _ := f.store.GetByRoomName(ctx, s.RoomName)
	if current.RecordingURL == nil || *current.RecordingURL != "https://cdn.test/rec.mp4" {
		t.Errorf("recording url = %v, want first writer's", current.RecordingURL)
	}
}

func TestManager_Cancel(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	testCases := []struct {
		name    string
		status  domain.SessionStatus
		wantErr error
	}{
		{name: "scheduled cancels", status: domain.SessionScheduled},
		{name: "room created cancels", status: domain.SessionRoomCreated},
		{name: "in progress conflicts", status: domain.SessionInProgress, wantErr: domain.ErrConflict},
		{name: "ended conflicts", status: domain.SessionEnded, wantErr: domain.ErrConflict},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := f.store.Seed(&domain.InterviewSession{
				ApplicationID: "app-" + tc.name,
				RoomName:      domain.DeriveRoomName("app-" + tc.name),
				Status:        tc.status,
			})

			got, err := f.manager.Cancel(ctx, s.ID, "position filled")
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Errorf("Cancel() error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Cancel() error = %v", err)
			}
			if got.Status != domain.SessionCancelled {
				t.Errorf("Cancel() status = %s", got.Status)
			}
		})
	}
}

func TestManager_Cancel_Idempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	s, _, _ := f.manager.Create(ctx, validCreateRequest())
	if _, err := f.manager.Cancel(ctx, s.ID, "position filled"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	replayed, err := f.manager.Cancel(ctx, s.ID, "position filled")
	if err != nil {
		t.Fatalf("Cancel() replay error = %v", err)
	}
	if replayed.Status != domain.SessionCancelled {
		t.Errorf("Cancel() replay status = %s", replayed.Status)
	}
}

func TestReconciler_TearsDownCancelledRooms(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	s, _, _ := f.manager.Create(ctx, validCreateRequest())
	if _, _, err := f.manager.Provision(ctx, s.RoomName, "candidate:cand-1", "A. Candidate"); err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if _, err := f.manager.Cancel(ctx, s.ID, "withdrawn"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	reconciler := session.NewReconciler(f.store, f.rooms, 10*time.Millisecond, logger.NewNop())
	reconciler.Start(ctx)
	defer reconciler.Stop()

	deadline := time.After(2 * time.Second)
	for f.rooms.HasRoom(s.RoomName) {
		select {
		case <-deadline:
			t.Fatal("room was not torn down")
		case <-time.After(10 * time.Millisecond):
		}
	}

	currentDeadline := time.After(2 * time.Second)
	for {
		current, err := f.store.GetByID(ctx, s.ID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if current.RoomTornDown {
			return
		}
		select {
		case <-currentDeadline:
			t.Fatal("room_torn_down flag never set")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
