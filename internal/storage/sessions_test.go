package storage_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/jonesrussell/interview-orchestrator/internal/domain"
	"github.com/jonesrussell/interview-orchestrator/internal/storage"
)

var sessionColumns = []string{
	"id", "application_id", "job_id", "candidate_id", "company_id",
	"room_name", "status", "scheduled_at", "room_created_at", "started_at", "ended_at",
	"recording_url", "duration_seconds", "cancel_reason", "room_torn_down",
	"created_at", "updated_at",
}

func sessionRow(id, appID string, status domain.SessionStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(sessionColumns).AddRow(
		id, appID, "job-1", "cand-1", "comp-1",
		"interview-abc123", string(status), now, nil, nil, nil,
		nil, nil, nil, false,
		now, now,
	)
}

func TestSessionRepository_CreateOrGet(t *testing.T) {
	t.Helper()

	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := storage.NewSessionRepository(db)
	ctx := context.Background()

	session := &domain.InterviewSession{
		ApplicationID: "app-1",
		JobID:         "job-1",
		CandidateID:   "cand-1",
		CompanyID:     "comp-1",
		RoomName:      "interview-abc123",
		ScheduledAt:   time.Now(),
	}

	t.Run("inserts new session", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO interview_sessions").
			WillReturnRows(sessionRow("sess-1", "app-1", domain.SessionScheduled))

		got, created, err := repo.CreateOrGet(ctx, session)
		if err != nil {
			t.Fatalf("CreateOrGet() error = %v", err)
		}
		if !created {
			t.Error("CreateOrGet() created = false, want true")
		}
		if got.ID != "sess-1" {
			t.Errorf("CreateOrGet() id = %s, want sess-1", got.ID)
		}
	})

	t.Run("returns existing session on conflict", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO interview_sessions").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("SELECT (.+) FROM interview_sessions WHERE application_id").
			WithArgs("app-1").
			WillReturnRows(sessionRow("sess-existing", "app-1", domain.SessionRoomCreated))

		got, created, err := repo.CreateOrGet(ctx, session)
		if err != nil {
			t.Fatalf("CreateOrGet() error = %v", err)
		}
		if created {
			t.Error("CreateOrGet() created = true, want false")
		}
		if got.ID != "sess-existing" {
			t.Errorf("CreateOrGet() id = %s, want sess-existing", got.ID)
		}
	})

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}

func TestSessionRepository_GetByID(t *testing.T) {
	t.Helper()

	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := storage.NewSessionRepository(db)
	ctx := context.Background()

	testCases := []struct {
		name      string
		setupMock func()
		wantErr   error
	}{
		{
			name: "returns session",
			setupMock: func() {
				mock.ExpectQuery("SELECT (.+) FROM interview_sessions WHERE id").
					WithArgs("sess-1").
					WillReturnRows(sessionRow("sess-1", "app-1", domain.SessionScheduled))
			},
		},
		{
			name: "missing session maps to not found",
			setupMock: func() {
				mock.ExpectQuery("SELECT (.+) FROM interview_sessions WHERE id").
					WithArgs("sess-1").
					WillReturnError(sql.ErrNoRows)
			},
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.setupMock()

			_, err := repo.GetByID(ctx, "sess-1")
			if tc.wantErr == nil && err != nil {
				t.Errorf("GetByID() error = %v, want nil", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("GetByID() error = %v, want %v", err, tc.wantErr)
			}

			if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
				t.Errorf("unfulfilled expectations: %v", expectErr)
			}
		})
	}
}

func TestSessionRepository_MarkStarted(t *testing.T) {
	t.Helper()

	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := storage.NewSessionRepository(db)
	ctx := context.Background()

	t.Run("transitions matching row", func(t *testing.T) {
		mock.ExpectQuery("UPDATE interview_sessions").
			WithArgs("interview-abc123", string(domain.SessionRoomCreated), string(domain.SessionInProgress)).
			WillReturnRows(sessionRow("sess-1", "app-1", domain.SessionInProgress))

		got, err := repo.MarkStarted(ctx, "interview-abc123")
		if err != nil {
			t.Fatalf("MarkStarted() error = %v", err)
		}
		if got.Status != domain.SessionInProgress {
			t.Errorf("MarkStarted() status = %s, want %s", got.Status, domain.SessionInProgress)
		}
	})

	t.Run("lost race yields not found", func(t *testing.T) {
		mock.ExpectQuery("UPDATE interview_sessions").
			WithArgs("interview-abc123", string(domain.SessionRoomCreated), string(domain.SessionInProgress)).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.MarkStarted(ctx, "interview-abc123")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("MarkStarted() error = %v, want %v", err, domain.ErrNotFound)
		}
	})

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}

func TestSessionRepository_MarkEnded(t *testing.T) {
	t.Helper()

	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := storage.NewSessionRepository(db)
	ctx := context.Background()

	mock.ExpectQuery("UPDATE interview_sessions").
		WithArgs("interview-abc123", string(domain.SessionInProgress), string(domain.SessionEnded),
			"https://cdn.example.com/rec/1.mp4", 1800).
		WillReturnRows(sessionRow("sess-1", "app-1", domain.SessionEnded))

	got, err := repo.MarkEnded(ctx, "interview-abc123", "https://cdn.example.com/rec/1.mp4", 1800)
	if err != nil {
		t.Fatalf("MarkEnded() error = %v", err)
	}
	if got.Status != domain.SessionEnded {
		t.Errorf("MarkEnded() status = %s, want %s", got.Status, domain.SessionEnded)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}

func TestSessionRepository_MarkRoomTornDown(t *testing.T) {
	t.Helper()

	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := storage.NewSessionRepository(db)
	ctx := context.Background()

	testCases := []struct {
		name      string
		setupMock func()
		wantErr   bool
	}{
		{
			name: "marks row",
			setupMock: func() {
				mock.ExpectExec("UPDATE interview_sessions SET room_torn_down").
					WithArgs("sess-1").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "missing row returns error",
			setupMock: func() {
				mock.ExpectExec("UPDATE interview_sessions SET room_torn_down").
					WithArgs("sess-1").
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.setupMock()

			err := repo.MarkRoomTornDown(ctx, "sess-1")
			if (err != nil) != tc.wantErr {
				t.Errorf("MarkRoomTornDown() error = %v, wantErr %v", err, tc.wantErr)
			}

			if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
				t.Errorf("unfulfilled expectations: %v", expectErr)
			}
		})
	}
}
