package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/pageindexer/internal/database"
	"github.com/jonesrussell/pageindexer/internal/domain"
)

var jobColumns = []string{
	"id", "page_id", "status", "search_engine", "request_data",
	"response_data", "error_message", "processed_at", "created_at", "updated_at",
}

func newMockJobRepo(t *testing.T) (*database.JobRepository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "postgres")
	return database.NewJobRepository(db), mock
}

func TestJobRepository_RecordAttempt(t *testing.T) {
	repo, mock := newMockJobRepo(t)
	ctx := context.Background()

	now := time.Now()
	rows := sqlmock.NewRows(jobColumns).
		AddRow("job-1", "page-1", "processing", domain.EngineGoogle,
			[]byte(`{"url":"https://example.com/a"}`), []byte(`{}`), nil, nil, now, now)

	mock.ExpectQuery("INSERT INTO indexing_jobs").
		WithArgs(sqlmock.AnyArg(), "page-1", domain.EngineGoogle, sqlmock.AnyArg()).
		WillReturnRows(rows)

	job, err := repo.RecordAttempt(ctx, "page-1", domain.EngineGoogle,
		domain.JSONBMap{"url": "https://example.com/a"})
	if err != nil {
		t.Fatalf("RecordAttempt() error = %v", err)
	}
	if job.Status != "processing" {
		t.Errorf("expected processing, got %s", job.Status)
	}
	if job.SearchEngine != domain.EngineGoogle {
		t.Errorf("unexpected engine %s", job.SearchEngine)
	}
	if job.ProcessedAt != nil {
		t.Error("a fresh attempt must not carry processed_at")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestJobRepository_Complete(t *testing.T) {
	repo, mock := newMockJobRepo(t)
	ctx := context.Background()

	mock.ExpectExec("UPDATE indexing_jobs").
		WithArgs(sqlmock.AnyArg(), "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Complete(ctx, "job-1", domain.JSONBMap{"status": float64(200)}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestJobRepository_Complete_AlreadyClosed(t *testing.T) {
	repo, mock := newMockJobRepo(t)
	ctx := context.Background()

	// The WHERE guard on processed_at makes a second close a no-op.
	mock.ExpectExec("UPDATE indexing_jobs").
		WithArgs(sqlmock.AnyArg(), "job-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Complete(ctx, "job-1", nil)
	if !errors.Is(err, database.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestJobRepository_Fail(t *testing.T) {
	repo, mock := newMockJobRepo(t)
	ctx := context.Background()

	mock.ExpectExec("UPDATE indexing_jobs").
		WithArgs("connection refused", sqlmock.AnyArg(), "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Fail(ctx, "job-1", "connection refused", nil); err != nil {
		t.Fatalf("Fail() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestJobRepository_LatestOpen_NotFound(t *testing.T) {
	repo, mock := newMockJobRepo(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT .+ FROM indexing_jobs").
		WithArgs("page-1", domain.EngineIndexNow).
		WillReturnRows(sqlmock.NewRows(jobColumns))

	_, err := repo.LatestOpen(ctx, "page-1", domain.EngineIndexNow)
	if !errors.Is(err, database.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestJobRepository_ListByPage(t *testing.T) {
	repo, mock := newMockJobRepo(t)
	ctx := context.Background()

	now := time.Now()
	rows := sqlmock.NewRows(jobColumns).
		AddRow("job-2", "page-1", "completed", domain.EngineGoogle,
			[]byte(`{}`), []byte(`{}`), nil, now, now, now).
		AddRow("job-1", "page-1", "failed", domain.EngineIndexNow,
			[]byte(`{}`), []byte(`{}`), "timeout", now, now, now)

	mock.ExpectQuery("SELECT .+ FROM indexing_jobs").
		WithArgs("page-1", 20).
		WillReturnRows(rows)

	jobs, err := repo.ListByPage(ctx, "page-1", 20)
	if err != nil {
		t.Fatalf("ListByPage() error = %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != "job-2" {
		t.Errorf("expected most recent first, got %s", jobs[0].ID)
	}
}
