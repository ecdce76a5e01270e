package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/pageindexer/internal/domain"
)

// jobSelectColumns lists columns for SELECT queries on indexing_jobs.
const jobSelectColumns = `id, page_id, status, search_engine, request_data,
	response_data, error_message, processed_at, created_at, updated_at`

// JobRepository is the append-only ledger of submission attempts. A new
// row is recorded per attempt; completed and failed rows are never
// mutated again once processed_at is stamped. The ledger imposes no
// uniqueness on open (page, engine) attempts: serialization is the
// dispatcher's concern, and duplicate rows from racing workers are
// tolerated by design.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new job ledger repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// RecordAttempt creates a processing row for one (page, engine) attempt,
// snapshotting the request payload for audit.
func (r *JobRepository) RecordAttempt(
	ctx context.Context, pageID, engine string, requestData domain.JSONBMap,
) (*domain.IndexingJob, error) {
	if requestData == nil {
		requestData = domain.JSONBMap{}
	}

	query := `
		INSERT INTO indexing_jobs (id, page_id, status, search_engine, request_data)
		VALUES ($1, $2, 'processing', $3, $4)
		RETURNING ` + jobSelectColumns + `
	`

	var job domain.IndexingJob
	err := r.db.GetContext(ctx, &job, query, uuid.New().String(), pageID, engine, &requestData)
	if err != nil {
		return nil, fmt.Errorf("failed to record indexing attempt: %w", err)
	}

	return &job, nil
}

// Complete marks an attempt as completed, storing the response snapshot
// and stamping processed_at. Only open rows are eligible.
func (r *JobRepository) Complete(ctx context.Context, jobID string, responseData domain.JSONBMap) error {
	if responseData == nil {
		responseData = domain.JSONBMap{}
	}

	query := `
		UPDATE indexing_jobs
		SET status = 'completed', response_data = $1, processed_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND processed_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, &responseData, jobID)
	if execErr := execRequireRows(result, err, ErrJobNotFound); execErr != nil {
		if errors.Is(execErr, ErrJobNotFound) {
			return ErrJobNotFound
		}
		return fmt.Errorf("failed to complete indexing job: %w", execErr)
	}

	return nil
}

// Fail marks an attempt as failed with the error message and an optional
// partial response snapshot, stamping processed_at.
func (r *JobRepository) Fail(
	ctx context.Context, jobID, errorMessage string, responseData domain.JSONBMap,
) error {
	if responseData == nil {
		responseData = domain.JSONBMap{}
	}

	query := `
		UPDATE indexing_jobs
		SET status = 'failed', error_message = $1, response_data = $2,
		    processed_at = NOW(), updated_at = NOW()
		WHERE id = $3 AND processed_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, errorMessage, &responseData, jobID)
	if execErr := execRequireRows(result, err, ErrJobNotFound); execErr != nil {
		if errors.Is(execErr, ErrJobNotFound) {
			return ErrJobNotFound
		}
		return fmt.Errorf("failed to fail indexing job: %w", execErr)
	}

	return nil
}

// GetByID retrieves a ledger row by its ID.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.IndexingJob, error) {
	var job domain.IndexingJob
	query := `SELECT ` + jobSelectColumns + ` FROM indexing_jobs WHERE id = $1`

	err := r.db.GetContext(ctx, &job, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get indexing job: %w", err)
	}

	return &job, nil
}

// LatestOpen retrieves the most recent open (processing) row for a
// (page, engine) pair, used by the queue failure hook to close the
// attempt the crashed handler left behind.
func (r *JobRepository) LatestOpen(ctx context.Context, pageID, engine string) (*domain.IndexingJob, error) {
	var job domain.IndexingJob
	query := `
		SELECT ` + jobSelectColumns + `
		FROM indexing_jobs
		WHERE page_id = $1 AND search_engine = $2 AND status = 'processing'
		ORDER BY created_at DESC
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &job, query, pageID, engine)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get open indexing job: %w", err)
	}

	return &job, nil
}

// ListByPage retrieves the attempt history for a page, most recent first.
func (r *JobRepository) ListByPage(ctx context.Context, pageID string, limit int) ([]*domain.IndexingJob, error) {
	var jobs []*domain.IndexingJob
	query := `
		SELECT ` + jobSelectColumns + `
		FROM indexing_jobs
		WHERE page_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	err := r.db.SelectContext(ctx, &jobs, query, pageID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexing jobs: %w", err)
	}

	if jobs == nil {
		jobs = []*domain.IndexingJob{}
	}

	return jobs, nil
}
