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

// pageSelectColumns lists columns for SELECT queries on pages.
const pageSelectColumns = `id, site_id, url, indexing_status, indexing_method,
	last_indexed_at, metadata, created_at, updated_at`

// PageRepository owns the page rows and the indexing state machine.
// Every status transition updates the page and appends a status history
// row inside one transaction, so readers never observe one without the
// other.
type PageRepository struct {
	db *sqlx.DB
}

// NewPageRepository creates a new page repository.
func NewPageRepository(db *sqlx.DB) *PageRepository {
	return &PageRepository{db: db}
}

// UpsertParams contains the parameters for upserting a page.
type UpsertParams struct {
	SiteID *string
	URL    string
	Method string
	// ResetStatus forces an existing row back to pending for re-indexing.
	// This is an explicit caller decision (bulk import uses it), never an
	// automatic side effect of lookup.
	ResetStatus bool
	// Metadata is merged into the page metadata on create and on update,
	// preserving existing keys not present here.
	Metadata domain.JSONBMap
}

// pageUpsertRow carries the returned page plus the insert/update outcome.
type pageUpsertRow struct {
	domain.Page
	WasCreated bool `db:"was_created"`
}

// Upsert gets or creates a page keyed by (site_id, url). Two concurrent
// creates for the same key collapse to one row; the loser observes the
// winner's row via the conflict update. Returns the page and whether a
// new row was created.
func (r *PageRepository) Upsert(ctx context.Context, params UpsertParams) (*domain.Page, bool, error) {
	method := params.Method
	if method == "" {
		method = domain.MethodBoth
	}

	status := "pages.indexing_status"
	if params.ResetStatus {
		status = "'pending'"
	}

	// xmax = 0 distinguishes a fresh insert from a conflict update.
	query := `
		INSERT INTO pages (id, site_id, url, indexing_status, indexing_method, metadata)
		VALUES ($1, $2, $3, 'pending', $4, $5)
		ON CONFLICT ((COALESCE(site_id::text, '')), url) DO UPDATE SET
			indexing_status = ` + status + `,
			indexing_method = EXCLUDED.indexing_method,
			metadata = pages.metadata || EXCLUDED.metadata,
			updated_at = NOW()
		RETURNING ` + pageSelectColumns + `, (xmax = 0) AS was_created
	`

	metadata := params.Metadata
	if metadata == nil {
		metadata = domain.JSONBMap{}
	}

	var row pageUpsertRow
	err := r.db.GetContext(ctx, &row, query,
		uuid.New().String(), params.SiteID, params.URL, method, &metadata,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert page: %w", err)
	}

	return &row.Page, row.WasCreated, nil
}

// GetByID retrieves a page by its ID.
func (r *PageRepository) GetByID(ctx context.Context, id string) (*domain.Page, error) {
	var page domain.Page
	query := `SELECT ` + pageSelectColumns + ` FROM pages WHERE id = $1`

	err := r.db.GetContext(ctx, &page, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPageNotFound
		}
		return nil, fmt.Errorf("failed to get page: %w", err)
	}

	return &page, nil
}

// GetByURL retrieves a page by its (site, url) key. A nil siteID matches
// pages registered without a site (single-site mode).
func (r *PageRepository) GetByURL(ctx context.Context, siteID *string, url string) (*domain.Page, error) {
	var page domain.Page
	query := `
		SELECT ` + pageSelectColumns + `
		FROM pages
		WHERE COALESCE(site_id::text, '') = COALESCE($1, '') AND url = $2
	`

	err := r.db.GetContext(ctx, &page, query, siteID, url)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPageNotFound
		}
		return nil, fmt.Errorf("failed to get page by url: %w", err)
	}

	return &page, nil
}

// ListByStatus retrieves pages in the given status, oldest first.
func (r *PageRepository) ListByStatus(ctx context.Context, status string, limit int) ([]*domain.Page, error) {
	var pages []*domain.Page
	query := `
		SELECT ` + pageSelectColumns + `
		FROM pages
		WHERE indexing_status = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`

	err := r.db.SelectContext(ctx, &pages, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages by status: %w", err)
	}

	if pages == nil {
		pages = []*domain.Page{}
	}

	return pages, nil
}

// ListStalest retrieves the pages least recently touched by a submission
// or reconciliation check: ascending last_indexed_at with nulls first,
// then ascending id. The reconciliation sweep feeds on this ordering.
func (r *PageRepository) ListStalest(ctx context.Context, siteID *string, limit int) ([]*domain.Page, error) {
	var pages []*domain.Page
	query := `
		SELECT ` + pageSelectColumns + `
		FROM pages
		WHERE ($1::text IS NULL OR site_id::text = $1)
		ORDER BY last_indexed_at ASC NULLS FIRST, id ASC
		LIMIT $2
	`

	err := r.db.SelectContext(ctx, &pages, query, siteID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale pages: %w", err)
	}

	if pages == nil {
		pages = []*domain.Page{}
	}

	return pages, nil
}

// CountByStatus returns the number of pages in the given status, or all
// pages when status is empty.
func (r *PageRepository) CountByStatus(ctx context.Context, status string) (int, error) {
	var (
		count int
		err   error
	)

	if status != "" {
		err = r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM pages WHERE indexing_status = $1`, status)
	} else {
		err = r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM pages`)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}

	return count, nil
}

// MarkSubmitted transitions a page to submitted and appends the matching
// history row.
func (r *PageRepository) MarkSubmitted(ctx context.Context, pageID string) error {
	return r.transition(ctx, pageID, transitionParams{
		status: domain.PageStatusSubmitted,
	})
}

// MarkIndexed transitions a page to indexed, tagging the history row
// with the engine whose signal caused it.
func (r *PageRepository) MarkIndexed(ctx context.Context, pageID, engine string) error {
	var tag *string
	if engine != "" {
		tag = &engine
	}
	return r.transition(ctx, pageID, transitionParams{
		status: domain.PageStatusIndexed,
		engine: tag,
	})
}

// MarkFailed transitions a page to failed, merging the error into the
// page metadata under last_error and carrying it in the history row.
func (r *PageRepository) MarkFailed(ctx context.Context, pageID, errorMessage string) error {
	return r.transition(ctx, pageID, transitionParams{
		status:       domain.PageStatusFailed,
		errorMessage: &errorMessage,
	})
}

// ResetToPending demotes a page back to pending, used when reconciliation
// reports the URL is no longer indexed or when a caller retries a failed
// page. The history row carries no engine tag.
func (r *PageRepository) ResetToPending(ctx context.Context, pageID string) error {
	return r.transition(ctx, pageID, transitionParams{
		status:      domain.PageStatusPending,
		keepIndexed: true,
	})
}

// transitionParams describes one state-machine transition.
type transitionParams struct {
	status       string
	engine       *string
	errorMessage *string
	// keepIndexed leaves last_indexed_at untouched (demotion does not
	// count as an indexing event).
	keepIndexed bool
}

// transition applies the page update and the history append as a single
// atomic unit.
func (r *PageRepository) transition(ctx context.Context, pageID string, params transitionParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transition transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if updateErr := transitionUpdatePage(ctx, tx, pageID, params); updateErr != nil {
		return updateErr
	}

	if historyErr := transitionAppendHistory(ctx, tx, pageID, params); historyErr != nil {
		return historyErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("failed to commit transition: %w", commitErr)
	}

	return nil
}

// transitionUpdatePage updates the page row within a transaction.
func transitionUpdatePage(ctx context.Context, tx *sqlx.Tx, pageID string, params transitionParams) error {
	var (
		result sql.Result
		err    error
	)

	switch {
	case params.errorMessage != nil:
		query := `
			UPDATE pages
			SET indexing_status = $1,
			    last_indexed_at = NOW(),
			    metadata = COALESCE(metadata, '{}'::jsonb) ||
			        jsonb_build_object($2::text, $3::text),
			    updated_at = NOW()
			WHERE id = $4
		`
		result, err = tx.ExecContext(ctx, query,
			params.status, domain.MetadataLastErrorKey, *params.errorMessage, pageID)
	case params.keepIndexed:
		query := `
			UPDATE pages
			SET indexing_status = $1, updated_at = NOW()
			WHERE id = $2
		`
		result, err = tx.ExecContext(ctx, query, params.status, pageID)
	default:
		query := `
			UPDATE pages
			SET indexing_status = $1, last_indexed_at = NOW(), updated_at = NOW()
			WHERE id = $2
		`
		result, err = tx.ExecContext(ctx, query, params.status, pageID)
	}

	if execErr := execRequireRows(result, err, ErrPageNotFound); execErr != nil {
		if errors.Is(execErr, ErrPageNotFound) {
			return ErrPageNotFound
		}
		return fmt.Errorf("failed to update page status: %w", execErr)
	}

	return nil
}

// transitionAppendHistory appends the audit row within a transaction.
func transitionAppendHistory(ctx context.Context, tx *sqlx.Tx, pageID string, params transitionParams) error {
	metadata := domain.JSONBMap{}
	if params.errorMessage != nil {
		metadata["error"] = *params.errorMessage
	}

	query := `
		INSERT INTO indexing_status_history (id, page_id, status, search_engine, metadata, checked_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`

	_, err := tx.ExecContext(ctx, query,
		uuid.New().String(), pageID, params.status, params.engine, &metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}

	return nil
}

// History retrieves the status history for a page, most recent first.
func (r *PageRepository) History(ctx context.Context, pageID string, limit int) ([]*domain.StatusHistory, error) {
	var rows []*domain.StatusHistory
	query := `
		SELECT id, page_id, status, search_engine, metadata, checked_at
		FROM indexing_status_history
		WHERE page_id = $1
		ORDER BY checked_at DESC, id DESC
		LIMIT $2
	`

	err := r.db.SelectContext(ctx, &rows, query, pageID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get status history: %w", err)
	}

	if rows == nil {
		rows = []*domain.StatusHistory{}
	}

	return rows, nil
}
