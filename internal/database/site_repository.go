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

// siteSelectColumns lists columns for SELECT queries on sites.
const siteSelectColumns = `id, canonical_url, name, auto_indexing_enabled,
	indexnow_key, credentials, settings, created_at, updated_at`

// SiteRepository handles database operations for sites.
type SiteRepository struct {
	db *sqlx.DB
}

// NewSiteRepository creates a new site repository.
func NewSiteRepository(db *sqlx.DB) *SiteRepository {
	return &SiteRepository{db: db}
}

// Upsert gets or creates a site by its canonical URL, updating the name
// on conflict. Credential material and settings are left untouched on
// existing rows; they are mutated only through dedicated setters.
func (r *SiteRepository) Upsert(ctx context.Context, canonicalURL, name string) (*domain.Site, error) {
	query := `
		INSERT INTO sites (id, canonical_url, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (canonical_url) DO UPDATE SET
			name = EXCLUDED.name,
			updated_at = NOW()
		RETURNING ` + siteSelectColumns + `
	`

	var site domain.Site
	err := r.db.GetContext(ctx, &site, query, uuid.New().String(), canonicalURL, name)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert site: %w", err)
	}

	return &site, nil
}

// GetByID retrieves a site by its ID.
func (r *SiteRepository) GetByID(ctx context.Context, id string) (*domain.Site, error) {
	var site domain.Site
	query := `SELECT ` + siteSelectColumns + ` FROM sites WHERE id = $1`

	err := r.db.GetContext(ctx, &site, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSiteNotFound
		}
		return nil, fmt.Errorf("failed to get site: %w", err)
	}

	return &site, nil
}

// GetByCanonicalURL retrieves a site by its canonical URL.
func (r *SiteRepository) GetByCanonicalURL(ctx context.Context, canonicalURL string) (*domain.Site, error) {
	var site domain.Site
	query := `SELECT ` + siteSelectColumns + ` FROM sites WHERE canonical_url = $1`

	err := r.db.GetContext(ctx, &site, query, canonicalURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSiteNotFound
		}
		return nil, fmt.Errorf("failed to get site by canonical url: %w", err)
	}

	return &site, nil
}

// List retrieves all sites ordered by canonical URL.
func (r *SiteRepository) List(ctx context.Context) ([]*domain.Site, error) {
	var sites []*domain.Site
	query := `SELECT ` + siteSelectColumns + ` FROM sites ORDER BY canonical_url ASC`

	err := r.db.SelectContext(ctx, &sites, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}

	if sites == nil {
		sites = []*domain.Site{}
	}

	return sites, nil
}

// SetAutoIndexing toggles automatic indexing for a site.
func (r *SiteRepository) SetAutoIndexing(ctx context.Context, id string, enabled bool) error {
	query := `UPDATE sites SET auto_indexing_enabled = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, enabled, id)
	if execErr := execRequireRows(result, err, ErrSiteNotFound); execErr != nil {
		if errors.Is(execErr, ErrSiteNotFound) {
			return ErrSiteNotFound
		}
		return fmt.Errorf("failed to set auto indexing: %w", execErr)
	}

	return nil
}

// SetIndexNowKey stores (or clears, with nil) the site's key material for
// the key-based engine. The key is opaque to the repository.
func (r *SiteRepository) SetIndexNowKey(ctx context.Context, id string, key *string) error {
	query := `UPDATE sites SET indexnow_key = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, key, id)
	if execErr := execRequireRows(result, err, ErrSiteNotFound); execErr != nil {
		if errors.Is(execErr, ErrSiteNotFound) {
			return ErrSiteNotFound
		}
		return fmt.Errorf("failed to set indexnow key: %w", execErr)
	}

	return nil
}

// Delete removes a site. Pages and sitemaps cascade.
func (r *SiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sites WHERE id = $1`, id)
	if execErr := execRequireRows(result, err, ErrSiteNotFound); execErr != nil {
		if errors.Is(execErr, ErrSiteNotFound) {
			return ErrSiteNotFound
		}
		return fmt.Errorf("failed to delete site: %w", execErr)
	}

	return nil
}
