package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/pageindexer/internal/domain"
)

// sitemapSelectColumns lists columns for SELECT queries on sitemaps.
const sitemapSelectColumns = `id, site_id, sitemap_url, type, last_checked_at,
	page_count, created_at, updated_at`

// SitemapRepository tracks the current known state of each sitemap per
// site. Rows are updated in place by each check; this is not a history
// table.
type SitemapRepository struct {
	db *sqlx.DB
}

// NewSitemapRepository creates a new sitemap repository.
func NewSitemapRepository(db *sqlx.DB) *SitemapRepository {
	return &SitemapRepository{db: db}
}

// Upsert gets or creates a sitemap row keyed by (site_id, sitemap_url),
// updating the document type on conflict.
func (r *SitemapRepository) Upsert(ctx context.Context, siteID, sitemapURL, docType string) (*domain.Sitemap, error) {
	if docType == "" {
		docType = domain.SitemapTypeSitemap
	}

	query := `
		INSERT INTO sitemaps (id, site_id, sitemap_url, type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (site_id, sitemap_url) DO UPDATE SET
			type = EXCLUDED.type,
			updated_at = NOW()
		RETURNING ` + sitemapSelectColumns + `
	`

	var sitemap domain.Sitemap
	err := r.db.GetContext(ctx, &sitemap, query, uuid.New().String(), siteID, sitemapURL, docType)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert sitemap: %w", err)
	}

	return &sitemap, nil
}

// MarkChecked records the result of a sitemap check: the time and the
// number of URLs the document currently lists.
func (r *SitemapRepository) MarkChecked(ctx context.Context, id string, pageCount int) error {
	query := `
		UPDATE sitemaps
		SET last_checked_at = NOW(), page_count = $1, updated_at = NOW()
		WHERE id = $2
	`

	_, err := r.db.ExecContext(ctx, query, pageCount, id)
	if err != nil {
		return fmt.Errorf("failed to mark sitemap checked: %w", err)
	}

	return nil
}

// ListBySite retrieves all sitemap rows for a site.
func (r *SitemapRepository) ListBySite(ctx context.Context, siteID string) ([]*domain.Sitemap, error) {
	var sitemaps []*domain.Sitemap
	query := `
		SELECT ` + sitemapSelectColumns + `
		FROM sitemaps
		WHERE site_id = $1
		ORDER BY sitemap_url ASC
	`

	err := r.db.SelectContext(ctx, &sitemaps, query, siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sitemaps: %w", err)
	}

	if sitemaps == nil {
		sitemaps = []*domain.Sitemap{}
	}

	return sitemaps, nil
}
