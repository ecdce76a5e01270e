package domain

import "time"

// Sitemap document type constants.
const (
	SitemapTypeSitemap = "sitemap"
	SitemapTypeIndex   = "sitemapindex"
)

// Sitemap tracks the current known state of one sitemap document for a
// site. Unlike jobs and history, sitemap rows are updated in place by
// each check rather than appended.
type Sitemap struct {
	ID            string     `db:"id"              json:"id"`
	SiteID        string     `db:"site_id"         json:"site_id"`
	SitemapURL    string     `db:"sitemap_url"     json:"sitemap_url"`
	Type          string     `db:"type"            json:"type"`
	LastCheckedAt *time.Time `db:"last_checked_at" json:"last_checked_at,omitempty"`
	PageCount     int        `db:"page_count"      json:"page_count"`
	CreatedAt     time.Time  `db:"created_at"      json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"      json:"updated_at"`
}
