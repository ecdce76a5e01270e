// Package domain defines the core entities for the page indexing pipeline:
// sites, pages, indexing jobs, status history, and sitemaps.
package domain

import "time"

// Page indexing status constants. A page moves pending -> submitted ->
// indexed or failed. Neither failed nor indexed is terminal: failed pages
// are reset to pending for retry, and reconciliation demotes indexed pages
// back to pending when the inspection API reports them gone.
const (
	PageStatusPending   = "pending"
	PageStatusSubmitted = "submitted"
	PageStatusIndexed   = "indexed"
	PageStatusFailed    = "failed"
)

// Indexing method constants declare which engine set applies to a page by default.
const (
	MethodGoogle   = "google"
	MethodIndexNow = "indexnow"
	MethodBoth     = "both"
)

// MetadataLastErrorKey is the metadata key holding the most recent submission error.
const MetadataLastErrorKey = "last_error"

// Page represents a URL tracked through the indexing lifecycle.
type Page struct {
	ID             string     `db:"id"              json:"id"`
	SiteID         *string    `db:"site_id"         json:"site_id,omitempty"`
	URL            string     `db:"url"             json:"url"`
	IndexingStatus string     `db:"indexing_status" json:"indexing_status"`
	IndexingMethod string     `db:"indexing_method" json:"indexing_method"`
	LastIndexedAt  *time.Time `db:"last_indexed_at" json:"last_indexed_at,omitempty"`
	Metadata       JSONBMap   `db:"metadata"        json:"metadata,omitempty"`
	CreatedAt      time.Time  `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"      json:"updated_at"`
}

// IsIndexed reports whether the page is currently indexed.
func (p *Page) IsIndexed() bool {
	return p.IndexingStatus == PageStatusIndexed
}

// IsPending reports whether the page is awaiting submission.
func (p *Page) IsPending() bool {
	return p.IndexingStatus == PageStatusPending
}

// HasFailed reports whether the last submission for the page failed.
func (p *Page) HasFailed() bool {
	return p.IndexingStatus == PageStatusFailed
}

// Engines returns the engine names implied by the page's indexing method.
func (p *Page) Engines() []string {
	switch p.IndexingMethod {
	case MethodGoogle:
		return []string{EngineGoogle}
	case MethodIndexNow:
		return []string{EngineIndexNow}
	default:
		return []string{EngineGoogle, EngineIndexNow}
	}
}

// ValidMethod reports whether m is a recognized indexing method.
func ValidMethod(m string) bool {
	switch m {
	case MethodGoogle, MethodIndexNow, MethodBoth:
		return true
	default:
		return false
	}
}

// Indexable is implemented by caller-side records that expose a URL
// eligible for indexing, so bulk import can accept arbitrary types
// without runtime field probing.
type Indexable interface {
	IndexableURL() string
}
