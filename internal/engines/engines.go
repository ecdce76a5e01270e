// Package engines defines the contracts between the orchestration core
// and the external indexing and inspection services. The concrete HTTP
// adapters live in the subpackages google, indexnow, and searchconsole.
package engines

import (
	"context"
	"time"
)

// URL change type constants for the push-notification protocol.
const (
	ChangeTypeUpdated = "URL_UPDATED"
	ChangeTypeDeleted = "URL_DELETED"
)

// TokenSource supplies bearer tokens for the Google APIs. Credential
// acquisition and refresh are external concerns; the adapters only ask
// for a usable token per request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to the TokenSource interface.
type TokenSourceFunc func(ctx context.Context) (string, error)

// Token implements TokenSource.
func (f TokenSourceFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// PushResult is the outcome of one push-notification submission.
type PushResult struct {
	Success    bool       `json:"success"`
	URL        string     `json:"url"`
	NotifiedAt *time.Time `json:"notified_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// PushSubmitter is the push-notification engine adapter. There is no
// batch endpoint; SubmitMany issues one call per URL with its own
// pacing, independent of any cap the caller applies.
type PushSubmitter interface {
	SubmitOne(ctx context.Context, url, changeType string) PushResult
	SubmitMany(ctx context.Context, urls []string, changeType string) []PushResult
}

// KeyResult is the outcome of one key-based single-URL submission.
type KeyResult struct {
	Success  bool   `json:"success"`
	URL      string `json:"url"`
	Endpoint string `json:"endpoint"`
	Status   int    `json:"status,omitempty"`
	Error    string `json:"error,omitempty"`
}

// KeyBatchResult is the outcome of one key-based server-side batch call.
type KeyBatchResult struct {
	Success  bool   `json:"success"`
	Count    int    `json:"count"`
	Endpoint string `json:"endpoint"`
	Status   int    `json:"status,omitempty"`
	Error    string `json:"error,omitempty"`
}

// KeySubmitter is the key-based multi-endpoint engine adapter. A central
// enabled flag is checked before any call.
type KeySubmitter interface {
	SubmitOne(ctx context.Context, url, host, key, endpoint string) KeyResult
	SubmitMany(ctx context.Context, urls []string, host, key, endpoint string) KeyBatchResult
	SubmitToEndpoints(ctx context.Context, urls []string, host, key string, endpoints []string) map[string]KeyBatchResult
}

// SiteEntry is one property reported by the inspection service.
type SiteEntry struct {
	URL             string `json:"url"`
	PermissionLevel string `json:"permission_level"`
}

// SitesResult is the outcome of a site listing call.
type SitesResult struct {
	Success bool        `json:"success"`
	Sites   []SiteEntry `json:"sites,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SitemapEntry is one sitemap reported for a property.
type SitemapEntry struct {
	Path            string `json:"path"`
	IsSitemapsIndex bool   `json:"is_sitemaps_index"`
	IsPending       bool   `json:"is_pending"`
	LastDownloaded  string `json:"last_downloaded,omitempty"`
	LastSubmitted   string `json:"last_submitted,omitempty"`
	ErrorCount      int64  `json:"error_count"`
	WarningCount    int64  `json:"warning_count"`
}

// SitemapsResult is the outcome of a sitemap listing call.
type SitemapsResult struct {
	Success  bool           `json:"success"`
	Sitemaps []SitemapEntry `json:"sitemaps,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Inspection verdict and coverage values the reconciliation loop acts on.
const (
	VerdictPass        = "PASS"
	VerdictFail        = "FAIL"
	CoverageIndexed    = "INDEXED"
	CoverageNotIndexed = "NOT_INDEXED"
)

// InspectResult is the authoritative indexing status for one URL as
// reported by the inspection service. An unset Verdict and CoverageState
// with Success=true means the service had no inspection data.
type InspectResult struct {
	Success       bool   `json:"success"`
	Verdict       string `json:"verdict,omitempty"`
	CoverageState string `json:"coverage_state,omitempty"`
	IndexingState string `json:"indexing_state,omitempty"`
	LastCrawlTime string `json:"last_crawl_time,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Inspector is the external inspection/listing collaborator.
type Inspector interface {
	ListSites(ctx context.Context) SitesResult
	ListSitemaps(ctx context.Context, siteURL string) SitemapsResult
	Inspect(ctx context.Context, siteURL, pageURL string) InspectResult
}
