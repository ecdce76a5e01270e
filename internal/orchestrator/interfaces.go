package orchestrator

import (
	"context"

	"github.com/jonesrussell/pageindexer/internal/database"
	"github.com/jonesrussell/pageindexer/internal/domain"
	"github.com/jonesrussell/pageindexer/internal/sitemap"
)

// PageRegistry is the page registry surface the orchestrator depends on.
// *database.PageRepository implements it.
type PageRegistry interface {
	Upsert(ctx context.Context, params database.UpsertParams) (*domain.Page, bool, error)
	GetByID(ctx context.Context, id string) (*domain.Page, error)
	MarkSubmitted(ctx context.Context, pageID string) error
	MarkIndexed(ctx context.Context, pageID, engine string) error
	MarkFailed(ctx context.Context, pageID, errorMessage string) error
	ResetToPending(ctx context.Context, pageID string) error
}

// JobLedger is the attempt ledger surface the orchestrator depends on.
// *database.JobRepository implements it.
type JobLedger interface {
	RecordAttempt(ctx context.Context, pageID, engine string, requestData domain.JSONBMap) (*domain.IndexingJob, error)
	Complete(ctx context.Context, jobID string, responseData domain.JSONBMap) error
	Fail(ctx context.Context, jobID, errorMessage string, responseData domain.JSONBMap) error
}

// SiteRegistry is the site repository surface the orchestrator depends on.
// *database.SiteRepository implements it.
type SiteRegistry interface {
	Upsert(ctx context.Context, canonicalURL, name string) (*domain.Site, error)
}

// Resolver is the sitemap resolution surface the orchestrator depends on.
// *sitemap.Resolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, sitemapURL string) sitemap.Result
}

// RateLimiter gates and accounts engine submissions.
// *ratelimit.Limiter implements it.
type RateLimiter interface {
	Allow(engine string) bool
	AllowN(engine string, n int) bool
	Consume(engine string)
	ConsumeN(engine string, n int)
}
