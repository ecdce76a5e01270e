// Package orchestrator coordinates URL submissions across the configured
// engines: it resolves the target engine set per site, enforces rate
// limits, invokes the adapters, and folds the outcomes into the page
// registry and the job ledger.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/jonesrussell/pageindexer/internal/database"
	"github.com/jonesrussell/pageindexer/internal/domain"
	"github.com/jonesrussell/pageindexer/internal/engines"
	"github.com/jonesrussell/pageindexer/internal/logger"
	"github.com/jonesrussell/pageindexer/internal/metrics"
	"github.com/jonesrussell/pageindexer/internal/sitemap"
)

// ErrRateLimited is the per-engine result error for a submission skipped
// because the engine's window is exhausted. It is a soft skip: other
// engines in the same call proceed normally.
const ErrRateLimited = "rate_limited"

// googleBatchCap is the documented per-call URL cap for the
// push-notification API. Excess URLs are reported as not attempted, not
// split into further calls; callers needing more call repeatedly.
const googleBatchCap = 200

// Config holds the orchestrator's site-independent fallbacks, used in
// single-site deployments where no site row exists.
type Config struct {
	// SiteURL is the fallback inspection scope.
	SiteURL string
	// IndexNowKey is the fallback key material for the key-based engine.
	IndexNowKey string
	// IndexNowEndpoint is the default endpoint name for key-based calls.
	IndexNowEndpoint string
}

// Deps holds the orchestrator's collaborators.
type Deps struct {
	Pages    PageRegistry
	Ledger   JobLedger
	Sites    SiteRegistry
	Resolver Resolver
	Limiter  RateLimiter
	Google   engines.PushSubmitter
	IndexNow engines.KeySubmitter
	Inspect  engines.Inspector
	Metrics  *metrics.Metrics
	Logger   logger.Logger
}

// Orchestrator is the top-level indexing coordinator.
type Orchestrator struct {
	cfg      Config
	pages    PageRegistry
	ledger   JobLedger
	sites    SiteRegistry
	resolver Resolver
	limiter  RateLimiter
	google   engines.PushSubmitter
	indexnow engines.KeySubmitter
	inspect  engines.Inspector
	metrics  *metrics.Metrics
	log      logger.Logger
}

// New creates an orchestrator.
func New(cfg Config, deps Deps) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		pages:    deps.Pages,
		ledger:   deps.Ledger,
		sites:    deps.Sites,
		resolver: deps.Resolver,
		limiter:  deps.Limiter,
		google:   deps.Google,
		indexnow: deps.IndexNow,
		inspect:  deps.Inspect,
		metrics:  deps.Metrics,
		log:      deps.Logger,
	}
}

// EngineResult is the outcome of one engine's submission for one URL.
type EngineResult struct {
	Engine   string          `json:"engine"`
	Success  bool            `json:"success"`
	URL      string          `json:"url"`
	Error    string          `json:"error,omitempty"`
	Response domain.JSONBMap `json:"response,omitempty"`
}

// IndexResult maps engine name to that engine's outcome. Overall success
// is not all-or-nothing; callers inspect per-engine entries.
type IndexResult struct {
	URL     string                  `json:"url"`
	PageID  string                  `json:"page_id,omitempty"`
	Engines map[string]EngineResult `json:"engines"`
}

// AnySuccess reports whether at least one engine accepted the URL.
func (r *IndexResult) AnySuccess() bool {
	for _, res := range r.Engines {
		if res.Success {
			return true
		}
	}
	return false
}

// FirstError returns one engine error for the page-level failure record.
// Rate limiter vetoes are soft skips, not failures, and never represent
// the round.
func (r *IndexResult) FirstError() string {
	for _, res := range r.Engines {
		if !res.Success && res.Error != "" && res.Error != ErrRateLimited {
			return fmt.Sprintf("%s: %s", res.Engine, res.Error)
		}
	}
	return "no engine accepted the submission"
}

// resolveEngines intersects the requested engine set with the known
// engines and with what the site actually has configured. The key-based
// engine is dropped silently when no key material exists; that is a
// configuration state, not an error.
func (o *Orchestrator) resolveEngines(site *domain.Site, engineSet []string) []string {
	resolved := make([]string, 0, len(engineSet))
	for _, engine := range engineSet {
		switch engine {
		case domain.EngineGoogle:
			resolved = append(resolved, engine)
		case domain.EngineIndexNow:
			if o.indexNowKey(site) != "" {
				resolved = append(resolved, engine)
			}
		}
	}
	return resolved
}

// indexNowKey returns the key material for the site, falling back to the
// deployment-level key in single-site mode.
func (o *Orchestrator) indexNowKey(site *domain.Site) string {
	if site != nil && site.HasIndexNowKey() {
		return *site.IndexNowKey
	}
	return o.cfg.IndexNowKey
}

// siteURL returns the inspection scope for the site, falling back to the
// configured deployment-level property.
func (o *Orchestrator) siteURL(site *domain.Site) string {
	if site != nil && site.CanonicalURL != "" {
		return site.CanonicalURL
	}
	return o.cfg.SiteURL
}

// siteID returns the owning site id, or nil in single-site mode.
func siteID(site *domain.Site) *string {
	if site == nil {
		return nil
	}
	return &site.ID
}

// Index submits one URL to every engine in the set, upserting the page
// row first so the lifecycle is tracked even for ad-hoc submissions.
// A single engine's failure never empties the other's result.
func (o *Orchestrator) Index(ctx context.Context, site *domain.Site, url string, engineSet []string) (*IndexResult, error) {
	page, _, err := o.pages.Upsert(ctx, upsertFor(site, url, engineSet))
	if err != nil {
		return nil, fmt.Errorf("upsert page: %w", err)
	}

	result := &IndexResult{
		URL:     url,
		PageID:  page.ID,
		Engines: make(map[string]EngineResult),
	}

	for _, engine := range o.resolveEngines(site, engineSet) {
		result.Engines[engine] = o.SubmitEngine(ctx, site, page, engine)
	}

	if transitionErr := o.transitionAfterSubmit(ctx, page.ID, result); transitionErr != nil {
		return result, transitionErr
	}

	return result, nil
}

// SubmitEngine performs the single-(page, engine) submission with its
// ledger bracket: a processing row is recorded before the adapter call
// and closed with the response or the error after it. The queue worker
// uses this entry point directly, one work item per (page, engine).
func (o *Orchestrator) SubmitEngine(ctx context.Context, site *domain.Site, page *domain.Page, engine string) EngineResult {
	if !o.limiter.Allow(engine) {
		o.metrics.RateLimitedTotal.WithLabelValues(engine).Inc()
		o.log.Warn("submission rate limited",
			logger.String("engine", engine), logger.String("url", page.URL))
		return EngineResult{Engine: engine, URL: page.URL, Error: ErrRateLimited}
	}

	job, err := o.ledger.RecordAttempt(ctx, page.ID, engine, domain.JSONBMap{
		"url":    page.URL,
		"method": page.IndexingMethod,
	})
	if err != nil {
		return EngineResult{Engine: engine, URL: page.URL, Error: fmt.Sprintf("record attempt: %v", err)}
	}

	result := o.callEngine(ctx, site, page.URL, engine)

	if result.Success {
		o.limiter.Consume(engine)
		if completeErr := o.ledger.Complete(ctx, job.ID, result.Response); completeErr != nil {
			o.log.Error("failed to complete ledger row",
				logger.String("job_id", job.ID), logger.Err(completeErr))
		}
	} else {
		if failErr := o.ledger.Fail(ctx, job.ID, result.Error, result.Response); failErr != nil {
			o.log.Error("failed to fail ledger row",
				logger.String("job_id", job.ID), logger.Err(failErr))
		}
	}

	o.metrics.RecordSubmission(engine, result.Success)

	return result
}

// callEngine dispatches one URL to one engine adapter and normalizes
// the adapter's result shape.
func (o *Orchestrator) callEngine(ctx context.Context, site *domain.Site, url, engine string) EngineResult {
	switch engine {
	case domain.EngineGoogle:
		res := o.google.SubmitOne(ctx, url, engines.ChangeTypeUpdated)
		out := EngineResult{Engine: engine, Success: res.Success, URL: url, Error: res.Error}
		if res.NotifiedAt != nil {
			out.Response = domain.JSONBMap{"notified_at": res.NotifiedAt.String()}
		}
		return out

	case domain.EngineIndexNow:
		host, err := sitemap.ExtractHost(url)
		if err != nil {
			return EngineResult{Engine: engine, URL: url, Error: err.Error()}
		}
		res := o.indexnow.SubmitOne(ctx, url, host, o.indexNowKey(site), o.cfg.IndexNowEndpoint)
		return EngineResult{
			Engine:  engine,
			Success: res.Success,
			URL:     url,
			Error:   res.Error,
			Response: domain.JSONBMap{
				"endpoint": res.Endpoint,
				"status":   res.Status,
			},
		}

	default:
		return EngineResult{Engine: engine, URL: url, Error: fmt.Sprintf("unknown engine: %s", engine)}
	}
}

// transitionAfterSubmit applies the page-level outcome of a submission
// round: any engine success marks the page submitted, a round whose
// attempted engines all failed marks it failed with one representative
// error. Rate limiter vetoes are soft skips, so a round with no engine
// actually attempted (empty resolved set, or every engine rate limited)
// leaves the page pending for a later round.
func (o *Orchestrator) transitionAfterSubmit(ctx context.Context, pageID string, result *IndexResult) error {
	var attempted bool
	for _, res := range result.Engines {
		if res.Success || res.Error != ErrRateLimited {
			attempted = true
			break
		}
	}
	if !attempted {
		return nil
	}

	if result.AnySuccess() {
		if err := o.pages.MarkSubmitted(ctx, pageID); err != nil {
			return fmt.Errorf("mark submitted: %w", err)
		}
		return nil
	}

	if err := o.pages.MarkFailed(ctx, pageID, result.FirstError()); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// upsertFor builds the upsert parameters for an ad-hoc submission.
func upsertFor(site *domain.Site, url string, engineSet []string) (params database.UpsertParams) {
	params.SiteID = siteID(site)
	params.URL = url
	params.Method = methodFor(engineSet)
	return params
}

// methodFor maps an engine set back to the stored indexing method.
func methodFor(engineSet []string) string {
	var hasGoogle, hasIndexNow bool
	for _, engine := range engineSet {
		switch engine {
		case domain.EngineGoogle:
			hasGoogle = true
		case domain.EngineIndexNow:
			hasIndexNow = true
		}
	}
	switch {
	case hasGoogle && !hasIndexNow:
		return domain.MethodGoogle
	case hasIndexNow && !hasGoogle:
		return domain.MethodIndexNow
	default:
		return domain.MethodBoth
	}
}
