package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/pageindexer/internal/domain"
	"github.com/jonesrussell/pageindexer/internal/logger"
	"github.com/jonesrussell/pageindexer/internal/sitemap"
)

// ErrNotAttempted marks URLs past the push-notification batch cap. They
// stay pending and a later call picks them up.
const ErrNotAttempted = "not_attempted"

// bulkSubmitDelay paces sequential push-notification calls inside one
// bulk round.
var bulkSubmitDelay = time.Second

// BulkEngineSummary aggregates one engine's outcomes across a bulk round.
type BulkEngineSummary struct {
	Attempted    int `json:"attempted"`
	Succeeded    int `json:"succeeded"`
	Failed       int `json:"failed"`
	RateLimited  int `json:"rate_limited"`
	NotAttempted int `json:"not_attempted"`
}

// BulkResult is the aggregate outcome of a bulk submission round. Every
// input URL appears either in Pages or in Skipped; a failing URL never
// aborts the rest of the round.
type BulkResult struct {
	Engines map[string]*BulkEngineSummary      `json:"engines"`
	Pages   map[string]map[string]EngineResult `json:"pages"`
	Skipped map[string]string                  `json:"skipped,omitempty"`
}

func (r *BulkResult) record(url string, res EngineResult) {
	if _, ok := r.Pages[url]; !ok {
		r.Pages[url] = make(map[string]EngineResult)
	}
	r.Pages[url][res.Engine] = res

	summary, ok := r.Engines[res.Engine]
	if !ok {
		summary = &BulkEngineSummary{}
		r.Engines[res.Engine] = summary
	}
	switch {
	case res.Success:
		summary.Attempted++
		summary.Succeeded++
	case res.Error == ErrRateLimited:
		summary.RateLimited++
	case res.Error == ErrNotAttempted:
		summary.NotAttempted++
	default:
		summary.Attempted++
		summary.Failed++
	}
}

// BulkIndex submits many URLs in one round. The push-notification engine
// takes at most googleBatchCap URLs with pacing between calls; the
// key-based engine batches URLs grouped by host, one server-side call
// per host group, with batch-sized rate-limit accounting.
func (o *Orchestrator) BulkIndex(ctx context.Context, site *domain.Site, urls []string, engineSet []string) (*BulkResult, error) {
	result := &BulkResult{
		Engines: make(map[string]*BulkEngineSummary),
		Pages:   make(map[string]map[string]EngineResult),
		Skipped: make(map[string]string),
	}

	urls = dedupe(urls)
	pages := make(map[string]*domain.Page, len(urls))
	accepted := make([]string, 0, len(urls))
	for _, url := range urls {
		page, _, err := o.pages.Upsert(ctx, upsertFor(site, url, engineSet))
		if err != nil {
			result.Skipped[url] = fmt.Sprintf("upsert page: %v", err)
			continue
		}
		pages[url] = page
		accepted = append(accepted, url)
	}

	for _, engine := range o.resolveEngines(site, engineSet) {
		switch engine {
		case domain.EngineGoogle:
			o.bulkGoogle(ctx, site, accepted, pages, result)
		case domain.EngineIndexNow:
			o.bulkIndexNow(ctx, site, accepted, pages, result)
		}
	}

	for _, url := range accepted {
		if err := o.transitionAfterBulk(ctx, pages[url].ID, result.Pages[url]); err != nil {
			o.log.Error("bulk page transition failed",
				logger.String("url", url), logger.Err(err))
		}
	}

	return result, ctx.Err()
}

// bulkGoogle submits the first googleBatchCap URLs one call at a time
// with pacing; the remainder is reported not attempted.
func (o *Orchestrator) bulkGoogle(ctx context.Context, site *domain.Site, urls []string, pages map[string]*domain.Page, result *BulkResult) {
	for i, url := range urls {
		if i >= googleBatchCap {
			result.record(url, EngineResult{Engine: domain.EngineGoogle, URL: url, Error: ErrNotAttempted})
			continue
		}
		if i > 0 {
			select {
			case <-ctx.Done():
				result.record(url, EngineResult{Engine: domain.EngineGoogle, URL: url, Error: ctx.Err().Error()})
				continue
			case <-time.After(bulkSubmitDelay):
			}
		}
		result.record(url, o.SubmitEngine(ctx, site, pages[url], domain.EngineGoogle))
	}
}

// bulkIndexNow groups URLs by host and issues one server-side batch call
// per group. Rate-limit budget is checked and consumed at group size.
func (o *Orchestrator) bulkIndexNow(ctx context.Context, site *domain.Site, urls []string, pages map[string]*domain.Page, result *BulkResult) {
	engine := domain.EngineIndexNow
	key := o.indexNowKey(site)

	for _, group := range groupByHost(urls) {
		if group.err != nil {
			for _, url := range group.urls {
				result.record(url, EngineResult{Engine: engine, URL: url, Error: group.err.Error()})
			}
			continue
		}

		if !o.limiter.AllowN(engine, len(group.urls)) {
			o.metrics.RateLimitedTotal.WithLabelValues(engine).Inc()
			o.log.Warn("batch rate limited",
				logger.String("engine", engine),
				logger.String("host", group.host),
				logger.Int("count", len(group.urls)))
			for _, url := range group.urls {
				result.record(url, EngineResult{Engine: engine, URL: url, Error: ErrRateLimited})
			}
			continue
		}

		jobs := make(map[string]*domain.IndexingJob, len(group.urls))
		for _, url := range group.urls {
			job, err := o.ledger.RecordAttempt(ctx, pages[url].ID, engine, domain.JSONBMap{"url": url, "host": group.host})
			if err == nil {
				jobs[url] = job
			}
		}

		batch := o.indexnow.SubmitMany(ctx, group.urls, group.host, key, o.cfg.IndexNowEndpoint)
		if batch.Success {
			o.limiter.ConsumeN(engine, len(group.urls))
		}
		response := domain.JSONBMap{
			"endpoint": batch.Endpoint,
			"status":   batch.Status,
			"count":    batch.Count,
		}
		for _, url := range group.urls {
			if job, ok := jobs[url]; ok {
				o.closeLedgerRow(ctx, job.ID, batch.Success, batch.Error, response)
			}
			result.record(url, EngineResult{
				Engine:   engine,
				Success:  batch.Success,
				URL:      url,
				Error:    batch.Error,
				Response: response,
			})
			o.metrics.RecordSubmission(engine, batch.Success)
		}
	}
}

// closeLedgerRow finishes an open attempt row; a bookkeeping failure is
// logged, never propagated into the submission outcome.
func (o *Orchestrator) closeLedgerRow(ctx context.Context, jobID string, success bool, errorMessage string, response domain.JSONBMap) {
	var err error
	if success {
		err = o.ledger.Complete(ctx, jobID, response)
	} else {
		err = o.ledger.Fail(ctx, jobID, errorMessage, response)
	}
	if err != nil {
		o.log.Error("failed to close ledger row",
			logger.String("job_id", jobID), logger.Err(err))
	}
}

// transitionAfterBulk applies the per-page outcome of a bulk round. Soft
// skips (rate limited, past the cap) leave the page pending so a later
// round retries it.
func (o *Orchestrator) transitionAfterBulk(ctx context.Context, pageID string, results map[string]EngineResult) error {
	var attempted, succeeded bool
	for _, res := range results {
		switch {
		case res.Success:
			attempted = true
			succeeded = true
		case res.Error == ErrRateLimited, res.Error == ErrNotAttempted:
		default:
			attempted = true
		}
	}

	switch {
	case succeeded:
		return o.pages.MarkSubmitted(ctx, pageID)
	case attempted:
		return o.pages.MarkFailed(ctx, pageID, firstFailure(results))
	default:
		return nil
	}
}

func firstFailure(results map[string]EngineResult) string {
	for _, res := range results {
		if !res.Success && res.Error != "" && res.Error != ErrRateLimited && res.Error != ErrNotAttempted {
			return fmt.Sprintf("%s: %s", res.Engine, res.Error)
		}
	}
	return "submission failed"
}

type hostGroup struct {
	host string
	urls []string
	err  error
}

// groupByHost buckets URLs by scheme://host, preserving first-seen group
// order. Unparseable URLs form their own error group.
func groupByHost(urls []string) []hostGroup {
	index := make(map[string]int)
	groups := make([]hostGroup, 0, 1)
	for _, url := range urls {
		host, err := sitemap.ExtractHost(url)
		groupKey := host
		if err != nil {
			groupKey = "invalid:" + url
		}
		i, ok := index[groupKey]
		if !ok {
			i = len(groups)
			index[groupKey] = i
			groups = append(groups, hostGroup{host: host, err: err})
		}
		groups[i].urls = append(groups[i].urls, url)
	}
	return groups
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, url := range urls {
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		out = append(out, url)
	}
	return out
}
