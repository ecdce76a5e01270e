// Package reconcile periodically checks the authoritative indexing
// status of tracked pages against the inspection service and corrects
// the local lifecycle: confirmed pages are marked indexed, pages the
// index dropped are demoted back to pending for resubmission.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/pageindexer/internal/domain"
	"github.com/jonesrussell/pageindexer/internal/engines"
	"github.com/jonesrussell/pageindexer/internal/logger"
	"github.com/jonesrussell/pageindexer/internal/metrics"
)

// Sweep outcomes, also used as the inspection metric label.
const (
	outcomeIndexed = "indexed"
	outcomeDemoted = "demoted"
	outcomeSkipped = "skipped"
	outcomeError   = "error"
)

// PageSource is the page registry surface the reconciler depends on.
// *database.PageRepository implements it.
type PageSource interface {
	ListStalest(ctx context.Context, siteID *string, limit int) ([]*domain.Page, error)
	MarkIndexed(ctx context.Context, pageID, engine string) error
	ResetToPending(ctx context.Context, pageID string) error
}

// Config controls sweep size and pacing. The delays keep the sweep under
// the inspection service's own quota.
type Config struct {
	// SiteURL is the fallback property scope in single-site mode.
	SiteURL string
	// Limit caps how many pages one sweep inspects.
	Limit int
	// BatchSize splits the sweep into paced batches.
	BatchSize int
	// CallDelay is the pause between consecutive inspection calls.
	CallDelay time.Duration
	// BatchDelay is the extra pause between batches.
	BatchDelay time.Duration
}

// Reconciler drives the stale-first inspection sweep.
type Reconciler struct {
	cfg     Config
	pages   PageSource
	inspect engines.Inspector
	metrics *metrics.Metrics
	log     logger.Logger
}

// New creates a reconciler.
func New(cfg Config, pages PageSource, inspect engines.Inspector, m *metrics.Metrics, log logger.Logger) *Reconciler {
	return &Reconciler{cfg: cfg, pages: pages, inspect: inspect, metrics: m, log: log}
}

// Summary aggregates one sweep's outcomes.
type Summary struct {
	Checked int `json:"checked"`
	Indexed int `json:"indexed"`
	Demoted int `json:"demoted"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Run sweeps the stalest pages for the site, inspecting each one and
// applying the verdict. An inspection failure counts as an error and the
// sweep continues; only context cancellation aborts it.
func (r *Reconciler) Run(ctx context.Context, site *domain.Site) (*Summary, error) {
	pages, err := r.pages.ListStalest(ctx, siteID(site), r.cfg.Limit)
	if err != nil {
		return nil, fmt.Errorf("list stale pages: %w", err)
	}

	summary := &Summary{}
	for i, page := range pages {
		if i > 0 {
			delay := r.cfg.CallDelay
			if r.cfg.BatchSize > 0 && i%r.cfg.BatchSize == 0 {
				delay += r.cfg.BatchDelay
			}
			if err := wait(ctx, delay); err != nil {
				return summary, err
			}
		}

		outcome := r.reconcilePage(ctx, site, page)
		summary.Checked++
		switch outcome {
		case outcomeIndexed:
			summary.Indexed++
		case outcomeDemoted:
			summary.Demoted++
		case outcomeSkipped:
			summary.Skipped++
		default:
			summary.Errors++
		}
		r.metrics.InspectionsTotal.WithLabelValues(outcome).Inc()
	}

	r.log.Info("reconciliation sweep finished",
		logger.Int("checked", summary.Checked),
		logger.Int("indexed", summary.Indexed),
		logger.Int("demoted", summary.Demoted),
		logger.Int("skipped", summary.Skipped),
		logger.Int("errors", summary.Errors))

	return summary, nil
}

// reconcilePage inspects one page and applies the verdict:
// PASS or INDEXED confirms the page, FAIL or NOT_INDEXED demotes it back
// to pending, anything else (including missing inspection data) is
// skipped untouched.
func (r *Reconciler) reconcilePage(ctx context.Context, site *domain.Site, page *domain.Page) string {
	res := r.inspect.Inspect(ctx, r.siteURL(site), page.URL)
	if !res.Success {
		r.log.Warn("inspection failed",
			logger.String("url", page.URL), logger.String("error", res.Error))
		return outcomeError
	}

	switch {
	case res.Verdict == engines.VerdictPass || res.CoverageState == engines.CoverageIndexed:
		if err := r.pages.MarkIndexed(ctx, page.ID, domain.EngineGoogle); err != nil {
			r.log.Error("failed to mark page indexed",
				logger.String("page_id", page.ID), logger.Err(err))
			return outcomeError
		}
		return outcomeIndexed

	case res.Verdict == engines.VerdictFail || res.CoverageState == engines.CoverageNotIndexed:
		if err := r.pages.ResetToPending(ctx, page.ID); err != nil {
			r.log.Error("failed to demote page",
				logger.String("page_id", page.ID), logger.Err(err))
			return outcomeError
		}
		r.log.Info("page demoted to pending",
			logger.String("url", page.URL),
			logger.String("coverage_state", res.CoverageState))
		return outcomeDemoted

	default:
		return outcomeSkipped
	}
}

func (r *Reconciler) siteURL(site *domain.Site) string {
	if site != nil && site.CanonicalURL != "" {
		return site.CanonicalURL
	}
	return r.cfg.SiteURL
}

func siteID(site *domain.Site) *string {
	if site == nil {
		return nil
	}
	return &site.ID
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
