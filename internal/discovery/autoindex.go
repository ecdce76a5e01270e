package discovery

import (
	"context"
	"fmt"

	"github.com/jonesrussell/pageindexer/internal/domain"
	"github.com/jonesrussell/pageindexer/internal/logger"
	"github.com/jonesrussell/pageindexer/internal/orchestrator"
)

// Submitter is the bulk submission surface auto-indexing depends on.
// *orchestrator.Orchestrator implements it.
type Submitter interface {
	BulkIndex(ctx context.Context, site *domain.Site, urls []string, engineSet []string) (*orchestrator.BulkResult, error)
}

// AutoIndexConfig bounds one automatic submission round.
type AutoIndexConfig struct {
	MaxPagesPerBatch int
}

// AutoIndexer drains pending pages into bulk submission rounds. It is
// the unattended half of the pipeline: discovery records pages, the
// auto-indexer pushes them out in bounded batches.
type AutoIndexer struct {
	cfg       AutoIndexConfig
	pages     PageStore
	submitter Submitter
	log       logger.Logger
}

// NewAutoIndexer creates an auto-indexer.
func NewAutoIndexer(cfg AutoIndexConfig, pages PageStore, submitter Submitter, log logger.Logger) *AutoIndexer {
	return &AutoIndexer{cfg: cfg, pages: pages, submitter: submitter, log: log}
}

// AutoIndexSummary aggregates one automatic submission round.
type AutoIndexSummary struct {
	PagesSelected int                                 `json:"pages_selected"`
	Results       map[string]*orchestrator.BulkResult `json:"results"`
}

// Run selects up to MaxPagesPerBatch pending pages and submits them,
// one bulk round per indexing method so each page only reaches the
// engines it was registered for. A site with automatic indexing turned
// off yields an empty round.
func (a *AutoIndexer) Run(ctx context.Context, site *domain.Site) (*AutoIndexSummary, error) {
	summary := &AutoIndexSummary{Results: make(map[string]*orchestrator.BulkResult)}

	if site != nil && !site.AutoIndexingEnabled {
		a.log.Info("automatic indexing disabled for site",
			logger.String("site", site.CanonicalURL))
		return summary, nil
	}

	pages, err := a.pages.ListByStatus(ctx, domain.PageStatusPending, a.cfg.MaxPagesPerBatch)
	if err != nil {
		return nil, fmt.Errorf("list pending pages: %w", err)
	}
	summary.PagesSelected = len(pages)

	byMethod := make(map[string][]string)
	for _, page := range pages {
		byMethod[page.IndexingMethod] = append(byMethod[page.IndexingMethod], page.URL)
	}

	for method, urls := range byMethod {
		result, err := a.submitter.BulkIndex(ctx, site, urls, (&domain.Page{IndexingMethod: method}).Engines())
		if err != nil {
			return summary, fmt.Errorf("bulk submit %s pages: %w", method, err)
		}
		summary.Results[method] = result
	}

	return summary, nil
}
