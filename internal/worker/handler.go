package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonesrussell/pageindexer/internal/database"
	"github.com/jonesrussell/pageindexer/internal/domain"
	"github.com/jonesrussell/pageindexer/internal/orchestrator"
	"github.com/jonesrussell/pageindexer/internal/queue"
)

// PageSource is the page lookup and transition surface the handler
// depends on. *database.PageRepository implements it.
type PageSource interface {
	GetByID(ctx context.Context, id string) (*domain.Page, error)
	MarkSubmitted(ctx context.Context, pageID string) error
	MarkFailed(ctx context.Context, pageID, errorMessage string) error
}

// SiteSource loads the owning site for a work item.
// *database.SiteRepository implements it.
type SiteSource interface {
	GetByID(ctx context.Context, id string) (*domain.Site, error)
}

// Dispatcher performs one (page, engine) submission.
// *orchestrator.Orchestrator implements it.
type Dispatcher interface {
	SubmitEngine(ctx context.Context, site *domain.Site, page *domain.Page, engine string) orchestrator.EngineResult
}

// SubmissionHandler resolves a work item to its page and site and runs
// the single-engine submission.
type SubmissionHandler struct {
	pages      PageSource
	sites      SiteSource
	dispatcher Dispatcher
}

// NewSubmissionHandler creates the queue handler.
func NewSubmissionHandler(pages PageSource, sites SiteSource, dispatcher Dispatcher) *SubmissionHandler {
	return &SubmissionHandler{pages: pages, sites: sites, dispatcher: dispatcher}
}

// Handle processes one work item. A page that disappeared since enqueue
// is treated as done. A rate-limited submission is reported as
// retry-later so the item is redelivered; any other failure marks the
// page failed and is final.
func (h *SubmissionHandler) Handle(ctx context.Context, item *queue.WorkItem) error {
	page, err := h.pages.GetByID(ctx, item.PageID)
	if err != nil {
		if errors.Is(err, database.ErrPageNotFound) {
			return nil
		}
		return fmt.Errorf("load page %s: %w", item.PageID, err)
	}

	var site *domain.Site
	if item.SiteID != nil {
		site, err = h.sites.GetByID(ctx, *item.SiteID)
		if err != nil && !errors.Is(err, database.ErrSiteNotFound) {
			return fmt.Errorf("load site %s: %w", *item.SiteID, err)
		}
	}

	result := h.dispatcher.SubmitEngine(ctx, site, page, item.Engine)

	switch {
	case result.Success:
		if err := h.pages.MarkSubmitted(ctx, page.ID); err != nil {
			return fmt.Errorf("mark submitted: %w", err)
		}
		return nil

	case result.Error == orchestrator.ErrRateLimited:
		return ErrRetryLater

	default:
		if err := h.pages.MarkFailed(ctx, page.ID, fmt.Sprintf("%s: %s", item.Engine, result.Error)); err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		return fmt.Errorf("%s submission failed: %s", item.Engine, result.Error)
	}
}
