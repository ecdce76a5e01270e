package discovery

import (
	"context"

	"github.com/jonesrussell/pageindexer/internal/database"
	"github.com/jonesrussell/pageindexer/internal/domain"
	"github.com/jonesrussell/pageindexer/internal/logger"
)

// ImportSummary aggregates one bulk import.
type ImportSummary struct {
	Created  int               `json:"created"`
	Reset    int               `json:"reset"`
	Failures map[string]string `json:"failures,omitempty"`
}

// ImportURLs registers URLs for indexing in bulk. Existing pages are
// reset to pending so the next submission round picks them up again;
// that reset is the point of re-importing.
func (s *Service) ImportURLs(ctx context.Context, site *domain.Site, urls []string, method string) *ImportSummary {
	summary := &ImportSummary{Failures: make(map[string]string)}

	for _, url := range urls {
		params := database.UpsertParams{
			URL:         url,
			Method:      method,
			ResetStatus: true,
		}
		if site != nil {
			params.SiteID = &site.ID
		}

		_, created, err := s.pages.Upsert(ctx, params)
		if err != nil {
			summary.Failures[url] = err.Error()
			s.log.Error("import upsert failed",
				logger.String("url", url), logger.Err(err))
			continue
		}
		if created {
			summary.Created++
		} else {
			summary.Reset++
		}
	}

	s.log.Info("bulk import finished",
		logger.Int("created", summary.Created),
		logger.Int("reset", summary.Reset),
		logger.Int("failed", len(summary.Failures)))

	return summary
}

// ImportIndexables registers application records that expose an
// indexable URL, such as published articles or product pages.
func (s *Service) ImportIndexables(ctx context.Context, site *domain.Site, items []domain.Indexable, method string) *ImportSummary {
	urls := make([]string, 0, len(items))
	for _, item := range items {
		if url := item.IndexableURL(); url != "" {
			urls = append(urls, url)
		}
	}
	return s.ImportURLs(ctx, site, urls, method)
}
