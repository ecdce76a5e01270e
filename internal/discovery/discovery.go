// Package discovery finds indexable URLs by monitoring the sitemaps
// registered for a site and records them as pending pages for the
// submission pipeline.
package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/pageindexer/internal/database"
	"github.com/jonesrussell/pageindexer/internal/domain"
	"github.com/jonesrussell/pageindexer/internal/engines"
	"github.com/jonesrussell/pageindexer/internal/logger"
	"github.com/jonesrussell/pageindexer/internal/metrics"
	"github.com/jonesrussell/pageindexer/internal/sitemap"
)

// Page metadata keys written by sitemap discovery.
const (
	MetadataSourceSitemapKey = "source_sitemap"
	MetadataLastModKey       = "sitemap_lastmod"
	MetadataPriorityKey      = "sitemap_priority"
)

// PageStore is the page registry surface discovery depends on.
// *database.PageRepository implements it.
type PageStore interface {
	Upsert(ctx context.Context, params database.UpsertParams) (*domain.Page, bool, error)
	ListByStatus(ctx context.Context, status string, limit int) ([]*domain.Page, error)
}

// SitemapStore is the sitemap registry surface discovery depends on.
// *database.SitemapRepository implements it.
type SitemapStore interface {
	Upsert(ctx context.Context, siteID, sitemapURL, docType string) (*domain.Sitemap, error)
	MarkChecked(ctx context.Context, id string, pageCount int) error
	ListBySite(ctx context.Context, siteID string) ([]*domain.Sitemap, error)
}

// SitemapLister reports the sitemaps the inspection service knows for a
// property.
type SitemapLister interface {
	ListSitemaps(ctx context.Context, siteURL string) engines.SitemapsResult
}

// Resolver fetches and flattens sitemap documents.
type Resolver interface {
	Resolve(ctx context.Context, sitemapURL string) sitemap.Result
}

// Config controls sitemap recheck frequency.
type Config struct {
	// Recheck is how long a checked sitemap stays fresh. A monitor pass
	// skips fresh sitemaps unless forced.
	Recheck time.Duration
}

// Service runs sitemap discovery for a site.
type Service struct {
	cfg      Config
	pages    PageStore
	sitemaps SitemapStore
	lister   SitemapLister
	resolver Resolver
	metrics  *metrics.Metrics
	log      logger.Logger
	now      func() time.Time
}

// New creates a discovery service.
func New(cfg Config, pages PageStore, sitemaps SitemapStore, lister SitemapLister, resolver Resolver, m *metrics.Metrics, log logger.Logger) *Service {
	return &Service{
		cfg:      cfg,
		pages:    pages,
		sitemaps: sitemaps,
		lister:   lister,
		resolver: resolver,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// SitemapReport is the monitor outcome for one sitemap document.
type SitemapReport struct {
	SitemapURL string `json:"sitemap_url"`
	Skipped    bool   `json:"skipped"`
	URLsFound  int    `json:"urls_found"`
	PagesAdded int    `json:"pages_added"`
	Error      string `json:"error,omitempty"`
}

// MonitorSummary aggregates one monitor pass.
type MonitorSummary struct {
	Sitemaps   []SitemapReport `json:"sitemaps"`
	URLsFound  int             `json:"urls_found"`
	PagesAdded int             `json:"pages_added"`
}

// Monitor refreshes the site's sitemap registry from the inspection
// service, resolves every sitemap due for a check, and records the URLs
// found as pending pages. Sitemaps checked within the recheck window are
// skipped unless force is set. One failed sitemap never aborts the rest.
func (s *Service) Monitor(ctx context.Context, site *domain.Site, force bool) (*MonitorSummary, error) {
	if site == nil {
		return nil, fmt.Errorf("sitemap discovery requires a site")
	}

	listed := s.lister.ListSitemaps(ctx, site.CanonicalURL)
	if listed.Success {
		for _, entry := range listed.Sitemaps {
			docType := domain.SitemapTypeSitemap
			if entry.IsSitemapsIndex {
				docType = domain.SitemapTypeIndex
			}
			if _, err := s.sitemaps.Upsert(ctx, site.ID, entry.Path, docType); err != nil {
				s.log.Error("sitemap upsert failed",
					logger.String("sitemap_url", entry.Path), logger.Err(err))
			}
		}
	} else {
		s.log.Warn("sitemap listing unavailable, using registered sitemaps",
			logger.String("site", site.CanonicalURL),
			logger.String("error", listed.Error))
	}

	registered, err := s.sitemaps.ListBySite(ctx, site.ID)
	if err != nil {
		return nil, fmt.Errorf("list sitemaps: %w", err)
	}

	summary := &MonitorSummary{}
	for _, doc := range registered {
		report := s.monitorOne(ctx, site, doc, force)
		summary.Sitemaps = append(summary.Sitemaps, report)
		summary.URLsFound += report.URLsFound
		summary.PagesAdded += report.PagesAdded
	}

	s.log.Info("sitemap monitor pass finished",
		logger.String("site", site.CanonicalURL),
		logger.Int("sitemaps", len(summary.Sitemaps)),
		logger.Int("urls_found", summary.URLsFound),
		logger.Int("pages_added", summary.PagesAdded))

	return summary, nil
}

func (s *Service) monitorOne(ctx context.Context, site *domain.Site, doc *domain.Sitemap, force bool) SitemapReport {
	report := SitemapReport{SitemapURL: doc.SitemapURL}

	if !force && doc.LastCheckedAt != nil && s.now().Sub(*doc.LastCheckedAt) < s.cfg.Recheck {
		report.Skipped = true
		return report
	}

	result := s.resolver.Resolve(ctx, doc.SitemapURL)
	status := "success"
	if !result.Success {
		status = "failure"
	}
	s.metrics.SitemapsResolved.WithLabelValues(status).Inc()

	if !result.Success {
		report.Error = result.Error
		s.log.Warn("sitemap resolution failed",
			logger.String("sitemap_url", doc.SitemapURL),
			logger.String("error", result.Error))
		return report
	}

	report.URLsFound = len(result.URLs)
	s.metrics.URLsDiscovered.Add(float64(len(result.URLs)))

	for _, u := range result.URLs {
		metadata := domain.JSONBMap{MetadataSourceSitemapKey: doc.SitemapURL}
		if u.LastMod != nil {
			metadata[MetadataLastModKey] = u.LastMod.Format(time.RFC3339)
		}
		if u.Priority != nil {
			metadata[MetadataPriorityKey] = *u.Priority
		}

		_, created, err := s.pages.Upsert(ctx, database.UpsertParams{
			SiteID:   &site.ID,
			URL:      u.Loc,
			Metadata: metadata,
		})
		if err != nil {
			s.log.Error("discovered page upsert failed",
				logger.String("url", u.Loc), logger.Err(err))
			continue
		}
		if created {
			report.PagesAdded++
		}
	}

	if err := s.sitemaps.MarkChecked(ctx, doc.ID, report.URLsFound); err != nil {
		s.log.Error("failed to mark sitemap checked",
			logger.String("sitemap_url", doc.SitemapURL), logger.Err(err))
	}

	return report
}
