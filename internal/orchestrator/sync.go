package orchestrator

import (
	"context"
	"fmt"

	"github.com/jonesrussell/pageindexer/internal/domain"
	"github.com/jonesrussell/pageindexer/internal/engines"
	"github.com/jonesrussell/pageindexer/internal/logger"
	"github.com/jonesrussell/pageindexer/internal/sitemap"
)

// CheckStatus asks the inspection service for the authoritative indexing
// status of one URL within the site's property scope.
func (o *Orchestrator) CheckStatus(ctx context.Context, site *domain.Site, url string) engines.InspectResult {
	return o.inspect.Inspect(ctx, o.siteURL(site), url)
}

// SitesSync is the outcome of mirroring the inspection service's
// property list into the site registry.
type SitesSync struct {
	Sites    []*domain.Site      `json:"sites"`
	Listed   []engines.SiteEntry `json:"listed"`
	Failures map[string]string   `json:"failures,omitempty"`
}

// SyncSites mirrors the properties the inspection service reports into
// the site registry. Existing rows keep their credentials and settings.
func (o *Orchestrator) SyncSites(ctx context.Context) (*SitesSync, error) {
	listed := o.inspect.ListSites(ctx)
	if !listed.Success {
		return nil, fmt.Errorf("list sites: %s", listed.Error)
	}

	sync := &SitesSync{Listed: listed.Sites, Failures: make(map[string]string)}
	for _, entry := range listed.Sites {
		site, err := o.sites.Upsert(ctx, entry.URL, entry.URL)
		if err != nil {
			sync.Failures[entry.URL] = err.Error()
			o.log.Error("site upsert failed",
				logger.String("url", entry.URL), logger.Err(err))
			continue
		}
		sync.Sites = append(sync.Sites, site)
	}
	return sync, nil
}

// SyncSitemaps lists the sitemaps the inspection service knows for the
// site's property.
func (o *Orchestrator) SyncSitemaps(ctx context.Context, site *domain.Site) engines.SitemapsResult {
	return o.inspect.ListSitemaps(ctx, o.siteURL(site))
}

// ParseSitemap resolves a sitemap URL, recursing through index documents,
// and returns the flattened URL set without touching the page registry.
func (o *Orchestrator) ParseSitemap(ctx context.Context, sitemapURL string) sitemap.Result {
	result := o.resolver.Resolve(ctx, sitemapURL)
	status := "success"
	if !result.Success {
		status = "failure"
	}
	o.metrics.SitemapsResolved.WithLabelValues(status).Inc()
	return result
}
