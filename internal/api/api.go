// Package api implements the HTTP API for the indexing service.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/pageindexer/internal/discovery"
	"github.com/jonesrussell/pageindexer/internal/domain"
	"github.com/jonesrussell/pageindexer/internal/engines"
	"github.com/jonesrussell/pageindexer/internal/logger"
	"github.com/jonesrussell/pageindexer/internal/metrics"
	"github.com/jonesrussell/pageindexer/internal/orchestrator"
	"github.com/jonesrussell/pageindexer/internal/sitemap"
)

// Indexer is the coordination surface the handlers call.
// *orchestrator.Orchestrator implements it.
type Indexer interface {
	Index(ctx context.Context, site *domain.Site, url string, engineSet []string) (*orchestrator.IndexResult, error)
	BulkIndex(ctx context.Context, site *domain.Site, urls []string, engineSet []string) (*orchestrator.BulkResult, error)
	CheckStatus(ctx context.Context, site *domain.Site, url string) engines.InspectResult
	ParseSitemap(ctx context.Context, sitemapURL string) sitemap.Result
}

// PageReader is the read surface for page endpoints.
// *database.PageRepository implements it.
type PageReader interface {
	GetByID(ctx context.Context, id string) (*domain.Page, error)
	ListByStatus(ctx context.Context, status string, limit int) ([]*domain.Page, error)
	CountByStatus(ctx context.Context, status string) (int, error)
	History(ctx context.Context, pageID string, limit int) ([]*domain.StatusHistory, error)
}

// JobReader is the read surface for the attempt ledger endpoints.
// *database.JobRepository implements it.
type JobReader interface {
	ListByPage(ctx context.Context, pageID string, limit int) ([]*domain.IndexingJob, error)
}

// SiteManager is the site registry surface for site endpoints.
// *database.SiteRepository implements it.
type SiteManager interface {
	List(ctx context.Context) ([]*domain.Site, error)
	GetByID(ctx context.Context, id string) (*domain.Site, error)
	Upsert(ctx context.Context, canonicalURL, name string) (*domain.Site, error)
	SetAutoIndexing(ctx context.Context, id string, enabled bool) error
	SetIndexNowKey(ctx context.Context, id string, key *string) error
}

// Monitor runs sitemap discovery. *discovery.Service implements it.
type Monitor interface {
	Monitor(ctx context.Context, site *domain.Site, force bool) (*discovery.MonitorSummary, error)
}

// Publisher accepts page lifecycle notifications from applications.
// *events.Publisher implements it; nil disables the endpoint.
type Publisher interface {
	PagePublished(ctx context.Context, siteID *string, url, method string) error
}

// Deps holds the collaborators the router wires into the handlers.
type Deps struct {
	Logger    logger.Logger
	Indexer   Indexer
	Pages     PageReader
	Jobs      JobReader
	Sites     SiteManager
	Monitor   Monitor
	Publisher Publisher
}

// SetupRouter creates and configures the Gin router with all routes.
func SetupRouter(deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(deps.Logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	pages := &PagesHandler{pages: deps.Pages, jobs: deps.Jobs, sites: deps.Sites}
	indexing := &IndexingHandler{indexer: deps.Indexer, sites: deps.Sites, publisher: deps.Publisher}
	sitemaps := &SitemapsHandler{indexer: deps.Indexer, sites: deps.Sites, monitor: deps.Monitor}
	sites := &SitesHandler{sites: deps.Sites}

	v1 := router.Group("/api/v1")
	{
		v1.POST("/index", indexing.Index)
		v1.POST("/bulk-index", indexing.BulkIndex)
		v1.GET("/status", indexing.Status)
		v1.POST("/events/published", indexing.PagePublished)

		v1.GET("/pages", pages.List)
		v1.GET("/pages/:id", pages.Get)
		v1.GET("/pages/:id/history", pages.History)
		v1.GET("/pages/:id/jobs", pages.Jobs)

		v1.POST("/sitemaps/parse", sitemaps.Parse)
		v1.POST("/sitemaps/monitor", sitemaps.Monitor)

		v1.GET("/sites", sites.List)
		v1.GET("/sites/:id", sites.Get)
		v1.POST("/sites", sites.Upsert)
		v1.PUT("/sites/:id/auto-indexing", sites.SetAutoIndexing)
		v1.PUT("/sites/:id/indexnow-key", sites.SetIndexNowKey)
	}

	return router
}

// loggingMiddleware logs each request with method, path, status and
// duration.
func loggingMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("duration", time.Since(start)))
	}
}
