package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/pageindexer/internal/config"
	"github.com/jonesrussell/pageindexer/internal/database"
	"github.com/jonesrussell/pageindexer/internal/discovery"
	"github.com/jonesrussell/pageindexer/internal/domain"
	"github.com/jonesrussell/pageindexer/internal/engines"
	"github.com/jonesrussell/pageindexer/internal/engines/google"
	"github.com/jonesrussell/pageindexer/internal/engines/indexnow"
	"github.com/jonesrussell/pageindexer/internal/engines/searchconsole"
	"github.com/jonesrussell/pageindexer/internal/logger"
	"github.com/jonesrussell/pageindexer/internal/metrics"
	"github.com/jonesrussell/pageindexer/internal/orchestrator"
	"github.com/jonesrussell/pageindexer/internal/ratelimit"
	"github.com/jonesrussell/pageindexer/internal/reconcile"
	"github.com/jonesrussell/pageindexer/internal/sitemap"
)

// googleTokenEnv names the environment variable carrying the OAuth
// access token for the Indexing and Search Console APIs. Minting and
// refreshing the token from the service account happens outside this
// service.
const googleTokenEnv = "PAGEINDEXER_GOOGLE_TOKEN"

// Deps holds the shared collaborators built once per command run.
type Deps struct {
	Config *config.Config
	Logger logger.Logger
	DB     *sqlx.DB

	Pages    *database.PageRepository
	Jobs     *database.JobRepository
	Sites    *database.SiteRepository
	Sitemaps *database.SitemapRepository

	Metrics  *metrics.Metrics
	Limiter  *ratelimit.Limiter
	Resolver *sitemap.Resolver

	Google   *google.Adapter
	IndexNow *indexnow.Adapter
	Console  *searchconsole.Client

	Orchestrator *orchestrator.Orchestrator
	Discovery    *discovery.Service
	AutoIndexer  *discovery.AutoIndexer
	Reconciler   *reconcile.Reconciler
}

// newDeps loads configuration and wires the full dependency graph.
// The returned cleanup closes the database and flushes the logger.
func newDeps(ctx context.Context) (*Deps, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if debug {
		cfg.Log.Level = "debug"
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		_ = log.Sync()
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	cleanup := func() {
		_ = db.Close()
		_ = log.Sync()
	}

	if err := database.EnsureSchema(ctx, db); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}

	deps := &Deps{
		Config:   cfg,
		Logger:   log,
		DB:       db,
		Pages:    database.NewPageRepository(db),
		Jobs:     database.NewJobRepository(db),
		Sites:    database.NewSiteRepository(db),
		Sitemaps: database.NewSitemapRepository(db),
		Metrics:  metrics.New(),
		Resolver: sitemap.NewResolver(log),
	}

	deps.Limiter = ratelimit.New(map[string]ratelimit.Caps{
		domain.EngineGoogle: {
			PerMinute: cfg.RateLimits.Google.PerMinute,
			PerDay:    cfg.RateLimits.Google.PerDay,
		},
		domain.EngineIndexNow: {
			PerMinute: cfg.RateLimits.IndexNow.PerMinute,
			PerDay:    cfg.RateLimits.IndexNow.PerDay,
		},
	})

	tokens := newTokenSource()
	deps.Google = google.New(cfg.Engines.Google.Endpoint, tokens, log)
	deps.IndexNow = indexnow.New(indexnow.Config{
		Enabled:     cfg.Engines.IndexNow.Enabled,
		Endpoints:   cfg.Engines.IndexNow.EndpointMap(),
		KeyLocation: cfg.Engines.IndexNow.KeyLocation,
	}, log)
	deps.Console = searchconsole.New(searchconsole.Config{}, tokens, log)

	deps.Orchestrator = orchestrator.New(orchestrator.Config{
		SiteURL:          cfg.Engines.Google.SiteURL,
		IndexNowKey:      cfg.Engines.IndexNow.Key,
		IndexNowEndpoint: cfg.Engines.IndexNow.DefaultEndpoint,
	}, orchestrator.Deps{
		Pages:    deps.Pages,
		Ledger:   deps.Jobs,
		Sites:    deps.Sites,
		Resolver: deps.Resolver,
		Limiter:  deps.Limiter,
		Google:   deps.Google,
		IndexNow: deps.IndexNow,
		Inspect:  deps.Console,
		Metrics:  deps.Metrics,
		Logger:   log,
	})

	deps.Discovery = discovery.New(
		discovery.Config{Recheck: cfg.AutoIndexing.SitemapRecheck},
		deps.Pages, deps.Sitemaps, deps.Console, deps.Resolver, deps.Metrics, log,
	)

	deps.AutoIndexer = discovery.NewAutoIndexer(
		discovery.AutoIndexConfig{MaxPagesPerBatch: cfg.AutoIndexing.MaxPagesPerBatch},
		deps.Pages, deps.Orchestrator, log,
	)

	deps.Reconciler = reconcile.New(reconcile.Config{
		SiteURL:    cfg.Engines.Google.SiteURL,
		Limit:      cfg.Reconcile.Limit,
		BatchSize:  cfg.Reconcile.BatchSize,
		CallDelay:  cfg.Reconcile.CallDelay,
		BatchDelay: cfg.Reconcile.BatchDelay,
	}, deps.Pages, deps.Console, deps.Metrics, log)

	return deps, cleanup, nil
}

// newTokenSource reads the externally minted access token from the
// environment on every call, so a token rotated by a sidecar is picked
// up without restarting.
func newTokenSource() engines.TokenSource {
	return engines.TokenSourceFunc(func(ctx context.Context) (string, error) {
		if token := os.Getenv(googleTokenEnv); token != "" {
			return token, nil
		}
		return "", fmt.Errorf("%s is not set", googleTokenEnv)
	})
}

// resolveSite resolves the --site flag value, accepting a site id or a
// canonical URL. An empty value means single-site mode.
func resolveSite(ctx context.Context, deps *Deps, ref string) (*domain.Site, error) {
	if ref == "" {
		return nil, nil
	}

	site, err := deps.Sites.GetByCanonicalURL(ctx, ref)
	if err == nil {
		return site, nil
	}
	if !errors.Is(err, database.ErrSiteNotFound) {
		return nil, err
	}

	site, err = deps.Sites.GetByID(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("unknown site %q: %w", ref, err)
	}
	return site, nil
}
