package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/pageindexer/internal/api"
	"github.com/jonesrussell/pageindexer/internal/discovery"
	"github.com/jonesrussell/pageindexer/internal/domain"
	"github.com/jonesrussell/pageindexer/internal/engines"
	"github.com/jonesrussell/pageindexer/internal/logger"
	"github.com/jonesrussell/pageindexer/internal/orchestrator"
	"github.com/jonesrussell/pageindexer/internal/sitemap"
)

type mockIndexer struct {
	indexFunc       func(ctx context.Context, site *domain.Site, url string, engineSet []string) (*orchestrator.IndexResult, error)
	bulkIndexFunc   func(ctx context.Context, site *domain.Site, urls []string, engineSet []string) (*orchestrator.BulkResult, error)
	checkStatusFunc func(ctx context.Context, site *domain.Site, url string) engines.InspectResult
	parseFunc       func(ctx context.Context, sitemapURL string) sitemap.Result
}

func (m *mockIndexer) Index(ctx context.Context, site *domain.Site, url string, engineSet []string) (*orchestrator.IndexResult, error) {
	return m.indexFunc(ctx, site, url, engineSet)
}

func (m *mockIndexer) BulkIndex(ctx context.Context, site *domain.Site, urls []string, engineSet []string) (*orchestrator.BulkResult, error) {
	return m.bulkIndexFunc(ctx, site, urls, engineSet)
}

func (m *mockIndexer) CheckStatus(ctx context.Context, site *domain.Site, url string) engines.InspectResult {
	return m.checkStatusFunc(ctx, site, url)
}

func (m *mockIndexer) ParseSitemap(ctx context.Context, sitemapURL string) sitemap.Result {
	return m.parseFunc(ctx, sitemapURL)
}

type mockPages struct {
	getByIDFunc       func(ctx context.Context, id string) (*domain.Page, error)
	listByStatusFunc  func(ctx context.Context, status string, limit int) ([]*domain.Page, error)
	countByStatusFunc func(ctx context.Context, status string) (int, error)
	historyFunc       func(ctx context.Context, pageID string, limit int) ([]*domain.StatusHistory, error)
}

func (m *mockPages) GetByID(ctx context.Context, id string) (*domain.Page, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockPages) ListByStatus(ctx context.Context, status string, limit int) ([]*domain.Page, error) {
	return m.listByStatusFunc(ctx, status, limit)
}

func (m *mockPages) CountByStatus(ctx context.Context, status string) (int, error) {
	return m.countByStatusFunc(ctx, status)
}

func (m *mockPages) History(ctx context.Context, pageID string, limit int) ([]*domain.StatusHistory, error) {
	return m.historyFunc(ctx, pageID, limit)
}

type mockJobs struct {
	listByPageFunc func(ctx context.Context, pageID string, limit int) ([]*domain.IndexingJob, error)
}

func (m *mockJobs) ListByPage(ctx context.Context, pageID string, limit int) ([]*domain.IndexingJob, error) {
	return m.listByPageFunc(ctx, pageID, limit)
}

type mockSites struct {
	listFunc            func(ctx context.Context) ([]*domain.Site, error)
	getByIDFunc         func(ctx context.Context, id string) (*domain.Site, error)
	upsertFunc          func(ctx context.Context, canonicalURL, name string) (*domain.Site, error)
	setAutoIndexingFunc func(ctx context.Context, id string, enabled bool) error
	setIndexNowKeyFunc  func(ctx context.Context, id string, key *string) error
}

func (m *mockSites) List(ctx context.Context) ([]*domain.Site, error) {
	return m.listFunc(ctx)
}

func (m *mockSites) GetByID(ctx context.Context, id string) (*domain.Site, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockSites) Upsert(ctx context.Context, canonicalURL, name string) (*domain.Site, error) {
	return m.upsertFunc(ctx, canonicalURL, name)
}

func (m *mockSites) SetAutoIndexing(ctx context.Context, id string, enabled bool) error {
	return m.setAutoIndexingFunc(ctx, id, enabled)
}

func (m *mockSites) SetIndexNowKey(ctx context.Context, id string, key *string) error {
	return m.setIndexNowKeyFunc(ctx, id, key)
}

type mockMonitor struct {
	monitorFunc func(ctx context.Context, site *domain.Site, force bool) (*discovery.MonitorSummary, error)
}

func (m *mockMonitor) Monitor(ctx context.Context, site *domain.Site, force bool) (*discovery.MonitorSummary, error) {
	return m.monitorFunc(ctx, site, force)
}

type mockPublisher struct {
	publishFunc func(ctx context.Context, siteID *string, url, method string) error
}

func (m *mockPublisher) PagePublished(ctx context.Context, siteID *string, url, method string) error {
	return m.publishFunc(ctx, siteID, url, method)
}

func newRouter(deps api.Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	return api.SetupRouter(deps)
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	router := newRouter(api.Deps{})

	w := doJSON(t, router, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestIndexEndpoint(t *testing.T) {
	var gotURL string
	var gotEngines []string
	indexer := &mockIndexer{
		indexFunc: func(_ context.Context, _ *domain.Site, url string, engineSet []string) (*orchestrator.IndexResult, error) {
			gotURL = url
			gotEngines = engineSet
			return &orchestrator.IndexResult{
				URL:    url,
				PageID: "page-1",
				Engines: map[string]orchestrator.EngineResult{
					domain.EngineGoogle: {Engine: domain.EngineGoogle, Success: true, URL: url},
				},
			}, nil
		},
	}
	router := newRouter(api.Deps{Indexer: indexer, Sites: &mockSites{}})

	w := doJSON(t, router, http.MethodPost, "/api/v1/index",
		gin.H{"url": "https://example.com/a"})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if gotURL != "https://example.com/a" {
		t.Errorf("unexpected url %q", gotURL)
	}
	// No engines requested defaults to all engines.
	if len(gotEngines) != 2 {
		t.Errorf("expected the default engine set, got %v", gotEngines)
	}

	var result orchestrator.IndexResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if result.PageID != "page-1" {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestIndexEndpoint_ValidatesBody(t *testing.T) {
	router := newRouter(api.Deps{Indexer: &mockIndexer{}, Sites: &mockSites{}})

	w := doJSON(t, router, http.MethodPost, "/api/v1/index", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing url must 400, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/api/v1/index",
		gin.H{"url": "https://example.com/a", "engines": []string{"altavista"}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown engine must 400, got %d", w.Code)
	}
}

func TestIndexEndpoint_UnknownSite(t *testing.T) {
	sites := &mockSites{
		getByIDFunc: func(context.Context, string) (*domain.Site, error) {
			return nil, errors.New("not found")
		},
	}
	router := newRouter(api.Deps{Indexer: &mockIndexer{}, Sites: sites})

	w := doJSON(t, router, http.MethodPost, "/api/v1/index",
		gin.H{"url": "https://example.com/a", "site_id": "missing"})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown site must 404, got %d", w.Code)
	}
}

func TestBulkIndexEndpoint(t *testing.T) {
	indexer := &mockIndexer{
		bulkIndexFunc: func(_ context.Context, _ *domain.Site, urls []string, _ []string) (*orchestrator.BulkResult, error) {
			return &orchestrator.BulkResult{
				Engines: map[string]*orchestrator.BulkEngineSummary{
					domain.EngineGoogle: {Attempted: len(urls), Succeeded: len(urls)},
				},
				Pages: make(map[string]map[string]orchestrator.EngineResult),
			}, nil
		},
	}
	router := newRouter(api.Deps{Indexer: indexer, Sites: &mockSites{}})

	w := doJSON(t, router, http.MethodPost, "/api/v1/bulk-index",
		gin.H{"urls": []string{"https://example.com/a", "https://example.com/b"}})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodPost, "/api/v1/bulk-index", gin.H{"urls": []string{}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("an empty url list must 400, got %d", w.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	indexer := &mockIndexer{
		checkStatusFunc: func(_ context.Context, _ *domain.Site, _ string) engines.InspectResult {
			return engines.InspectResult{Success: true, Verdict: engines.VerdictPass}
		},
	}
	router := newRouter(api.Deps{Indexer: indexer, Sites: &mockSites{}})

	w := doJSON(t, router, http.MethodGet, "/api/v1/status?url=https://example.com/a", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing url must 400, got %d", w.Code)
	}
}

func TestStatusEndpoint_InspectionFailure(t *testing.T) {
	indexer := &mockIndexer{
		checkStatusFunc: func(_ context.Context, _ *domain.Site, _ string) engines.InspectResult {
			return engines.InspectResult{Error: "quota exceeded"}
		},
	}
	router := newRouter(api.Deps{Indexer: indexer, Sites: &mockSites{}})

	w := doJSON(t, router, http.MethodGet, "/api/v1/status?url=https://example.com/a", nil)
	if w.Code != http.StatusBadGateway {
		t.Errorf("an upstream failure must 502, got %d", w.Code)
	}
}

func TestPublishedEndpoint(t *testing.T) {
	var gotURL, gotMethod string
	publisher := &mockPublisher{
		publishFunc: func(_ context.Context, _ *string, url, method string) error {
			gotURL = url
			gotMethod = method
			return nil
		},
	}
	router := newRouter(api.Deps{Sites: &mockSites{}, Publisher: publisher})

	w := doJSON(t, router, http.MethodPost, "/api/v1/events/published",
		gin.H{"url": "https://example.com/post", "method": domain.MethodBoth})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	if gotURL != "https://example.com/post" || gotMethod != domain.MethodBoth {
		t.Errorf("unexpected event %q %q", gotURL, gotMethod)
	}

	w = doJSON(t, router, http.MethodPost, "/api/v1/events/published",
		gin.H{"url": "https://example.com/post", "method": "carrier-pigeon"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown method must 400, got %d", w.Code)
	}
}

func TestPublishedEndpoint_NoPublisherConfigured(t *testing.T) {
	router := newRouter(api.Deps{Sites: &mockSites{}})

	w := doJSON(t, router, http.MethodPost, "/api/v1/events/published",
		gin.H{"url": "https://example.com/post"})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a publisher, got %d", w.Code)
	}
}

func TestPagesListEndpoint(t *testing.T) {
	var gotStatus string
	var gotLimit int
	pages := &mockPages{
		listByStatusFunc: func(_ context.Context, status string, limit int) ([]*domain.Page, error) {
			gotStatus = status
			gotLimit = limit
			return []*domain.Page{{ID: "page-1", URL: "https://example.com/a"}}, nil
		},
		countByStatusFunc: func(context.Context, string) (int, error) { return 1, nil },
	}
	router := newRouter(api.Deps{Pages: pages})

	w := doJSON(t, router, http.MethodGet, "/api/v1/pages?status=pending&limit=5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if gotStatus != "pending" || gotLimit != 5 {
		t.Errorf("unexpected query %q/%d", gotStatus, gotLimit)
	}

	var body struct {
		Pages []*domain.Page `json:"pages"`
		Total int            `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if body.Total != 1 || len(body.Pages) != 1 {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestPagesGetEndpoint(t *testing.T) {
	pages := &mockPages{
		getByIDFunc: func(_ context.Context, id string) (*domain.Page, error) {
			if id != "page-1" {
				return nil, errors.New("not found")
			}
			return &domain.Page{ID: "page-1", URL: "https://example.com/a"}, nil
		},
	}
	router := newRouter(api.Deps{Pages: pages})

	if w := doJSON(t, router, http.MethodGet, "/api/v1/pages/page-1", nil); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodGet, "/api/v1/pages/missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodGet, "/api/v1/pages/undefined", nil); w.Code != http.StatusBadRequest {
		t.Errorf("the undefined sentinel must 400, got %d", w.Code)
	}
}

func TestPagesHistoryAndJobsEndpoints(t *testing.T) {
	pages := &mockPages{
		getByIDFunc: func(_ context.Context, id string) (*domain.Page, error) {
			return &domain.Page{ID: id}, nil
		},
		historyFunc: func(_ context.Context, pageID string, _ int) ([]*domain.StatusHistory, error) {
			return []*domain.StatusHistory{{ID: "h1", PageID: pageID, Status: domain.PageStatusSubmitted}}, nil
		},
	}
	jobs := &mockJobs{
		listByPageFunc: func(_ context.Context, pageID string, _ int) ([]*domain.IndexingJob, error) {
			return []*domain.IndexingJob{{ID: "j1", PageID: pageID}}, nil
		},
	}
	router := newRouter(api.Deps{Pages: pages, Jobs: jobs})

	if w := doJSON(t, router, http.MethodGet, "/api/v1/pages/page-1/history", nil); w.Code != http.StatusOK {
		t.Errorf("history: expected 200, got %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodGet, "/api/v1/pages/page-1/jobs", nil); w.Code != http.StatusOK {
		t.Errorf("jobs: expected 200, got %d", w.Code)
	}
}

func TestSitemapParseEndpoint(t *testing.T) {
	indexer := &mockIndexer{
		parseFunc: func(_ context.Context, sitemapURL string) sitemap.Result {
			if sitemapURL == "https://example.com/bad.xml" {
				return sitemap.Result{Error: "HTTP 404"}
			}
			return sitemap.Result{Success: true, Type: domain.SitemapTypeSitemap, Count: 3}
		},
	}
	router := newRouter(api.Deps{Indexer: indexer, Sites: &mockSites{}})

	w := doJSON(t, router, http.MethodPost, "/api/v1/sitemaps/parse",
		gin.H{"url": "https://example.com/sitemap.xml"})
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/api/v1/sitemaps/parse",
		gin.H{"url": "https://example.com/bad.xml"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("an unresolvable sitemap must 422, got %d", w.Code)
	}
}

func TestSitemapMonitorEndpoint(t *testing.T) {
	sites := &mockSites{
		getByIDFunc: func(_ context.Context, id string) (*domain.Site, error) {
			return &domain.Site{ID: id, CanonicalURL: "https://example.com/"}, nil
		},
	}
	var gotForce bool
	monitor := &mockMonitor{
		monitorFunc: func(_ context.Context, site *domain.Site, force bool) (*discovery.MonitorSummary, error) {
			gotForce = force
			return &discovery.MonitorSummary{PagesAdded: 2}, nil
		},
	}
	router := newRouter(api.Deps{Sites: sites, Monitor: monitor})

	w := doJSON(t, router, http.MethodPost, "/api/v1/sitemaps/monitor",
		gin.H{"site_id": "site-1", "force": true})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !gotForce {
		t.Error("force flag must reach the monitor")
	}

	w = doJSON(t, router, http.MethodPost, "/api/v1/sitemaps/monitor", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing site_id must 400, got %d", w.Code)
	}
}

func TestSitesEndpoints(t *testing.T) {
	var autoSet *bool
	var keySet *string
	keyCleared := false
	sites := &mockSites{
		listFunc: func(context.Context) ([]*domain.Site, error) {
			return []*domain.Site{{ID: "site-1", CanonicalURL: "https://example.com/"}}, nil
		},
		getByIDFunc: func(_ context.Context, id string) (*domain.Site, error) {
			if id != "site-1" {
				return nil, errors.New("not found")
			}
			return &domain.Site{ID: id}, nil
		},
		upsertFunc: func(_ context.Context, canonicalURL, name string) (*domain.Site, error) {
			return &domain.Site{ID: "site-1", CanonicalURL: canonicalURL, Name: name}, nil
		},
		setAutoIndexingFunc: func(_ context.Context, _ string, enabled bool) error {
			autoSet = &enabled
			return nil
		},
		setIndexNowKeyFunc: func(_ context.Context, _ string, key *string) error {
			if key == nil {
				keyCleared = true
			} else {
				keySet = key
			}
			return nil
		},
	}
	router := newRouter(api.Deps{Sites: sites})

	if w := doJSON(t, router, http.MethodGet, "/api/v1/sites", nil); w.Code != http.StatusOK {
		t.Errorf("list: expected 200, got %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodGet, "/api/v1/sites/site-1", nil); w.Code != http.StatusOK {
		t.Errorf("get: expected 200, got %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodGet, "/api/v1/sites/other", nil); w.Code != http.StatusNotFound {
		t.Errorf("get missing: expected 404, got %d", w.Code)
	}

	w := doJSON(t, router, http.MethodPost, "/api/v1/sites",
		gin.H{"canonical_url": "https://example.com/"})
	if w.Code != http.StatusOK {
		t.Errorf("upsert: expected 200, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPut, "/api/v1/sites/site-1/auto-indexing",
		gin.H{"enabled": false})
	if w.Code != http.StatusOK {
		t.Errorf("auto-indexing: expected 200, got %d", w.Code)
	}
	if autoSet == nil || *autoSet {
		t.Error("expected auto-indexing disabled")
	}

	w = doJSON(t, router, http.MethodPut, "/api/v1/sites/site-1/auto-indexing", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing enabled flag must 400, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPut, "/api/v1/sites/site-1/indexnow-key",
		gin.H{"key": "key-material"})
	if w.Code != http.StatusOK {
		t.Errorf("indexnow-key: expected 200, got %d", w.Code)
	}
	if keySet == nil || *keySet != "key-material" {
		t.Error("expected the key stored")
	}

	w = doJSON(t, router, http.MethodPut, "/api/v1/sites/site-1/indexnow-key", gin.H{"key": ""})
	if w.Code != http.StatusOK {
		t.Errorf("clear key: expected 200, got %d", w.Code)
	}
	if !keyCleared {
		t.Error("an empty key clears the stored key")
	}
}
