package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonesrussell/pageindexer/internal/database"
	"github.com/jonesrussell/pageindexer/internal/domain"
	"github.com/jonesrussell/pageindexer/internal/engines"
	"github.com/jonesrussell/pageindexer/internal/logger"
	"github.com/jonesrussell/pageindexer/internal/metrics"
)

type fakePages struct {
	upserted  []string
	submitted []string
	failed    map[string]string
	upsertErr map[string]error
}

func newFakePages() *fakePages {
	return &fakePages{failed: make(map[string]string), upsertErr: make(map[string]error)}
}

func (f *fakePages) Upsert(_ context.Context, params database.UpsertParams) (*domain.Page, bool, error) {
	if err, ok := f.upsertErr[params.URL]; ok {
		return nil, false, err
	}
	f.upserted = append(f.upserted, params.URL)
	return &domain.Page{
		ID:             "page-" + params.URL,
		SiteID:         params.SiteID,
		URL:            params.URL,
		IndexingStatus: domain.PageStatusPending,
		IndexingMethod: params.Method,
	}, true, nil
}

func (f *fakePages) GetByID(_ context.Context, id string) (*domain.Page, error) {
	return &domain.Page{ID: id, IndexingStatus: domain.PageStatusPending}, nil
}

func (f *fakePages) MarkSubmitted(_ context.Context, pageID string) error {
	f.submitted = append(f.submitted, pageID)
	return nil
}

func (f *fakePages) MarkIndexed(_ context.Context, _, _ string) error { return nil }

func (f *fakePages) MarkFailed(_ context.Context, pageID, errorMessage string) error {
	f.failed[pageID] = errorMessage
	return nil
}

func (f *fakePages) ResetToPending(_ context.Context, _ string) error { return nil }

type fakeLedger struct {
	attempts  []string
	completed []string
	failures  []string
	recordErr error
}

func (f *fakeLedger) RecordAttempt(_ context.Context, pageID, engine string, _ domain.JSONBMap) (*domain.IndexingJob, error) {
	if f.recordErr != nil {
		return nil, f.recordErr
	}
	f.attempts = append(f.attempts, pageID+"/"+engine)
	return &domain.IndexingJob{ID: uuid.New().String(), PageID: pageID, SearchEngine: engine}, nil
}

func (f *fakeLedger) Complete(_ context.Context, jobID string, _ domain.JSONBMap) error {
	f.completed = append(f.completed, jobID)
	return nil
}

func (f *fakeLedger) Fail(_ context.Context, jobID, _ string, _ domain.JSONBMap) error {
	f.failures = append(f.failures, jobID)
	return nil
}

type fakeLimiter struct {
	denied   map[string]bool
	consumed map[string]int
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{denied: make(map[string]bool), consumed: make(map[string]int)}
}

func (f *fakeLimiter) Allow(engine string) bool { return !f.denied[engine] }

func (f *fakeLimiter) AllowN(engine string, _ int) bool { return !f.denied[engine] }

func (f *fakeLimiter) Consume(engine string) { f.consumed[engine]++ }

func (f *fakeLimiter) ConsumeN(engine string, n int) { f.consumed[engine] += n }

type fakeGoogle struct {
	submitOneFunc func(ctx context.Context, url, changeType string) engines.PushResult
	calls         int
}

func (f *fakeGoogle) SubmitOne(ctx context.Context, url, changeType string) engines.PushResult {
	f.calls++
	if f.submitOneFunc != nil {
		return f.submitOneFunc(ctx, url, changeType)
	}
	return engines.PushResult{Success: true, URL: url}
}

func (f *fakeGoogle) SubmitMany(ctx context.Context, urls []string, changeType string) []engines.PushResult {
	results := make([]engines.PushResult, 0, len(urls))
	for _, url := range urls {
		results = append(results, f.SubmitOne(ctx, url, changeType))
	}
	return results
}

type fakeIndexNow struct {
	submitOneFunc  func(ctx context.Context, url, host, key, endpoint string) engines.KeyResult
	submitManyFunc func(ctx context.Context, urls []string, host, key, endpoint string) engines.KeyBatchResult
	batchHosts     []string
	batchSizes     []int
	calls          int
}

func (f *fakeIndexNow) SubmitOne(ctx context.Context, url, host, key, endpoint string) engines.KeyResult {
	f.calls++
	if f.submitOneFunc != nil {
		return f.submitOneFunc(ctx, url, host, key, endpoint)
	}
	return engines.KeyResult{Success: true, URL: url, Endpoint: endpoint, Status: 200}
}

func (f *fakeIndexNow) SubmitMany(ctx context.Context, urls []string, host, key, endpoint string) engines.KeyBatchResult {
	f.batchHosts = append(f.batchHosts, host)
	f.batchSizes = append(f.batchSizes, len(urls))
	if f.submitManyFunc != nil {
		return f.submitManyFunc(ctx, urls, host, key, endpoint)
	}
	return engines.KeyBatchResult{Success: true, Count: len(urls), Endpoint: endpoint, Status: 200}
}

func (f *fakeIndexNow) SubmitToEndpoints(ctx context.Context, urls []string, host, key string, endpoints []string) map[string]engines.KeyBatchResult {
	out := make(map[string]engines.KeyBatchResult, len(endpoints))
	for _, endpoint := range endpoints {
		out[endpoint] = f.SubmitMany(ctx, urls, host, key, endpoint)
	}
	return out
}

type testRig struct {
	orch     *Orchestrator
	pages    *fakePages
	ledger   *fakeLedger
	limiter  *fakeLimiter
	google   *fakeGoogle
	indexnow *fakeIndexNow
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	rig := &testRig{
		pages:    newFakePages(),
		ledger:   &fakeLedger{},
		limiter:  newFakeLimiter(),
		google:   &fakeGoogle{},
		indexnow: &fakeIndexNow{},
	}
	rig.orch = New(
		Config{IndexNowKey: "test-key", IndexNowEndpoint: "api.indexnow.org"},
		Deps{
			Pages:    rig.pages,
			Ledger:   rig.ledger,
			Limiter:  rig.limiter,
			Google:   rig.google,
			IndexNow: rig.indexnow,
			Metrics:  metrics.NewWithRegistry(prometheus.NewRegistry()),
			Logger:   logger.NewNop(),
		},
	)
	return rig
}

func TestIndex_BothEnginesSucceed(t *testing.T) {
	rig := newTestRig(t)

	result, err := rig.orch.Index(context.Background(), nil, "https://example.com/a",
		[]string{domain.EngineGoogle, domain.EngineIndexNow})
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	if len(result.Engines) != 2 {
		t.Fatalf("expected 2 engine results, got %d", len(result.Engines))
	}
	if !result.Engines[domain.EngineGoogle].Success || !result.Engines[domain.EngineIndexNow].Success {
		t.Errorf("expected both engines to succeed: %+v", result.Engines)
	}
	if len(rig.pages.submitted) != 1 {
		t.Errorf("expected one submitted transition, got %d", len(rig.pages.submitted))
	}
	if len(rig.ledger.attempts) != 2 || len(rig.ledger.completed) != 2 {
		t.Errorf("expected 2 attempts and 2 completions, got %d/%d",
			len(rig.ledger.attempts), len(rig.ledger.completed))
	}
}

func TestIndex_OneEngineFailureDoesNotEmptyTheOther(t *testing.T) {
	rig := newTestRig(t)
	rig.google.submitOneFunc = func(_ context.Context, url, _ string) engines.PushResult {
		return engines.PushResult{URL: url, Error: "403 quota exceeded"}
	}

	result, err := rig.orch.Index(context.Background(), nil, "https://example.com/a",
		[]string{domain.EngineGoogle, domain.EngineIndexNow})
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	if result.Engines[domain.EngineGoogle].Success {
		t.Error("expected the push engine to fail")
	}
	if !result.Engines[domain.EngineIndexNow].Success {
		t.Error("expected the key engine to still succeed")
	}
	if !result.AnySuccess() {
		t.Error("AnySuccess() should report the surviving engine")
	}
	if len(rig.pages.submitted) != 1 {
		t.Error("a partial success still marks the page submitted")
	}
	if len(rig.ledger.failures) != 1 || len(rig.ledger.completed) != 1 {
		t.Errorf("expected 1 failed and 1 completed ledger row, got %d/%d",
			len(rig.ledger.failures), len(rig.ledger.completed))
	}
}

func TestIndex_AllEnginesFailMarksPageFailed(t *testing.T) {
	rig := newTestRig(t)
	rig.google.submitOneFunc = func(_ context.Context, url, _ string) engines.PushResult {
		return engines.PushResult{URL: url, Error: "backend error"}
	}

	result, err := rig.orch.Index(context.Background(), nil, "https://example.com/a",
		[]string{domain.EngineGoogle})
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	if result.AnySuccess() {
		t.Error("expected no successes")
	}
	msg, ok := rig.pages.failed["page-https://example.com/a"]
	if !ok {
		t.Fatal("expected the page to be marked failed")
	}
	if msg != "google: backend error" {
		t.Errorf("unexpected failure record %q", msg)
	}
}

func TestIndex_AllEnginesRateLimitedLeavesPagePending(t *testing.T) {
	rig := newTestRig(t)
	rig.limiter.denied[domain.EngineGoogle] = true
	rig.limiter.denied[domain.EngineIndexNow] = true

	result, err := rig.orch.Index(context.Background(), nil, "https://example.com/a",
		[]string{domain.EngineGoogle, domain.EngineIndexNow})
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	for engine, res := range result.Engines {
		if res.Error != ErrRateLimited {
			t.Errorf("engine %s error = %q, want %q", engine, res.Error, ErrRateLimited)
		}
	}
	if len(rig.pages.submitted) != 0 {
		t.Error("a fully rate limited round must not mark the page submitted")
	}
	if len(rig.pages.failed) != 0 {
		t.Errorf("a fully rate limited round must leave the page pending, got failed: %v", rig.pages.failed)
	}
	if len(rig.ledger.attempts) != 0 {
		t.Error("limiter vetoes must not leave ledger rows")
	}
	if rig.google.calls != 0 || rig.indexnow.calls != 0 {
		t.Error("no adapter may be called when every window is exhausted")
	}
}

func TestIndex_RateLimitedEngineNeverRepresentsTheFailure(t *testing.T) {
	rig := newTestRig(t)
	rig.limiter.denied[domain.EngineIndexNow] = true
	rig.google.submitOneFunc = func(_ context.Context, url, _ string) engines.PushResult {
		return engines.PushResult{URL: url, Error: "backend error"}
	}

	_, err := rig.orch.Index(context.Background(), nil, "https://example.com/a",
		[]string{domain.EngineGoogle, domain.EngineIndexNow})
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	msg, ok := rig.pages.failed["page-https://example.com/a"]
	if !ok {
		t.Fatal("an attempted hard failure still marks the page failed")
	}
	if msg != "google: backend error" {
		t.Errorf("failure record %q, want the attempted engine's error", msg)
	}
}

func TestSubmitEngine_RateLimitedSkipsLedger(t *testing.T) {
	rig := newTestRig(t)
	rig.limiter.denied[domain.EngineGoogle] = true

	page := &domain.Page{ID: "page-1", URL: "https://example.com/a"}
	result := rig.orch.SubmitEngine(context.Background(), nil, page, domain.EngineGoogle)

	if result.Success {
		t.Error("a rate limited submission is not a success")
	}
	if result.Error != ErrRateLimited {
		t.Errorf("expected %q, got %q", ErrRateLimited, result.Error)
	}
	if rig.google.calls != 0 {
		t.Error("the adapter must not be called when the window is exhausted")
	}
	if len(rig.ledger.attempts) != 0 {
		t.Error("a skipped submission must not leave a ledger row")
	}
}

func TestSubmitEngine_FailedCallDoesNotConsumeBudget(t *testing.T) {
	rig := newTestRig(t)
	rig.google.submitOneFunc = func(_ context.Context, url, _ string) engines.PushResult {
		return engines.PushResult{URL: url, Error: "timeout"}
	}

	page := &domain.Page{ID: "page-1", URL: "https://example.com/a"}
	rig.orch.SubmitEngine(context.Background(), nil, page, domain.EngineGoogle)

	if rig.limiter.consumed[domain.EngineGoogle] != 0 {
		t.Error("a failed call must not burn rate-limit budget")
	}
	if len(rig.ledger.failures) != 1 {
		t.Error("a failed call still closes its ledger row")
	}
}

func TestResolveEngines_DropsKeyEngineWithoutKey(t *testing.T) {
	rig := newTestRig(t)
	rig.orch.cfg.IndexNowKey = ""

	resolved := rig.orch.resolveEngines(nil, []string{domain.EngineGoogle, domain.EngineIndexNow})
	if len(resolved) != 1 || resolved[0] != domain.EngineGoogle {
		t.Errorf("expected only the push engine, got %v", resolved)
	}

	site := &domain.Site{ID: "site-1", IndexNowKey: strPtr("site-key")}
	resolved = rig.orch.resolveEngines(site, []string{domain.EngineIndexNow})
	if len(resolved) != 1 {
		t.Errorf("a site-level key enables the engine, got %v", resolved)
	}
}

func TestMethodFor(t *testing.T) {
	tests := []struct {
		engines []string
		want    string
	}{
		{[]string{domain.EngineGoogle}, domain.MethodGoogle},
		{[]string{domain.EngineIndexNow}, domain.MethodIndexNow},
		{[]string{domain.EngineGoogle, domain.EngineIndexNow}, domain.MethodBoth},
		{nil, domain.MethodBoth},
	}
	for _, tt := range tests {
		if got := methodFor(tt.engines); got != tt.want {
			t.Errorf("methodFor(%v) = %q, want %q", tt.engines, got, tt.want)
		}
	}
}

func TestIndex_UpsertErrorAborts(t *testing.T) {
	rig := newTestRig(t)
	rig.pages.upsertErr["https://example.com/a"] = errors.New("connection refused")

	_, err := rig.orch.Index(context.Background(), nil, "https://example.com/a",
		[]string{domain.EngineGoogle})
	if err == nil {
		t.Fatal("expected the upsert failure to propagate")
	}
	if rig.google.calls != 0 {
		t.Error("no engine call without a page row")
	}
}

func strPtr(s string) *string { return &s }
