package indexnow_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonesrussell/pageindexer/internal/engines/indexnow"
	"github.com/jonesrussell/pageindexer/internal/logger"
)

type capturedPayload struct {
	Host        string   `json:"host"`
	Key         string   `json:"key"`
	KeyLocation string   `json:"keyLocation"`
	URLList     []string `json:"urlList"`
}

func newAdapter(serverURL string, enabled bool) *indexnow.Adapter {
	return indexnow.New(indexnow.Config{
		Enabled:   enabled,
		Endpoints: map[string]string{"bing": serverURL},
	}, logger.NewNop())
}

func TestSubmitOne_SendsProtocolPayload(t *testing.T) {
	var got capturedPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	adapter := newAdapter(server.URL, true)
	result := adapter.SubmitOne(context.Background(), "https://example.com/a", "https://example.com", "key-1", "bing")

	if !result.Success {
		t.Fatalf("SubmitOne() failed: %s", result.Error)
	}
	if result.Endpoint != "bing" || result.Status != http.StatusOK {
		t.Errorf("unexpected result %+v", result)
	}
	// The wire host field is a bare hostname even when the caller passes
	// a scheme-qualified identifier.
	if got.Host != "example.com" {
		t.Errorf("unexpected payload host %q", got.Host)
	}
	if got.Key != "key-1" {
		t.Errorf("unexpected payload key %q", got.Key)
	}
	if len(got.URLList) != 1 || got.URLList[0] != "https://example.com/a" {
		t.Errorf("unexpected url list %v", got.URLList)
	}
}

func TestSubmitMany_SingleServerSideCall(t *testing.T) {
	calls := 0
	var got capturedPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	urls := []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"}
	adapter := newAdapter(server.URL, true)
	result := adapter.SubmitMany(context.Background(), urls, "example.com", "key-1", "bing")

	if !result.Success {
		t.Fatalf("SubmitMany() failed: %s", result.Error)
	}
	if calls != 1 {
		t.Errorf("a batch is one server-side call, got %d", calls)
	}
	if result.Count != 3 || len(got.URLList) != 3 {
		t.Errorf("expected all 3 urls in one payload, got %d/%d", result.Count, len(got.URLList))
	}
}

func TestSubmit_DisabledAdapterNeverCalls(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	defer server.Close()

	adapter := newAdapter(server.URL, false)

	if res := adapter.SubmitOne(context.Background(), "https://example.com/a", "example.com", "k", "bing"); res.Success {
		t.Error("a disabled adapter must not report success")
	}
	if res := adapter.SubmitMany(context.Background(), []string{"https://example.com/a"}, "example.com", "k", "bing"); res.Success {
		t.Error("a disabled adapter must not report success")
	}
	if called {
		t.Error("a disabled adapter must not reach the network")
	}
}

func TestSubmitOne_ErrorStatusCarriesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte("invalid key"))
	}))
	defer server.Close()

	adapter := newAdapter(server.URL, true)
	result := adapter.SubmitOne(context.Background(), "https://example.com/a", "example.com", "bad", "bing")

	if result.Success {
		t.Fatal("expected a failure result")
	}
	if result.Status != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422, got %d", result.Status)
	}
}

func TestSubmitToEndpoints_SkipsUnknownNames(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	adapter := indexnow.New(indexnow.Config{
		Enabled:   true,
		Endpoints: map[string]string{"bing": server.URL, "yandex": server.URL},
	}, logger.NewNop())

	results := adapter.SubmitToEndpoints(context.Background(),
		[]string{"https://example.com/a"}, "example.com", "k",
		[]string{"bing", "yandex", "unknown"})

	if len(results) != 2 {
		t.Fatalf("expected results for the 2 known endpoints, got %d", len(results))
	}
	for name, res := range results {
		if !res.Success {
			t.Errorf("endpoint %s failed: %s", name, res.Error)
		}
	}
}
