// Package indexnow implements the key-based multi-endpoint engine
// adapter speaking the IndexNow protocol (Bing, Yandex, Naver and any
// other endpoint configured by name).
package indexnow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonesrussell/pageindexer/internal/engines"
	"github.com/jonesrussell/pageindexer/internal/httpclient"
	"github.com/jonesrussell/pageindexer/internal/logger"
)

const (
	// DefaultEndpointName is used when a caller names no endpoint.
	DefaultEndpointName = "bing"

	singleTimeout = 10 * time.Second
	batchTimeout  = 30 * time.Second

	maxErrorBodyBytes = 4 * 1024
)

// DefaultEndpoints are the well-known protocol endpoints.
var DefaultEndpoints = map[string]string{
	"bing":   "https://api.indexnow.org/IndexNow",
	"yandex": "https://yandex.com/indexnow",
	"naver":  "https://searchadvisor.naver.com/indexnow",
}

// errDisabled is the result error when the adapter is switched off.
const errDisabled = "indexnow is disabled"

// Adapter submits URLs to IndexNow endpoints. The enabled flag disables
// the adapter centrally; every call checks it first.
type Adapter struct {
	enabled     bool
	endpoints   map[string]string
	keyLocation string
	single      *http.Client
	batch       *http.Client
	log         logger.Logger
}

// Config holds adapter construction settings.
type Config struct {
	Enabled bool
	// Endpoints maps endpoint names to URLs; nil selects the defaults.
	Endpoints map[string]string
	// KeyLocation optionally points at the hosted key file.
	KeyLocation string
}

// New creates an IndexNow adapter.
func New(cfg Config, log logger.Logger) *Adapter {
	endpoints := cfg.Endpoints
	if len(endpoints) == 0 {
		endpoints = DefaultEndpoints
	}
	return &Adapter{
		enabled:     cfg.Enabled,
		endpoints:   endpoints,
		keyLocation: cfg.KeyLocation,
		single:      httpclient.New(singleTimeout),
		batch:       httpclient.New(batchTimeout),
		log:         log,
	}
}

// submitPayload is the IndexNow wire format.
type submitPayload struct {
	Host        string   `json:"host"`
	Key         string   `json:"key"`
	KeyLocation string   `json:"keyLocation,omitempty"`
	URLList     []string `json:"urlList"`
}

// bareHost strips a scheme prefix. The wire format's host field is a
// bare hostname, while callers often carry scheme://host identifiers.
func bareHost(host string) string {
	if i := strings.Index(host, "://"); i >= 0 {
		return host[i+3:]
	}
	return host
}

// endpointURL resolves an endpoint name, falling back to the default.
func (a *Adapter) endpointURL(name string) (string, string) {
	if name == "" {
		name = DefaultEndpointName
	}
	if url, ok := a.endpoints[name]; ok {
		return name, url
	}
	return DefaultEndpointName, a.endpoints[DefaultEndpointName]
}

// SubmitOne submits a single URL to the named endpoint.
func (a *Adapter) SubmitOne(ctx context.Context, url, host, key, endpoint string) engines.KeyResult {
	name, endpointURL := a.endpointURL(endpoint)

	if !a.enabled {
		return engines.KeyResult{URL: url, Endpoint: name, Error: errDisabled}
	}

	status, err := a.post(ctx, a.single, endpointURL, submitPayload{
		Host:        bareHost(host),
		Key:         key,
		KeyLocation: a.keyLocation,
		URLList:     []string{url},
	})
	if err != nil {
		a.log.Error("indexnow submission failed",
			logger.String("url", url),
			logger.String("endpoint", name),
			logger.Err(err))
		return engines.KeyResult{URL: url, Endpoint: name, Status: status, Error: err.Error()}
	}

	return engines.KeyResult{Success: true, URL: url, Endpoint: name, Status: status}
}

// SubmitMany submits a batch of URLs in one server-side call to the
// named endpoint. The protocol has no documented batch cap at this
// layer; its enforced limits are external.
func (a *Adapter) SubmitMany(ctx context.Context, urls []string, host, key, endpoint string) engines.KeyBatchResult {
	name, endpointURL := a.endpointURL(endpoint)

	if !a.enabled {
		return engines.KeyBatchResult{Count: len(urls), Endpoint: name, Error: errDisabled}
	}

	status, err := a.post(ctx, a.batch, endpointURL, submitPayload{
		Host:        bareHost(host),
		Key:         key,
		KeyLocation: a.keyLocation,
		URLList:     urls,
	})
	if err != nil {
		a.log.Error("indexnow batch submission failed",
			logger.Int("count", len(urls)),
			logger.String("endpoint", name),
			logger.Err(err))
		return engines.KeyBatchResult{Count: len(urls), Endpoint: name, Status: status, Error: err.Error()}
	}

	return engines.KeyBatchResult{Success: true, Count: len(urls), Endpoint: name, Status: status}
}

// SubmitToEndpoints fans a batch out to several named endpoints and
// returns one result per endpoint. Unknown names are skipped.
func (a *Adapter) SubmitToEndpoints(
	ctx context.Context, urls []string, host, key string, endpoints []string,
) map[string]engines.KeyBatchResult {
	results := make(map[string]engines.KeyBatchResult, len(endpoints))

	for _, name := range endpoints {
		if _, ok := a.endpoints[name]; !ok {
			continue
		}
		results[name] = a.SubmitMany(ctx, urls, host, key, name)
	}

	return results
}

// post issues one IndexNow call and returns the HTTP status. Non-2xx
// responses are errors carrying a body excerpt.
func (a *Adapter) post(ctx context.Context, client *http.Client, endpointURL string, payload submitPayload) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	return resp.StatusCode, nil
}
