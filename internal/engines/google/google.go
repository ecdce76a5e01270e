// Package google implements the push-notification engine adapter against
// the Google Indexing API urlNotifications:publish endpoint.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonesrussell/pageindexer/internal/engines"
	"github.com/jonesrussell/pageindexer/internal/httpclient"
	"github.com/jonesrussell/pageindexer/internal/logger"
)

const (
	// DefaultEndpoint is the production publish endpoint.
	DefaultEndpoint = "https://indexing.googleapis.com/v3/urlNotifications:publish"

	// submitDelay paces sequential SubmitMany calls; the API has no batch
	// endpoint and throttles aggressively.
	submitDelay = time.Second

	requestTimeout = 10 * time.Second

	maxErrorBodyBytes = 4 * 1024
)

// Adapter submits URL notifications to the Google Indexing API.
type Adapter struct {
	endpoint string
	tokens   engines.TokenSource
	client   *http.Client
	log      logger.Logger
}

// New creates a Google Indexing API adapter. An empty endpoint selects
// the production URL.
func New(endpoint string, tokens engines.TokenSource, log logger.Logger) *Adapter {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Adapter{
		endpoint: endpoint,
		tokens:   tokens,
		client:   httpclient.New(requestTimeout),
		log:      log,
	}
}

// publishRequest is the wire payload for urlNotifications:publish.
type publishRequest struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// publishResponse is the subset of the publish response the core records.
type publishResponse struct {
	URLNotificationMetadata struct {
		URL          string `json:"url"`
		LatestUpdate struct {
			NotifyTime string `json:"notifyTime"`
		} `json:"latestUpdate"`
	} `json:"urlNotificationMetadata"`
}

// SubmitOne publishes a single URL notification. Failures are returned
// as a result entry, never as a panic or error across the boundary.
func (a *Adapter) SubmitOne(ctx context.Context, url, changeType string) engines.PushResult {
	if changeType == "" {
		changeType = engines.ChangeTypeUpdated
	}

	token, err := a.tokens.Token(ctx)
	if err != nil {
		a.log.Error("google indexing token error",
			logger.String("url", url), logger.Err(err))
		return engines.PushResult{URL: url, Error: fmt.Sprintf("token: %v", err)}
	}

	body, err := json.Marshal(publishRequest{URL: url, Type: changeType})
	if err != nil {
		return engines.PushResult{URL: url, Error: fmt.Sprintf("encode request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return engines.PushResult{URL: url, Error: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.client.Do(req)
	if err != nil {
		a.log.Error("google indexing request failed",
			logger.String("url", url), logger.Err(err))
		return engines.PushResult{URL: url, Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		a.log.Error("google indexing rejected submission",
			logger.String("url", url), logger.Int("status", resp.StatusCode))
		return engines.PushResult{
			URL:   url,
			Error: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(detail)),
		}
	}

	result := engines.PushResult{Success: true, URL: url}

	var parsed publishResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&parsed); decodeErr == nil {
		if t, parseErr := time.Parse(time.RFC3339, parsed.URLNotificationMetadata.LatestUpdate.NotifyTime); parseErr == nil {
			result.NotifiedAt = &t
		}
	}

	return result
}

// SubmitMany publishes notifications one URL at a time with a pacing
// delay between calls. Each URL gets its own result entry; one failure
// never aborts the rest.
func (a *Adapter) SubmitMany(ctx context.Context, urls []string, changeType string) []engines.PushResult {
	results := make([]engines.PushResult, 0, len(urls))

	for i, url := range urls {
		if i > 0 {
			select {
			case <-ctx.Done():
				results = append(results, engines.PushResult{URL: url, Error: ctx.Err().Error()})
				continue
			case <-time.After(submitDelay):
			}
		}
		results = append(results, a.SubmitOne(ctx, url, changeType))
	}

	return results
}
