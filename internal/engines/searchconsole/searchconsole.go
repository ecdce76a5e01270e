// Package searchconsole implements the external inspection/listing
// collaborator against the Search Console Webmasters and URL Inspection
// REST APIs.
package searchconsole

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jonesrussell/pageindexer/internal/engines"
	"github.com/jonesrussell/pageindexer/internal/httpclient"
	"github.com/jonesrussell/pageindexer/internal/logger"
)

const (
	// DefaultSitesBaseURL is the Webmasters v3 API root.
	DefaultSitesBaseURL = "https://www.googleapis.com/webmasters/v3"
	// DefaultInspectURL is the URL Inspection API endpoint.
	DefaultInspectURL = "https://searchconsole.googleapis.com/v1/urlInspection/index:inspect"

	requestTimeout = 30 * time.Second

	maxErrorBodyBytes = 4 * 1024
)

// Client calls the Search Console APIs. All methods return structured
// results with a Success flag; nothing panics across the boundary.
type Client struct {
	sitesBaseURL string
	inspectURL   string
	tokens       engines.TokenSource
	client       *http.Client
	log          logger.Logger
}

// Config holds client construction settings. Empty URLs select the
// production endpoints.
type Config struct {
	SitesBaseURL string
	InspectURL   string
}

// New creates a Search Console client.
func New(cfg Config, tokens engines.TokenSource, log logger.Logger) *Client {
	if cfg.SitesBaseURL == "" {
		cfg.SitesBaseURL = DefaultSitesBaseURL
	}
	if cfg.InspectURL == "" {
		cfg.InspectURL = DefaultInspectURL
	}
	return &Client{
		sitesBaseURL: cfg.SitesBaseURL,
		inspectURL:   cfg.InspectURL,
		tokens:       tokens,
		client:       httpclient.New(requestTimeout),
		log:          log,
	}
}

// sitesResponse is the wire shape of the sites listing.
type sitesResponse struct {
	SiteEntry []struct {
		SiteURL         string `json:"siteUrl"`
		PermissionLevel string `json:"permissionLevel"`
	} `json:"siteEntry"`
}

// ListSites returns all properties the credential can see.
func (c *Client) ListSites(ctx context.Context) engines.SitesResult {
	var parsed sitesResponse
	if err := c.get(ctx, c.sitesBaseURL+"/sites", &parsed); err != nil {
		c.log.Error("search console sites listing failed", logger.Err(err))
		return engines.SitesResult{Error: err.Error()}
	}

	sites := make([]engines.SiteEntry, 0, len(parsed.SiteEntry))
	for _, entry := range parsed.SiteEntry {
		sites = append(sites, engines.SiteEntry{
			URL:             entry.SiteURL,
			PermissionLevel: entry.PermissionLevel,
		})
	}

	return engines.SitesResult{Success: true, Sites: sites}
}

// sitemapsResponse is the wire shape of the sitemaps listing.
type sitemapsResponse struct {
	Sitemap []struct {
		Path            string `json:"path"`
		IsPending       bool   `json:"isPending"`
		IsSitemapsIndex bool   `json:"isSitemapsIndex"`
		LastDownloaded  string `json:"lastDownloaded"`
		LastSubmitted   string `json:"lastSubmitted"`
		Errors          int64  `json:"errors,string"`
		Warnings        int64  `json:"warnings,string"`
	} `json:"sitemap"`
}

// ListSitemaps returns the sitemaps registered for a property.
func (c *Client) ListSitemaps(ctx context.Context, siteURL string) engines.SitemapsResult {
	endpoint := fmt.Sprintf("%s/sites/%s/sitemaps", c.sitesBaseURL, url.PathEscape(siteURL))

	var parsed sitemapsResponse
	if err := c.get(ctx, endpoint, &parsed); err != nil {
		c.log.Error("search console sitemaps listing failed",
			logger.String("site_url", siteURL), logger.Err(err))
		return engines.SitemapsResult{Error: err.Error()}
	}

	sitemaps := make([]engines.SitemapEntry, 0, len(parsed.Sitemap))
	for _, entry := range parsed.Sitemap {
		sitemaps = append(sitemaps, engines.SitemapEntry{
			Path:            entry.Path,
			IsSitemapsIndex: entry.IsSitemapsIndex,
			IsPending:       entry.IsPending,
			LastDownloaded:  entry.LastDownloaded,
			LastSubmitted:   entry.LastSubmitted,
			ErrorCount:      entry.Errors,
			WarningCount:    entry.Warnings,
		})
	}

	return engines.SitemapsResult{Success: true, Sitemaps: sitemaps}
}

// inspectRequest is the URL Inspection API request payload.
type inspectRequest struct {
	InspectionURL string `json:"inspectionUrl"`
	SiteURL       string `json:"siteUrl"`
}

// inspectResponse is the subset of the inspection response the core maps.
type inspectResponse struct {
	InspectionResult struct {
		IndexStatusResult struct {
			Verdict       string `json:"verdict"`
			CoverageState string `json:"coverageState"`
			IndexingState string `json:"indexingState"`
			LastCrawlTime string `json:"lastCrawlTime"`
		} `json:"indexStatusResult"`
	} `json:"inspectionResult"`
}

// Inspect fetches the authoritative indexing status for one URL within
// a property scope.
func (c *Client) Inspect(ctx context.Context, siteURL, pageURL string) engines.InspectResult {
	body, err := json.Marshal(inspectRequest{InspectionURL: pageURL, SiteURL: siteURL})
	if err != nil {
		return engines.InspectResult{Error: fmt.Sprintf("encode request: %v", err)}
	}

	var parsed inspectResponse
	if err := c.do(ctx, http.MethodPost, c.inspectURL, body, &parsed); err != nil {
		c.log.Error("search console inspection failed",
			logger.String("site_url", siteURL),
			logger.String("page_url", pageURL),
			logger.Err(err))
		return engines.InspectResult{Error: err.Error()}
	}

	status := parsed.InspectionResult.IndexStatusResult
	return engines.InspectResult{
		Success:       true,
		Verdict:       status.Verdict,
		CoverageState: status.CoverageState,
		IndexingState: status.IndexingState,
		LastCrawlTime: status.LastCrawlTime,
	}
}

// get issues an authenticated GET and decodes the JSON response.
func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	return c.do(ctx, http.MethodGet, endpoint, nil, out)
}

// do issues one authenticated API call.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	if decodeErr := json.NewDecoder(resp.Body).Decode(out); decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}

	return nil
}
