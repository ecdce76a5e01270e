package sitemap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/jonesrussell/pageindexer/internal/domain"
	"github.com/jonesrussell/pageindexer/internal/httpclient"
	"github.com/jonesrussell/pageindexer/internal/logger"
)

const (
	fetchTimeout = 30 * time.Second

	// maxDepth bounds sitemap-index recursion; real-world indexes nest
	// one level, anything deeper is likely a reference cycle.
	maxDepth = 5

	maxBodyBytes = 50 * 1024 * 1024
)

// Child is the per-child breakdown for one sitemap referenced by an
// index document.
type Child struct {
	URL     string     `json:"url"`
	LastMod *time.Time `json:"lastmod,omitempty"`
	URLs    []URL      `json:"urls,omitempty"`
	Count   int        `json:"count"`
}

// Result is the outcome of resolving one sitemap URL. For an index
// document, URLs is the flattened union across all children that
// resolved successfully; failed children are simply absent. Partial
// success is the policy, not all-or-nothing.
type Result struct {
	Success  bool    `json:"success"`
	Type     string  `json:"type,omitempty"`
	URLs     []URL   `json:"urls,omitempty"`
	Sitemaps []Child `json:"sitemaps,omitempty"`
	Count    int     `json:"count"`
	Error    string  `json:"error,omitempty"`
}

// Resolver fetches and recursively expands sitemap documents.
type Resolver struct {
	client *http.Client
	log    logger.Logger
}

// NewResolver creates a sitemap resolver.
func NewResolver(log logger.Logger) *Resolver {
	return &Resolver{
		client: httpclient.New(fetchTimeout),
		log:    log,
	}
}

// Resolve fetches the sitemap at the given URL. A sitemap index is
// expanded recursively; an index with one bad child still returns the
// URLs recovered from its good children.
func (r *Resolver) Resolve(ctx context.Context, sitemapURL string) Result {
	return r.resolve(ctx, sitemapURL, 0)
}

func (r *Resolver) resolve(ctx context.Context, sitemapURL string, depth int) Result {
	if depth >= maxDepth {
		return Result{Error: fmt.Sprintf("sitemap nesting exceeds %d levels", maxDepth)}
	}

	body, err := r.fetch(ctx, sitemapURL)
	if err != nil {
		r.log.Warn("sitemap fetch failed",
			logger.String("sitemap_url", sitemapURL), logger.Err(err))
		return Result{Error: err.Error()}
	}

	if isSitemapIndex(body) {
		return r.resolveIndex(ctx, body, depth)
	}

	urls, parseErr := parseURLSet(body)
	if parseErr != nil {
		r.log.Warn("sitemap parse failed",
			logger.String("sitemap_url", sitemapURL), logger.Err(parseErr))
		return Result{Error: parseErr.Error()}
	}

	return Result{
		Success: true,
		Type:    domain.SitemapTypeSitemap,
		URLs:    urls,
		Count:   len(urls),
	}
}

// resolveIndex expands an index document child by child. A failed child
// short-circuits only its own branch.
func (r *Resolver) resolveIndex(ctx context.Context, body []byte, depth int) Result {
	entries, err := parseSitemapIndex(body)
	if err != nil {
		return Result{Error: err.Error()}
	}

	children := make([]Child, 0, len(entries))
	var all []URL

	for _, entry := range entries {
		loc := strings.TrimSpace(entry.Loc)
		if loc == "" {
			continue
		}

		childResult := r.resolve(ctx, loc, depth+1)
		if !childResult.Success {
			continue
		}

		child := Child{URL: loc, URLs: childResult.URLs, Count: childResult.Count}
		if entry.LastMod != "" {
			if t, parseErr := parseLastMod(entry.LastMod); parseErr == nil {
				child.LastMod = &t
			}
		}

		children = append(children, child)
		all = append(all, childResult.URLs...)
	}

	return Result{
		Success:  true,
		Type:     domain.SitemapTypeIndex,
		URLs:     all,
		Sitemaps: children,
		Count:    len(all),
	}
}

// fetch retrieves a sitemap document body.
func (r *Resolver) fetch(ctx context.Context, sitemapURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("failed to fetch sitemap: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read sitemap body: %w", err)
	}

	return body, nil
}

// ExtractHost returns the scheme://host prefix of a URL, used to derive
// the submission host for the key-based engine.
func ExtractHost(rawURL string) (string, error) {
	parsed, err := neturl.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("url %q has no scheme or host", rawURL)
	}
	return parsed.Scheme + "://" + parsed.Host, nil
}
