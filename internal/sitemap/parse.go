// Package sitemap fetches and resolves sitemap XML and sitemap index
// documents, recursively flattening index files into the URLs of their
// descendant sitemaps.
package sitemap

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// dateOnlyFormat is the date-only layout for sitemap lastmod values (e.g. "2024-01-15").
const dateOnlyFormat = "2006-01-02"

// URL represents a single URL entry extracted from a sitemap, together
// with the optional hints the document carries for it.
type URL struct {
	Loc        string     `json:"loc"`
	LastMod    *time.Time `json:"lastmod,omitempty"`
	ChangeFreq string     `json:"changefreq,omitempty"`
	Priority   *float64   `json:"priority,omitempty"`
}

// xmlURLSet is the root element of a standard sitemap XML file.
type xmlURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []xmlURL `xml:"url"`
}

// xmlURL is a single <url> entry inside a <urlset>.
type xmlURL struct {
	Loc        string  `xml:"loc"`
	LastMod    string  `xml:"lastmod"`
	ChangeFreq string  `xml:"changefreq"`
	Priority   float64 `xml:"priority"`
}

// xmlSitemapIndex is the root element of a sitemap index XML file.
type xmlSitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []xmlSitemap `xml:"sitemap"`
}

// xmlSitemap is a single <sitemap> entry inside a <sitemapindex>.
type xmlSitemap struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

// parseURLSet parses standard sitemap XML into URL entries.
func parseURLSet(body []byte) ([]URL, error) {
	var urlset xmlURLSet
	if err := xml.Unmarshal(body, &urlset); err != nil {
		return nil, fmt.Errorf("parse sitemap: %w", err)
	}

	urls := make([]URL, 0, len(urlset.URLs))
	for i := range urlset.URLs {
		urls = append(urls, convertXMLURL(&urlset.URLs[i]))
	}

	return urls, nil
}

// convertXMLURL converts a raw XML URL entry, parsing the optional
// lastmod date and priority.
func convertXMLURL(entry *xmlURL) URL {
	u := URL{
		Loc:        strings.TrimSpace(entry.Loc),
		ChangeFreq: entry.ChangeFreq,
	}

	if entry.LastMod != "" {
		if t, err := parseLastMod(entry.LastMod); err == nil {
			u.LastMod = &t
		}
	}

	if entry.Priority > 0 {
		priority := entry.Priority
		u.Priority = &priority
	}

	return u
}

// parseSitemapIndex parses a sitemap index XML file and returns the
// child sitemap entries listed within it.
func parseSitemapIndex(body []byte) ([]xmlSitemap, error) {
	var index xmlSitemapIndex
	if err := xml.Unmarshal(body, &index); err != nil {
		return nil, fmt.Errorf("parse sitemap index: %w", err)
	}
	return index.Sitemaps, nil
}

// isSitemapIndex detects whether the document's root element is a
// sitemap index without fully decoding it.
func isSitemapIndex(body []byte) bool {
	decoder := xml.NewDecoder(strings.NewReader(string(body)))
	for {
		tok, err := decoder.Token()
		if err != nil {
			return false
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local == "sitemapindex"
		}
	}
}

// parseLastMod attempts to parse a sitemap lastmod value. It tries RFC 3339
// first (e.g. "2024-01-15T10:30:00Z"), then falls back to the date-only
// format (e.g. "2024-01-15").
func parseLastMod(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)

	t, err := time.Parse(time.RFC3339, trimmed)
	if err == nil {
		return t, nil
	}

	t, dateErr := time.Parse(dateOnlyFormat, trimmed)
	if dateErr == nil {
		return t, nil
	}

	return time.Time{}, fmt.Errorf("parse lastmod %q: %w", trimmed, dateErr)
}
