package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/pageindexer/internal/domain"
)

// IndexingHandler handles submission and status requests.
type IndexingHandler struct {
	indexer   Indexer
	sites     SiteManager
	publisher Publisher
}

// IndexRequest is the body for POST /api/v1/index.
type IndexRequest struct {
	URL     string   `json:"url" binding:"required"`
	SiteID  string   `json:"site_id"`
	Engines []string `json:"engines"`
}

// Index handles POST /api/v1/index.
func (h *IndexingHandler) Index(c *gin.Context) {
	var req IndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}

	site, ok := loadSite(c, h.sites, req.SiteID)
	if !ok {
		return
	}
	engineSet, ok := engineSetOrDefault(c, req.Engines)
	if !ok {
		return
	}

	result, err := h.indexer.Index(c.Request.Context(), site, req.URL, engineSet)
	if err != nil {
		if result != nil {
			// Submissions happened; report them alongside the error.
			c.JSON(http.StatusOK, gin.H{"result": result, "error": err.Error()})
			return
		}
		respondInternalError(c, "failed to index url")
		return
	}

	c.JSON(http.StatusOK, result)
}

// BulkIndexRequest is the body for POST /api/v1/bulk-index.
type BulkIndexRequest struct {
	URLs    []string `json:"urls" binding:"required,min=1"`
	SiteID  string   `json:"site_id"`
	Engines []string `json:"engines"`
}

// BulkIndex handles POST /api/v1/bulk-index.
func (h *IndexingHandler) BulkIndex(c *gin.Context) {
	var req BulkIndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}

	site, ok := loadSite(c, h.sites, req.SiteID)
	if !ok {
		return
	}
	engineSet, ok := engineSetOrDefault(c, req.Engines)
	if !ok {
		return
	}

	result, err := h.indexer.BulkIndex(c.Request.Context(), site, req.URLs, engineSet)
	if err != nil && result == nil {
		respondInternalError(c, "failed to submit urls")
		return
	}

	c.JSON(http.StatusOK, result)
}

// Status handles GET /api/v1/status?url=&site_id=.
func (h *IndexingHandler) Status(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		respondBadRequest(c, "url query parameter is required")
		return
	}

	site, ok := loadSite(c, h.sites, c.Query("site_id"))
	if !ok {
		return
	}

	result := h.indexer.CheckStatus(c.Request.Context(), site, url)
	if !result.Success {
		c.JSON(http.StatusBadGateway, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// PublishedRequest is the body for POST /api/v1/events/published.
type PublishedRequest struct {
	URL    string `json:"url" binding:"required"`
	SiteID string `json:"site_id"`
	Method string `json:"method"`
}

// PagePublished handles POST /api/v1/events/published. It accepts a
// page-went-live notification and hands it to the event stream; the
// subscriber decides whether the site auto-indexes.
func (h *IndexingHandler) PagePublished(c *gin.Context) {
	if h.publisher == nil {
		respondError(c, http.StatusServiceUnavailable, "event publishing is not configured")
		return
	}

	var req PublishedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Method != "" && !domain.ValidMethod(req.Method) {
		respondBadRequest(c, "unknown indexing method: "+req.Method)
		return
	}

	var siteID *string
	if req.SiteID != "" {
		siteID = &req.SiteID
	}

	if err := h.publisher.PagePublished(c.Request.Context(), siteID, req.URL, req.Method); err != nil {
		respondInternalError(c, "failed to publish event")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}
