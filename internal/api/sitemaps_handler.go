package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SitemapsHandler handles sitemap endpoints.
type SitemapsHandler struct {
	indexer Indexer
	sites   SiteManager
	monitor Monitor
}

// ParseRequest is the body for POST /api/v1/sitemaps/parse.
type ParseRequest struct {
	URL string `json:"url" binding:"required"`
}

// Parse handles POST /api/v1/sitemaps/parse. It resolves the sitemap,
// recursing through index documents, without registering any pages.
func (h *SitemapsHandler) Parse(c *gin.Context) {
	var req ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}

	result := h.indexer.ParseSitemap(c.Request.Context(), req.URL)
	if !result.Success {
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// MonitorRequest is the body for POST /api/v1/sitemaps/monitor.
type MonitorRequest struct {
	SiteID string `json:"site_id" binding:"required"`
	Force  bool   `json:"force"`
}

// Monitor handles POST /api/v1/sitemaps/monitor. It runs one discovery
// pass over the site's sitemaps and registers the URLs found.
func (h *SitemapsHandler) Monitor(c *gin.Context) {
	var req MonitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}

	site, ok := loadSite(c, h.sites, req.SiteID)
	if !ok {
		return
	}

	summary, err := h.monitor.Monitor(c.Request.Context(), site, req.Force)
	if err != nil {
		respondInternalError(c, "sitemap monitor pass failed")
		return
	}
	c.JSON(http.StatusOK, summary)
}
