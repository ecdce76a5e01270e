package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SitesHandler handles site registry endpoints.
type SitesHandler struct {
	sites SiteManager
}

// List handles GET /api/v1/sites.
func (h *SitesHandler) List(c *gin.Context) {
	sites, err := h.sites.List(c.Request.Context())
	if err != nil {
		respondInternalError(c, "failed to list sites")
		return
	}
	c.JSON(http.StatusOK, gin.H{"sites": sites, "total": len(sites)})
}

// Get handles GET /api/v1/sites/:id.
func (h *SitesHandler) Get(c *gin.Context) {
	site, err := h.sites.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondNotFound(c, "site")
		return
	}
	c.JSON(http.StatusOK, site)
}

// UpsertSiteRequest is the body for POST /api/v1/sites.
type UpsertSiteRequest struct {
	CanonicalURL string `json:"canonical_url" binding:"required"`
	Name         string `json:"name"`
}

// Upsert handles POST /api/v1/sites.
func (h *SitesHandler) Upsert(c *gin.Context) {
	var req UpsertSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}

	name := req.Name
	if name == "" {
		name = req.CanonicalURL
	}

	site, err := h.sites.Upsert(c.Request.Context(), req.CanonicalURL, name)
	if err != nil {
		respondInternalError(c, "failed to save site")
		return
	}
	c.JSON(http.StatusOK, site)
}

// AutoIndexingRequest is the body for PUT /api/v1/sites/:id/auto-indexing.
type AutoIndexingRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SetAutoIndexing handles PUT /api/v1/sites/:id/auto-indexing.
func (h *SitesHandler) SetAutoIndexing(c *gin.Context) {
	var req AutoIndexingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}

	if err := h.sites.SetAutoIndexing(c.Request.Context(), c.Param("id"), *req.Enabled); err != nil {
		respondNotFound(c, "site")
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": *req.Enabled})
}

// IndexNowKeyRequest is the body for PUT /api/v1/sites/:id/indexnow-key.
// An empty key clears the stored key and disables the key-based engine
// for the site.
type IndexNowKeyRequest struct {
	Key string `json:"key"`
}

// SetIndexNowKey handles PUT /api/v1/sites/:id/indexnow-key.
func (h *SitesHandler) SetIndexNowKey(c *gin.Context) {
	var req IndexNowKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}

	var key *string
	if req.Key != "" {
		key = &req.Key
	}

	if err := h.sites.SetIndexNowKey(c.Request.Context(), c.Param("id"), key); err != nil {
		respondNotFound(c, "site")
		return
	}
	c.JSON(http.StatusOK, gin.H{"configured": key != nil})
}
