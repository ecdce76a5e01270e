package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/pageindexer/internal/domain"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
)

// parseLimit parses the limit query param with a default and a cap.
func parseLimit(c *gin.Context) int {
	limitStr := c.DefaultQuery("limit", strconv.Itoa(defaultLimit))
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// respondError sends a JSON error response.
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// respondNotFound sends a 404 with resource not found message.
func respondNotFound(c *gin.Context, resource string) {
	respondError(c, http.StatusNotFound, resource+" not found")
}

// respondBadRequest sends a 400 with message.
func respondBadRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, message)
}

// respondInternalError sends a 500 with message.
func respondInternalError(c *gin.Context, message string) {
	respondError(c, http.StatusInternalServerError, message)
}

// loadSite resolves an optional site id from a request body. A missing
// id means single-site mode and returns nil without error.
func loadSite(c *gin.Context, sites SiteManager, siteID string) (*domain.Site, bool) {
	if siteID == "" {
		return nil, true
	}
	site, err := sites.GetByID(c.Request.Context(), siteID)
	if err != nil {
		respondNotFound(c, "site")
		return nil, false
	}
	return site, true
}

// engineSetOrDefault validates the requested engine names, defaulting to
// all engines when none are given.
func engineSetOrDefault(c *gin.Context, requested []string) ([]string, bool) {
	if len(requested) == 0 {
		return []string{domain.EngineGoogle, domain.EngineIndexNow}, true
	}
	for _, engine := range requested {
		if !domain.KnownEngine(engine) {
			respondBadRequest(c, "unknown engine: "+engine)
			return nil, false
		}
	}
	return requested, true
}
