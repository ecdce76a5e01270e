package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/pageindexer/internal/domain"
)

// PagesHandler handles page read endpoints.
type PagesHandler struct {
	pages PageReader
	jobs  JobReader
	sites SiteManager
}

// List handles GET /api/v1/pages?status=&limit=.
func (h *PagesHandler) List(c *gin.Context) {
	status := c.Query("status")
	limit := parseLimit(c)

	pages, err := h.pages.ListByStatus(c.Request.Context(), status, limit)
	if err != nil {
		respondInternalError(c, "failed to list pages")
		return
	}

	total, err := h.pages.CountByStatus(c.Request.Context(), status)
	if err != nil {
		respondInternalError(c, "failed to count pages")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pages": pages,
		"total": total,
	})
}

// Get handles GET /api/v1/pages/:id.
func (h *PagesHandler) Get(c *gin.Context) {
	page, ok := h.loadPage(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, page)
}

// History handles GET /api/v1/pages/:id/history.
func (h *PagesHandler) History(c *gin.Context) {
	page, ok := h.loadPage(c)
	if !ok {
		return
	}

	history, err := h.pages.History(c.Request.Context(), page.ID, parseLimit(c))
	if err != nil {
		respondInternalError(c, "failed to load status history")
		return
	}

	c.JSON(http.StatusOK, gin.H{"page_id": page.ID, "history": history})
}

// Jobs handles GET /api/v1/pages/:id/jobs.
func (h *PagesHandler) Jobs(c *gin.Context) {
	page, ok := h.loadPage(c)
	if !ok {
		return
	}

	jobs, err := h.jobs.ListByPage(c.Request.Context(), page.ID, parseLimit(c))
	if err != nil {
		respondInternalError(c, "failed to load indexing jobs")
		return
	}

	c.JSON(http.StatusOK, gin.H{"page_id": page.ID, "jobs": jobs})
}

func (h *PagesHandler) loadPage(c *gin.Context) (*domain.Page, bool) {
	id := c.Param("id")
	if id == "" || id == "undefined" {
		respondBadRequest(c, "invalid page id")
		return nil, false
	}

	page, err := h.pages.GetByID(c.Request.Context(), id)
	if err != nil {
		respondNotFound(c, "page")
		return nil, false
	}
	return page, true
}
