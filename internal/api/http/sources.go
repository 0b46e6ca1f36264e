package http

import (
	"fmt"
	"net/http"

	"github.com/GriffinCanCode/Shelf/backend/internal/domain/source"
	"github.com/gin-gonic/gin"
)

// source resolves the :id param or answers 404
func (h *Handlers) source(c *gin.Context) (source.Source, bool) {
	src, ok := h.registry.Source(c.Param("id"))
	if !ok {
		fail(c, http.StatusNotFound, fmt.Errorf("source not installed: %s", c.Param("id")))
	}
	return src, ok
}

// respond writes v or a 404 when the guest produced nothing
func respond[T any](c *gin.Context, key string, v T, ok bool) {
	if !ok {
		absent(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		key:       v,
	})
}

// GetListings returns the listings a source offers
func (h *Handlers) GetListings(c *gin.Context) {
	src, ok := h.source(c)
	if !ok {
		return
	}
	listings, ok := src.GetListings(c.Request.Context())
	respond(c, "listings", listings, ok)
}

// GetListing returns one page of a listing
func (h *Handlers) GetListing(c *gin.Context) {
	src, ok := h.source(c)
	if !ok {
		return
	}
	p, ok := page(c)
	if !ok {
		return
	}
	listing, ok := src.GetListing(c.Request.Context(), c.Param("listing"), p)
	respond(c, "listing", listing, ok)
}

// Search runs a query with optional filters
func (h *Handlers) Search(c *gin.Context) {
	src, ok := h.source(c)
	if !ok {
		return
	}

	var req struct {
		Query   string          `json:"query"`
		Page    int             `json:"page"`
		Filters []source.Filter `json:"filters"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}
	if req.Page < 1 {
		req.Page = 1
	}

	results, ok := src.GetSearchResults(c.Request.Context(), req.Query, req.Page, req.Filters)
	respond(c, "results", results, ok)
}

// GetEntry returns entry details
func (h *Handlers) GetEntry(c *gin.Context) {
	src, ok := h.source(c)
	if !ok {
		return
	}
	entry, ok := src.GetEntry(c.Request.Context(), c.Param("entry"))
	respond(c, "entry", entry, ok)
}

// GetItems returns chapters or episodes of an entry depending on the
// source kind
func (h *Handlers) GetItems(c *gin.Context) {
	src, ok := h.source(c)
	if !ok {
		return
	}
	p, ok := page(c)
	if !ok {
		return
	}
	ctx, entry := c.Request.Context(), c.Param("entry")

	switch s := src.(type) {
	case source.TextSource:
		chapters, ok := s.GetChapters(ctx, entry, p)
		respond(c, "chapters", chapters, ok)
	case source.ImageSource:
		chapters, ok := s.GetChapters(ctx, entry, p)
		respond(c, "chapters", chapters, ok)
	case source.VideoSource:
		episodes, ok := s.GetEpisodes(ctx, entry, p)
		respond(c, "episodes", episodes, ok)
	}
}

// GetItemDetails returns chapter content, pages or streams
func (h *Handlers) GetItemDetails(c *gin.Context) {
	src, ok := h.source(c)
	if !ok {
		return
	}
	ctx, entry, item := c.Request.Context(), c.Param("entry"), c.Param("item")

	switch s := src.(type) {
	case source.TextSource:
		chapter, ok := s.GetChapterDetails(ctx, item, entry)
		respond(c, "chapter", chapter, ok)
	case source.ImageSource:
		pages, ok := s.GetChapterDetails(ctx, item, entry)
		respond(c, "pages", pages, ok)
	case source.VideoSource:
		details, ok := s.GetEpisodeDetails(ctx, item, entry)
		respond(c, "episode", details, ok)
	}
}

// GetFilters returns the search filters a source supports
func (h *Handlers) GetFilters(c *gin.Context) {
	src, ok := h.source(c)
	if !ok {
		return
	}
	filters, ok := src.GetFilters(c.Request.Context())
	respond(c, "filters", filters, ok)
}

// GetSourceSettings returns the source's settings schema
func (h *Handlers) GetSourceSettings(c *gin.Context) {
	src, ok := h.source(c)
	if !ok {
		return
	}
	settings, ok := src.GetSettings(c.Request.Context())
	respond(c, "settings", settings, ok)
}

// ModifyRequest lets image and video sources rewrite a media request
func (h *Handlers) ModifyRequest(c *gin.Context) {
	src, ok := h.source(c)
	if !ok {
		return
	}

	var req source.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}

	switch s := src.(type) {
	case source.ImageSource:
		modified, ok := s.ModifyImageRequest(c.Request.Context(), req)
		respond(c, "request", modified, ok)
	case source.VideoSource:
		modified, ok := s.ModifyVideoRequest(c.Request.Context(), req)
		respond(c, "request", modified, ok)
	default:
		fail(c, http.StatusBadRequest, fmt.Errorf("%s sources do not modify requests", src.Kind()))
	}
}
