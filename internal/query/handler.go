package query

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"critique-backend/internal/index"
	"critique-backend/internal/records"
	"critique-backend/internal/shared/metrics"
	"critique-backend/internal/shared/server/middleware"
	"critique-backend/internal/shared/server/respond"
)

const (
	defaultListSize   = 1000
	defaultFilterSize = 100
	defaultSearchSize = 100
	maxSize           = 10000
)

// Handler exposes the query endpoints.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches query routes to the router.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/indices", h.getIndices)
	r.GET("/indices/:collection/:id", h.getDocument)
	r.GET("/critics", h.listCollection(records.CriticsIndex))
	r.GET("/critiques", h.listCollection(records.CritiquesIndex))
	r.GET("/game-registrants", h.listCollection(records.GameIndex))
	r.GET("/critiques/by-program/:program", h.critiquesByProgram)
	r.GET("/critiques/by-user/:user_id", h.critiquesByUser)
	r.GET("/search", h.search)
}

func (h *Handler) getIndices(c *gin.Context) {
	respond.OK(c, gin.H{"indices": h.Svc.Collections()})
}

func (h *Handler) listCollection(collection string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.CollectionKey, collection)
		size, ok := parseSize(c, defaultListSize)
		if !ok {
			return
		}
		docs, err := h.Svc.List(c.Request.Context(), collection, size)
		if err != nil {
			writeIndexError(c, err)
			return
		}
		respond.OK(c, docs)
	}
}

func (h *Handler) critiquesByProgram(c *gin.Context) {
	c.Set(middleware.CollectionKey, records.CritiquesIndex)
	size, ok := parseSize(c, defaultFilterSize)
	if !ok {
		return
	}
	docs, err := h.Svc.CritiquesByProgram(c.Request.Context(), c.Param("program"), size)
	if err != nil {
		writeIndexError(c, err)
		return
	}
	respond.OK(c, docs)
}

func (h *Handler) critiquesByUser(c *gin.Context) {
	c.Set(middleware.CollectionKey, records.CritiquesIndex)
	size, ok := parseSize(c, defaultFilterSize)
	if !ok {
		return
	}
	docs, err := h.Svc.CritiquesByUser(c.Request.Context(), c.Param("user_id"), size)
	if err != nil {
		writeIndexError(c, err)
		return
	}
	respond.OK(c, docs)
}

func (h *Handler) search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("query"))
	if q == "" {
		respond.Error(c, http.StatusBadRequest, "missing_query", "query parameter is required", nil)
		return
	}
	size, ok := parseSize(c, defaultSearchSize)
	if !ok {
		return
	}
	collection := strings.TrimSpace(c.Query("index"))
	if collection != "" {
		c.Set(middleware.CollectionKey, collection)
	}
	hits, err := h.Svc.Search(c.Request.Context(), q, collection, size)
	if err != nil {
		if errors.Is(err, index.ErrUnknownCollection) {
			respond.Error(c, http.StatusBadRequest, "unknown_index", "unknown index", gin.H{"index": collection})
			return
		}
		writeIndexError(c, err)
		return
	}
	respond.OK(c, hits)
}

func (h *Handler) getDocument(c *gin.Context) {
	collection, id := c.Param("collection"), c.Param("id")
	c.Set(middleware.CollectionKey, collection)
	c.Set(middleware.RecordIDKey, id)

	doc, err := h.Svc.Get(c.Request.Context(), collection, id)
	if err != nil {
		if errors.Is(err, index.ErrUnknownCollection) || errors.Is(err, index.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "record not found", nil)
			return
		}
		writeIndexError(c, err)
		return
	}
	respond.OK(c, doc)
}

func parseSize(c *gin.Context, def int) (int, bool) {
	raw := strings.TrimSpace(c.Query("size"))
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > maxSize {
		respond.Error(c, http.StatusBadRequest, "invalid_size", "size must be between 1 and 10000", gin.H{"size": raw})
		return 0, false
	}
	return n, true
}

func writeIndexError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, index.ErrUnavailable):
		metrics.IncIndexUnavailable()
		respond.Error(c, http.StatusServiceUnavailable, "index_unavailable", "index is unavailable", nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
	case errors.Is(err, index.ErrUnknownCollection):
		respond.Error(c, http.StatusNotFound, "not_found", "unknown collection", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to query index", nil)
	}
}
