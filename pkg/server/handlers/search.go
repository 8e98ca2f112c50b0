package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/soundprediction/graphrag"
	"github.com/soundprediction/graphrag/pkg/server/dto"
)

// SearchHandler handles question answering and summary rebuilds.
type SearchHandler struct {
	engine Engine
	logger *slog.Logger
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(engine Engine, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{engine: engine, logger: logger}
}

func bindSearch(c *gin.Context) (index, query string, ok bool) {
	index, ok = indexParam(c)
	if !ok {
		return "", "", false
	}

	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid_request", err)
		return "", "", false
	}
	if err := req.Validate(); err != nil {
		abortError(c, http.StatusBadRequest, "invalid_request", err)
		return "", "", false
	}
	return index, req.Query, true
}

func searchStatus(err error) int {
	if errors.Is(err, graphrag.ErrEmptyIndex) || errors.Is(err, graphrag.ErrEmptyQuery) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Search handles POST /api/v1/graph/:index/search.
func (h *SearchHandler) Search(c *gin.Context) {
	index, query, ok := bindSearch(c)
	if !ok {
		return
	}

	answer, err := h.engine.SearchGraph(c.Request.Context(), index, query)
	if err != nil {
		abortError(c, searchStatus(err), "search_failed", err)
		return
	}
	c.JSON(http.StatusOK, dto.SearchResponse{Answer: answer})
}

// SearchStream handles POST /api/v1/graph/:index/search/stream,
// emitting answer fragments as server-sent events. An empty subgraph
// closes the stream without events.
func (h *SearchHandler) SearchStream(c *gin.Context) {
	index, query, ok := bindSearch(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	err := h.engine.SearchGraphStream(c.Request.Context(), index, query, func(fragment string) error {
		if err := c.Request.Context().Err(); err != nil {
			return err
		}
		c.SSEvent("message", fragment)
		c.Writer.Flush()
		return nil
	})
	if err != nil {
		h.logger.Warn("stream aborted", "index", index, "error", err)
		c.SSEvent("error", err.Error())
		c.Writer.Flush()
		return
	}
	c.SSEvent("done", "")
	c.Writer.Flush()
}

// SearchCommunity handles POST /api/v1/graph/:index/search/community,
// answering with community and global summaries as extra context.
func (h *SearchHandler) SearchCommunity(c *gin.Context) {
	index, query, ok := bindSearch(c)
	if !ok {
		return
	}

	answer, err := h.engine.SearchGraphCommunity(c.Request.Context(), index, query)
	if err != nil {
		abortError(c, searchStatus(err), "search_failed", err)
		return
	}
	c.JSON(http.StatusOK, dto.SearchResponse{Answer: answer})
}

// RebuildCommunities handles POST /api/v1/graph/:index/communities/rebuild.
func (h *SearchHandler) RebuildCommunities(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}

	if err := h.engine.RebuildCommunities(c.Request.Context(), index); err != nil {
		abortError(c, http.StatusInternalServerError, "rebuild_failed", err)
		return
	}
	c.JSON(http.StatusOK, dto.Result{Success: true})
}

// RebuildGlobal handles POST /api/v1/graph/:index/global/rebuild.
func (h *SearchHandler) RebuildGlobal(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}

	if err := h.engine.RebuildGlobal(c.Request.Context(), index); err != nil {
		abortError(c, http.StatusInternalServerError, "rebuild_failed", err)
		return
	}
	c.JSON(http.StatusOK, dto.Result{Success: true})
}
