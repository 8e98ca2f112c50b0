package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/soundprediction/graphrag/pkg/server/dto"
)

// GraphHandler handles graph reads and index administration.
type GraphHandler struct {
	engine Engine
	logger *slog.Logger
}

// NewGraphHandler creates a new graph handler.
func NewGraphHandler(engine Engine, logger *slog.Logger) *GraphHandler {
	return &GraphHandler{engine: engine, logger: logger}
}

// ListIndices handles GET /api/v1/indices.
func (h *GraphHandler) ListIndices(c *gin.Context) {
	indices, err := h.engine.ListIndices(c.Request.Context())
	if err != nil {
		abortError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	if indices == nil {
		indices = []string{}
	}
	c.JSON(http.StatusOK, dto.IndicesResponse{Indices: indices})
}

// GetGraph handles GET /api/v1/graph/:index, returning the whole
// graph in visualization shape.
func (h *GraphHandler) GetGraph(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}

	view, err := h.engine.GetGraph(c.Request.Context(), index)
	if err != nil {
		abortError(c, http.StatusInternalServerError, "read_failed", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// DeleteIndex handles DELETE /api/v1/graph/:index.
func (h *GraphHandler) DeleteIndex(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}

	if err := h.engine.DeleteIndex(c.Request.Context(), index); err != nil {
		abortError(c, http.StatusInternalServerError, "delete_failed", err)
		return
	}
	h.logger.Info("index deleted via api", "index", index)
	c.JSON(http.StatusOK, dto.Result{Success: true})
}

// HealthCheck handles GET /health.
func (h *GraphHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
