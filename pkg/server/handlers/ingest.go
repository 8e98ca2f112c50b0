package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/soundprediction/graphrag/pkg/server/dto"
)

// IngestHandler handles text ingestion requests.
type IngestHandler struct {
	engine Engine
	logger *slog.Logger
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(engine Engine, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{engine: engine, logger: logger}
}

// InsertText handles POST /api/v1/graph/:index/text. The text is
// ingested synchronously as a single chunk.
func (h *IngestHandler) InsertText(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}

	var req dto.InsertTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := req.Validate(); err != nil {
		abortError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	if err := h.engine.InsertGraphData(c.Request.Context(), index, req.Text); err != nil {
		abortError(c, http.StatusInternalServerError, "ingest_failed", err)
		return
	}
	c.JSON(http.StatusOK, dto.Result{Success: true})
}

// InsertTextChunked handles POST /api/v1/graph/:index/text/chunked.
// The text is chunked and ingested in the background; the response
// acknowledges acceptance with a process id.
func (h *IngestHandler) InsertTextChunked(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}

	var req dto.InsertTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := req.Validate(); err != nil {
		abortError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	processID := generateProcessID()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("panic recovered in background ingest",
					"process_id", processID, "index", index, "panic", r)
			}
		}()

		ctx := context.Background()
		h.logger.Info("background ingest started", "process_id", processID, "index", index)
		if err := h.engine.InsertGraphDataChunked(ctx, index, req.Text); err != nil {
			h.logger.Error("background ingest failed",
				"process_id", processID, "index", index, "error", err)
			return
		}
		h.logger.Info("background ingest finished", "process_id", processID, "index", index)
	}()

	c.JSON(http.StatusAccepted, dto.ProcessResponse{
		ProcessID: processID,
		Status:    "accepted",
	})
}
