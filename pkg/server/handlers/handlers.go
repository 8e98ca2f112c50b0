// Package handlers implements the HTTP API on top of the graph
// engine.
package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/soundprediction/graphrag"
	"github.com/soundprediction/graphrag/pkg/server/dto"
)

// Engine is the slice of the graph engine the handlers use.
type Engine interface {
	InsertGraphData(ctx context.Context, index, text string) error
	InsertGraphDataChunked(ctx context.Context, index, text string) error
	SearchGraph(ctx context.Context, index, query string) (string, error)
	SearchGraphStream(ctx context.Context, index, query string, fn func(fragment string) error) error
	SearchGraphCommunity(ctx context.Context, index, query string) (string, error)
	RebuildCommunities(ctx context.Context, index string) error
	RebuildGlobal(ctx context.Context, index string) error
	DeleteIndex(ctx context.Context, index string) error
	GetGraph(ctx context.Context, index string) (*graphrag.GraphView, error)
	ListIndices(ctx context.Context) ([]string, error)
}

// generateProcessID generates a unique id for tracking async
// operations.
func generateProcessID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("proc_%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("proc_%s", hex.EncodeToString(bytes))
}

func abortError(c *gin.Context, status int, code string, err error) {
	c.AbortWithStatusJSON(status, dto.ErrorResponse{
		Error:   code,
		Message: err.Error(),
	})
}

func indexParam(c *gin.Context) (string, bool) {
	index := c.Param("index")
	if index == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid_request",
			Message: "index is required",
		})
		return "", false
	}
	return index, true
}
