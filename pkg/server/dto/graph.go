// Package dto defines the request and response shapes of the HTTP
// API.
package dto

import (
	"errors"
	"strings"
)

// MaxContentLength caps ingested text at 1 MiB.
const MaxContentLength = 1 << 20

// ErrContentTooLong is returned when ingested text exceeds
// MaxContentLength.
var ErrContentTooLong = errors.New("content exceeds maximum length")

// InsertTextRequest is the body of the text ingest endpoints.
type InsertTextRequest struct {
	Text string `json:"text" binding:"required"`
}

// Validate performs validation on InsertTextRequest.
func (r *InsertTextRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return errors.New("text cannot be empty")
	}
	if len(r.Text) > MaxContentLength {
		return ErrContentTooLong
	}
	return nil
}

// SearchRequest is the body of the search endpoints.
type SearchRequest struct {
	Query string `json:"query" binding:"required"`
}

// Validate performs validation on SearchRequest.
func (r *SearchRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return errors.New("query cannot be empty")
	}
	return nil
}

// SearchResponse carries a completed answer.
type SearchResponse struct {
	Answer string `json:"answer"`
}

// IndicesResponse lists the known indices.
type IndicesResponse struct {
	Indices []string `json:"indices"`
}

// ProcessResponse acknowledges an accepted background operation.
type ProcessResponse struct {
	ProcessID string `json:"process_id"`
	Status    string `json:"status"`
}

// Result represents a generic API result.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
