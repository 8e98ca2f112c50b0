package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soundprediction/graphrag/pkg/embedder"
	"github.com/soundprediction/graphrag/pkg/types"
)

const (
	payloadIDKey   = "_gr_node_id"
	payloadTextKey = "_gr_text"

	maxErrorBodyBytes = 1024

	// retryAttempts is the total number of tries for a transient
	// qdrant failure; the delay doubles between attempts.
	retryAttempts  = 3
	retryBaseDelay = 200 * time.Millisecond
)

// pointIDNamespace seeds the deterministic uuid derived for each
// (index, node id) pair, so re-saving a node overwrites its point.
var pointIDNamespace = uuid.MustParse("7f3cab00-55c1-4da0-8000-1f58c39a6d21")

// QdrantConfig holds connection settings for a qdrant instance.
type QdrantConfig struct {
	URL string
	// CollectionPrefix namespaces collections; the collection for an
	// index is prefix + index.
	CollectionPrefix string
	VectorDim        int
	Timeout          time.Duration
}

// QdrantMemory is a Memory backed by a qdrant instance over its REST
// API. Each index maps to its own collection; points carry the node
// text in the payload.
type QdrantMemory struct {
	cfg        QdrantConfig
	baseURL    string
	embedder   embedder.Client
	http       *http.Client
	retryDelay time.Duration

	mu      sync.Mutex
	created map[string]bool
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

type qdrantScoredPoint struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

// NewQdrantMemory creates a qdrant-backed memory.
func NewQdrantMemory(cfg QdrantConfig, emb embedder.Client) (*QdrantMemory, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url required")
	}
	if cfg.VectorDim <= 0 {
		cfg.VectorDim = emb.Dimensions()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &QdrantMemory{
		cfg:        cfg,
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		embedder:   emb,
		http:       &http.Client{Timeout: cfg.Timeout},
		retryDelay: retryBaseDelay,
		created:    make(map[string]bool),
	}, nil
}

func (m *QdrantMemory) collection(index string) string {
	return m.cfg.CollectionPrefix + index
}

func (m *QdrantMemory) pointID(index, id string) string {
	return uuid.NewSHA1(pointIDNamespace, []byte(index+"/"+id)).String()
}

// ensureCollection creates the index's collection once per process.
func (m *QdrantMemory) ensureCollection(ctx context.Context, index string) error {
	name := m.collection(index)
	m.mu.Lock()
	done := m.created[name]
	m.mu.Unlock()
	if done {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     m.cfg.VectorDim,
			"distance": "Cosine",
		},
	}
	// 409 means the collection already exists; both outcomes are fine.
	err := m.doJSON(ctx, http.MethodPut, "/collections/"+name, body, nil, http.StatusConflict)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.created[name] = true
	m.mu.Unlock()
	return nil
}

// Save upserts the embedding for id in index.
func (m *QdrantMemory) Save(ctx context.Context, index, id, text string) error {
	if err := m.ensureCollection(ctx, index); err != nil {
		return err
	}
	embedding, err := m.embedder.EmbedSingle(ctx, text)
	if err != nil {
		return fmt.Errorf("embed %q: %w", id, err)
	}

	body := map[string]any{
		"points": []map[string]any{{
			"id":     m.pointID(index, id),
			"vector": embedding,
			"payload": map[string]any{
				payloadIDKey:   id,
				payloadTextKey: text,
			},
		}},
	}
	return m.doJSON(ctx, http.MethodPut, "/collections/"+m.collection(index)+"/points?wait=true", body, nil)
}

// Search queries the index's collection. Stored text identical to the
// query, or a score at the identity floor, yields relevance 1.0.
func (m *QdrantMemory) Search(ctx context.Context, index, query string, limit int, minRelevance float64) ([]types.SearchHit, error) {
	if limit <= 0 {
		return nil, nil
	}
	embedding, err := m.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	body := map[string]any{
		"vector":          embedding,
		"limit":           limit,
		"with_payload":    true,
		"score_threshold": minRelevance,
	}
	var result []qdrantScoredPoint
	err = m.doJSON(ctx, http.MethodPost, "/collections/"+m.collection(index)+"/points/search", body, &result, http.StatusNotFound)
	if err != nil {
		return nil, err
	}

	hits := make([]types.SearchHit, 0, len(result))
	for _, p := range result {
		hit := types.SearchHit{Relevance: normalizeScore(p.Score)}
		if v, ok := p.Payload[payloadIDKey].(string); ok {
			hit.ID = v
		}
		if v, ok := p.Payload[payloadTextKey].(string); ok {
			hit.Text = v
		}
		if hit.Text == query {
			hit.Relevance = 1.0
		}
		if hit.ID == "" || hit.Relevance < minRelevance {
			continue
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Remove deletes the record for id in index.
func (m *QdrantMemory) Remove(ctx context.Context, index, id string) error {
	body := map[string]any{
		"points": []string{m.pointID(index, id)},
	}
	// A missing collection means there is nothing to remove.
	return m.doJSON(ctx, http.MethodPost, "/collections/"+m.collection(index)+"/points/delete?wait=true", body, nil, http.StatusNotFound)
}

// doJSON performs a JSON round-trip against the qdrant API, retrying
// connectivity failures and 5xx responses with exponential backoff.
// Status codes listed in tolerated are treated as success with an
// empty result.
func (m *QdrantMemory) doJSON(ctx context.Context, method, path string, body any, out any, tolerated ...int) error {
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}

	var lastErr error
	delay := m.retryDelay
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
		var transient bool
		transient, lastErr = m.roundTrip(ctx, method, path, raw, out, tolerated)
		if lastErr == nil || !transient {
			return lastErr
		}
	}
	return lastErr
}

// roundTrip performs one request. The bool reports whether the
// failure is transient and worth retrying.
func (m *QdrantMemory) roundTrip(ctx context.Context, method, path string, raw []byte, out any, tolerated []int) (bool, error) {
	var reqBody io.Reader
	if raw != nil {
		reqBody = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, reqBody)
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("qdrant %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		for _, code := range tolerated {
			if resp.StatusCode == code {
				return false, nil
			}
		}
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		err := fmt.Errorf("qdrant %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
		return resp.StatusCode >= 500, err
	}

	if out == nil {
		return false, nil
	}
	var envelope qdrantEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return false, fmt.Errorf("decode qdrant response: %w", err)
	}
	if len(envelope.Result) == 0 {
		return false, nil
	}
	return false, json.Unmarshal(envelope.Result, out)
}
