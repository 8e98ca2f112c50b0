package vector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newQdrantTestServer(t *testing.T, search func(body map[string]any) []qdrantScoredPoint) (*httptest.Server, *[]string) {
	t.Helper()
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		w.Header().Set("Content-Type", "application/json")

		switch {
		case strings.HasSuffix(r.URL.Path, "/points/search"):
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			points := search(body)
			raw, _ := json.Marshal(points)
			json.NewEncoder(w).Encode(map[string]any{"result": json.RawMessage(raw), "status": "ok"})
		default:
			json.NewEncoder(w).Encode(map[string]any{"result": true, "status": "ok"})
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newQdrantTestMemory(t *testing.T, url string) *QdrantMemory {
	t.Helper()
	m, err := NewQdrantMemory(QdrantConfig{URL: url, CollectionPrefix: "graphrag_"}, stubEmbedder{})
	if err != nil {
		t.Fatalf("NewQdrantMemory: %v", err)
	}
	return m
}

func TestQdrantSaveCreatesCollectionOnce(t *testing.T) {
	srv, calls := newQdrantTestServer(t, func(map[string]any) []qdrantScoredPoint { return nil })
	m := newQdrantTestMemory(t, srv.URL)
	ctx := context.Background()

	if err := m.Save(ctx, "idx", "n1", "text one"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := m.Save(ctx, "idx", "n2", "text two"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	creates := 0
	for _, c := range *calls {
		if c == "PUT /collections/graphrag_idx" {
			creates++
		}
	}
	if creates != 1 {
		t.Errorf("collection created %d times, want 1; calls: %v", creates, *calls)
	}
}

func TestQdrantSearchMapsPayload(t *testing.T) {
	srv, _ := newQdrantTestServer(t, func(map[string]any) []qdrantScoredPoint {
		return []qdrantScoredPoint{
			{Score: 0.91, Payload: map[string]any{payloadIDKey: "n1", payloadTextKey: "stored text"}},
			{Score: 0.85, Payload: map[string]any{payloadIDKey: "n2", payloadTextKey: "other"}},
			{Score: 0.95, Payload: map[string]any{payloadTextKey: "no id, dropped"}},
		}
	})
	m := newQdrantTestMemory(t, srv.URL)

	hits, err := m.Search(context.Background(), "idx", "query", 5, 0.5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("want 2 hits, got %v", hits)
	}
	if hits[0].ID != "n1" || hits[0].Text != "stored text" || hits[0].Relevance != 0.91 {
		t.Errorf("unexpected first hit: %+v", hits[0])
	}
}

func TestQdrantSearchIdentityText(t *testing.T) {
	srv, _ := newQdrantTestServer(t, func(map[string]any) []qdrantScoredPoint {
		return []qdrantScoredPoint{
			{Score: 0.93, Payload: map[string]any{payloadIDKey: "n1", payloadTextKey: "exact query"}},
		}
	})
	m := newQdrantTestMemory(t, srv.URL)

	hits, err := m.Search(context.Background(), "idx", "exact query", 5, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Relevance != 1.0 {
		t.Errorf("identical stored text should score 1.0, got %v", hits)
	}
}

func TestQdrantRetriesServerErrors(t *testing.T) {
	var deletes int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/points/delete") {
			deletes++
			if deletes < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"result": true, "status": "ok"})
	}))
	t.Cleanup(srv.Close)

	m := newQdrantTestMemory(t, srv.URL)
	m.retryDelay = time.Millisecond

	if err := m.Remove(context.Background(), "idx", "n1"); err != nil {
		t.Fatalf("Remove should succeed after transient failures: %v", err)
	}
	if deletes != 3 {
		t.Errorf("want 3 delete attempts, got %d", deletes)
	}
}

func TestQdrantDoesNotRetryClientErrors(t *testing.T) {
	var searches int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		searches++
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	m := newQdrantTestMemory(t, srv.URL)
	m.retryDelay = time.Millisecond

	if _, err := m.Search(context.Background(), "idx", "q", 5, 0.5); err == nil {
		t.Fatal("want error for 400 response")
	}
	if searches != 1 {
		t.Errorf("client errors must not be retried; got %d attempts", searches)
	}
}

func TestQdrantDeterministicPointID(t *testing.T) {
	m := newQdrantTestMemory(t, "http://localhost:6333")
	a := m.pointID("idx", "n1")
	b := m.pointID("idx", "n1")
	c := m.pointID("idx", "n2")
	if a != b {
		t.Errorf("point id not deterministic: %s vs %s", a, b)
	}
	if a == c {
		t.Errorf("distinct node ids collided: %s", a)
	}
}
