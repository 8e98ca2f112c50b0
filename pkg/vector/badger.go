package vector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/soundprediction/graphrag/pkg/embedder"
	"github.com/soundprediction/graphrag/pkg/types"
)

// BadgerMemory is an embedded Memory backed by badger. Records are
// keyed by index and node id; search is a brute-force cosine scan
// over the index's records, which is adequate for single-process
// deployments and tests.
type BadgerMemory struct {
	db       *badger.DB
	embedder embedder.Client
}

type badgerRecord struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
}

// NewBadgerMemory opens (or creates) a badger-backed memory at path.
// An empty path opens an in-memory database.
func NewBadgerMemory(path string, emb embedder.Client) (*BadgerMemory, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return &BadgerMemory{db: db, embedder: emb}, nil
}

// Close releases the underlying database.
func (m *BadgerMemory) Close() error {
	return m.db.Close()
}

func badgerKey(index, id string) []byte {
	return []byte("vec/" + index + "/" + id)
}

func badgerPrefix(index string) []byte {
	return []byte("vec/" + index + "/")
}

// Save upserts the embedding for id in index.
func (m *BadgerMemory) Save(ctx context.Context, index, id, text string) error {
	embedding, err := m.embedder.EmbedSingle(ctx, text)
	if err != nil {
		return fmt.Errorf("embed %q: %w", id, err)
	}

	value, err := json.Marshal(badgerRecord{Text: text, Embedding: embedding})
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(index, id), value)
	})
}

// Search scans the index's records and returns the top hits by cosine
// similarity. A stored text identical to the query scores exactly 1.0.
func (m *BadgerMemory) Search(ctx context.Context, index, query string, limit int, minRelevance float64) ([]types.SearchHit, error) {
	if limit <= 0 {
		return nil, nil
	}

	queryEmbedding, err := m.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var hits []types.SearchHit
	prefix := badgerPrefix(index)
	err = m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			id := strings.TrimPrefix(string(item.Key()), string(prefix))

			var rec badgerRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}

			relevance := normalizeScore(CosineSimilarity(queryEmbedding, rec.Embedding))
			if rec.Text == query {
				relevance = 1.0
			}
			if relevance < minRelevance {
				continue
			}
			hits = append(hits, types.SearchHit{ID: id, Text: rec.Text, Relevance: relevance})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Relevance > hits[j].Relevance
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Remove deletes the record for id in index.
func (m *BadgerMemory) Remove(ctx context.Context, index, id string) error {
	err := m.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(index, id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}
