package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.etcd.io/bbolt"

	"autorouter/internal/port"
)

// BoltVectorStore implements VectorStore for one index using BoltDB for persistence.
// Uses brute-force search; the model registry is small enough for that.
type BoltVectorStore struct {
	db        *bbolt.DB
	bucket    []byte
	dimension int
	mu        sync.RWMutex
	// In-memory cache for fast search
	vectors map[string]vectorEntry
}

type vectorEntry struct {
	vector   []float32
	metadata map[string]any
}

type storedVector struct {
	Vector   []float32      `json:"v"`
	Metadata map[string]any `json:"m,omitempty"`
}

// NewBoltVectorStore opens the named index inside st, creating it if needed.
func NewBoltVectorStore(st *BoltStore, index string, dimension int, model string) (*BoltVectorStore, error) {
	if err := st.EnsureIndex(index, IndexInfo{Dimension: dimension, Model: model}); err != nil {
		return nil, err
	}

	vs := &BoltVectorStore{
		db:        st.DB(),
		bucket:    indexBucket(index),
		dimension: dimension,
		vectors:   make(map[string]vectorEntry),
	}

	// Load existing vectors into memory
	if err := vs.loadVectors(); err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}

	return vs, nil
}

// loadVectors loads all vectors from BoltDB into memory.
func (s *BoltVectorStore) loadVectors() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			var stored storedVector
			if err := json.Unmarshal(v, &stored); err != nil {
				return nil // Skip corrupted entries
			}
			s.vectors[string(k)] = vectorEntry{
				vector:   stored.Vector,
				metadata: stored.Metadata,
			}
			return nil
		})
	})
}

// Upsert adds or updates vectors in the store.
func (s *BoltVectorStore) Upsert(_ context.Context, items []port.VectorItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]vectorEntry, len(items))
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return fmt.Errorf("index bucket %s not found", s.bucket)
		}

		for _, item := range items {
			if len(item.Vector) != s.dimension {
				return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dimension, len(item.Vector))
			}

			data, err := json.Marshal(storedVector{
				Vector:   item.Vector,
				Metadata: item.Metadata,
			})
			if err != nil {
				return err
			}

			if err := b.Put([]byte(item.ID), data); err != nil {
				return err
			}

			// Round-trip metadata so cached values match what a reload would yield.
			var stored storedVector
			if err := json.Unmarshal(data, &stored); err != nil {
				return err
			}
			staged[item.ID] = vectorEntry{vector: item.Vector, metadata: stored.Metadata}
		}

		return nil
	})
	if err != nil {
		return err
	}

	for id, entry := range staged {
		s.vectors[id] = entry
	}
	return nil
}

// Query finds the k nearest vectors to the query using cosine similarity.
func (s *BoltVectorStore) Query(_ context.Context, req port.QueryRequest) ([]port.VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(req.Vector) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dimension, len(req.Vector))
	}

	if len(s.vectors) == 0 || req.TopK <= 0 {
		return nil, nil
	}

	// Calculate similarity for all vectors (brute force)
	type scored struct {
		id       string
		score    float64
		metadata map[string]any
	}

	scores := make([]scored, 0, len(s.vectors))
	for id, entry := range s.vectors {
		if req.Filter != nil && !req.Filter.Matches(entry.metadata) {
			continue
		}
		scores = append(scores, scored{
			id:       id,
			score:    cosineSimilarity(req.Vector, entry.vector),
			metadata: entry.metadata,
		})
	}

	// Sort by score descending, id breaks ties
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].id < scores[j].id
	})

	k := req.TopK
	if k > len(scores) {
		k = len(scores)
	}

	results := make([]port.VectorResult, k)
	for i := 0; i < k; i++ {
		results[i] = port.VectorResult{
			ID:    scores[i].id,
			Score: scores[i].score,
		}
		if req.IncludeMetadata {
			results[i].Metadata = scores[i].metadata
		}
	}

	return results, nil
}

// Count returns the number of vectors in the store.
func (s *BoltVectorStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

// IDs returns every stored id.
func (s *BoltVectorStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.vectors))
	for id := range s.vectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
