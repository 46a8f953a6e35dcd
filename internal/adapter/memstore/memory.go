package memstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"autorouter/internal/port"
)

// MemoryStore is a process-local port.VectorStore. Nothing survives the
// process; it backs dry runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	vectors map[string]port.VectorItem
	upserts int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		vectors: make(map[string]port.VectorItem),
	}
}

func (s *MemoryStore) Upsert(_ context.Context, items []port.VectorItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		if item.ID == "" {
			return fmt.Errorf("vector id is empty")
		}
		s.vectors[item.ID] = item
	}
	s.upserts++
	return nil
}

func (s *MemoryStore) Query(_ context.Context, req port.QueryRequest) ([]port.VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]port.VectorResult, 0, len(s.vectors))
	for id, item := range s.vectors {
		if req.Filter != nil && !req.Filter.Matches(item.Metadata) {
			continue
		}
		r := port.VectorResult{ID: id, Score: cosine(req.Vector, item.Vector)}
		if req.IncludeMetadata {
			r.Metadata = item.Metadata
		}
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if req.TopK < len(results) {
		results = results[:max(req.TopK, 0)]
	}
	return results, nil
}

// Get returns the stored item for id.
func (s *MemoryStore) Get(id string) (port.VectorItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.vectors[id]
	return item, ok
}

// IDs returns every stored id, sorted.
func (s *MemoryStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.vectors))
	for id := range s.vectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// UpsertCalls returns how many Upsert calls succeeded.
func (s *MemoryStore) UpsertCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.upserts
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
