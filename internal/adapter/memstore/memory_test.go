package memstore

import (
	"context"
	"testing"

	"autorouter/internal/port"
)

func TestMemoryStore_QueryOrderAndFilter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Upsert(ctx, []port.VectorItem{
		{ID: "near", Vector: []float32{1, 0}, Metadata: map[string]any{"license": "mit"}},
		{ID: "far", Vector: []float32{0, 1}, Metadata: map[string]any{"license": "mit"}},
		{ID: "other", Vector: []float32{1, 0.1}, Metadata: map[string]any{"license": "gpl"}},
	})

	results, err := s.Query(ctx, port.QueryRequest{Vector: []float32{1, 0}, TopK: 10, Filter: port.EqualityFilter("license", "mit")})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].ID != "near" || results[1].ID != "far" {
		t.Errorf("unexpected results: %+v", results)
	}

	top1, _ := s.Query(ctx, port.QueryRequest{Vector: []float32{1, 0}, TopK: 1})
	if len(top1) != 1 {
		t.Errorf("expected topK to cap results, got %d", len(top1))
	}
}

func TestMemoryStore_RejectsEmptyID(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Upsert(context.Background(), []port.VectorItem{{Vector: []float32{1}}}); err == nil {
		t.Fatal("expected error for empty id")
	}
}
