package store

import (
	"context"
	"path/filepath"
	"testing"

	"autorouter/internal/port"
)

func openTestStore(t *testing.T) (*BoltStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vectors.db")
	st, err := NewBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	return st, path
}

func TestBoltVectorStore_UpsertAndQuery(t *testing.T) {
	st, _ := openTestStore(t)
	defer st.Close()

	vs, err := NewBoltVectorStore(st, "autorouter-models", 2, "mock")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	items := []port.VectorItem{
		{ID: "a/mit", Vector: []float32{1, 0}, Metadata: map[string]any{"id": "a/mit", "license": "mit"}},
		{ID: "b/apache", Vector: []float32{0.9, 0.1}, Metadata: map[string]any{"id": "b/apache", "license": "apache-2.0"}},
		{ID: "c/mit", Vector: []float32{0, 1}, Metadata: map[string]any{"id": "c/mit", "license": "mit"}},
	}
	if err := vs.Upsert(ctx, items); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	results, err := vs.Query(ctx, port.QueryRequest{Vector: []float32{1, 0}, TopK: 2, IncludeMetadata: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a/mit" || results[1].ID != "b/apache" {
		t.Errorf("unexpected order: %s, %s", results[0].ID, results[1].ID)
	}
	if results[0].Metadata["license"] != "mit" {
		t.Errorf("expected metadata included, got %v", results[0].Metadata)
	}

	filtered, err := vs.Query(ctx, port.QueryRequest{
		Vector: []float32{1, 0},
		TopK:   10,
		Filter: port.EqualityFilter("license", "mit"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 mit results, got %d", len(filtered))
	}
	for _, r := range filtered {
		if r.ID == "b/apache" {
			t.Errorf("filter let through %s", r.ID)
		}
		if r.Metadata != nil {
			t.Errorf("expected no metadata when not requested")
		}
	}
}

func TestBoltVectorStore_UpsertOverwritesAndPersists(t *testing.T) {
	st, path := openTestStore(t)

	vs, err := NewBoltVectorStore(st, "models", 2, "mock")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	item := port.VectorItem{ID: "a/b", Vector: []float32{1, 0}, Metadata: map[string]any{"downloads": 5}}
	for i := 0; i < 2; i++ {
		if err := vs.Upsert(ctx, []port.VectorItem{item}); err != nil {
			t.Fatal(err)
		}
	}
	if vs.Count() != 1 {
		t.Errorf("expected 1 vector after repeated upsert, got %d", vs.Count())
	}
	st.Close()

	st, err = NewBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	reopened, err := NewBoltVectorStore(st, "models", 2, "mock")
	if err != nil {
		t.Fatal(err)
	}
	results, err := reopened.Query(ctx, port.QueryRequest{Vector: []float32{1, 0}, TopK: 1, IncludeMetadata: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Metadata["downloads"] != float64(5) {
		t.Errorf("expected persisted metadata, got %+v", results)
	}
}

func TestBoltVectorStore_DimensionChecks(t *testing.T) {
	st, _ := openTestStore(t)
	defer st.Close()

	vs, err := NewBoltVectorStore(st, "models", 3, "mock")
	if err != nil {
		t.Fatal(err)
	}
	if err := vs.Upsert(context.Background(), []port.VectorItem{{ID: "x", Vector: []float32{1}}}); err == nil {
		t.Error("expected dimension mismatch on upsert")
	}
	if _, err := vs.Query(context.Background(), port.QueryRequest{Vector: []float32{1}, TopK: 1}); err == nil {
		t.Error("expected dimension mismatch on query")
	}

	if _, err := NewBoltVectorStore(st, "models", 4, "mock"); err == nil {
		t.Error("expected error reopening index with a different dimension")
	}
	if _, err := NewBoltVectorStore(st, "models", 3, "text-embedding-3-large"); err == nil {
		t.Error("expected error reopening index with a different model")
	}
}

func TestBoltStore_ClearIndex(t *testing.T) {
	st, _ := openTestStore(t)
	defer st.Close()

	if _, err := NewBoltVectorStore(st, "models", 2, "mock"); err != nil {
		t.Fatal(err)
	}
	indexes, err := st.ListIndexes()
	if err != nil {
		t.Fatal(err)
	}
	if indexes["models"].Dimension != 2 {
		t.Errorf("expected models index with dimension 2, got %+v", indexes)
	}

	if err := st.ClearIndex("models"); err != nil {
		t.Fatal(err)
	}
	info, err := st.GetIndexInfo("models")
	if err != nil {
		t.Fatal(err)
	}
	if info != nil {
		t.Errorf("expected index info removed, got %+v", info)
	}
}
