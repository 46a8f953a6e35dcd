package usecase

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"autorouter/internal/adapter/embedding"
	"autorouter/internal/adapter/memstore"
	"autorouter/internal/adapter/registry"
	"autorouter/internal/domain"
	"autorouter/internal/port"
)

// flakyEmbedder fails for any text containing failOn.
type flakyEmbedder struct {
	*embedding.MockEmbedder
	failOn string
	calls  int
}

func (e *flakyEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	for _, t := range texts {
		if e.failOn != "" && strings.Contains(t, e.failOn) {
			return nil, errors.New("embedding service unavailable")
		}
	}
	return e.MockEmbedder.Embed(ctx, texts)
}

func newFlaky(failOn string) *flakyEmbedder {
	return &flakyEmbedder{MockEmbedder: embedding.NewMockEmbedder(16), failOn: failOn}
}

func records(ids ...string) []domain.ModelRecord {
	out := make([]domain.ModelRecord, len(ids))
	for i, id := range ids {
		out[i] = domain.ModelRecord{ID: id}
	}
	return out
}

func TestIndex_AllRecords(t *testing.T) {
	store := memstore.NewMemoryStore()
	uc := NewIndexUseCase(newFlaky(""), store, IndexOptions{Pacing: -1})

	result, err := uc.Index(context.Background(), records("a/one", "b/two", "c/three"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 3 || result.Indexed != 3 || len(result.Failures) != 0 {
		t.Errorf("unexpected result: %+v", result)
	}

	item, ok := store.Get("b/two")
	if !ok {
		t.Fatal("expected b/two stored")
	}
	if item.Metadata["name"] != "two" || item.Metadata["provider"] != "huggingface" {
		t.Errorf("unexpected metadata: %v", item.Metadata)
	}
	if len(item.Vector) != 16 {
		t.Errorf("expected 16-dim vector, got %d", len(item.Vector))
	}
}

func TestIndex_FailureIsIsolated(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	store := memstore.NewMemoryStore()
	emb := newFlaky("broken")
	uc := NewIndexUseCase(emb, store, IndexOptions{Pacing: -1, Logger: logger})

	result, err := uc.Index(context.Background(), records("a/ok", "x/broken", "c/after"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Indexed != 2 {
		t.Errorf("expected 2 indexed, got %d", result.Indexed)
	}
	if len(result.Failures) != 1 || result.Failures[0].ID != "x/broken" {
		t.Fatalf("expected x/broken failure, got %+v", result.Failures)
	}
	if _, ok := store.Get("c/after"); !ok {
		t.Error("expected record after the failure to be indexed")
	}
	if emb.calls != 3 {
		t.Errorf("expected 3 embed calls, got %d", emb.calls)
	}
	if !strings.Contains(logs.String(), "x/broken") {
		t.Errorf("expected failing id in logs, got %s", logs.String())
	}
}

type failingStore struct {
	*memstore.MemoryStore
	failID string
}

func (s *failingStore) Upsert(ctx context.Context, items []port.VectorItem) error {
	for _, it := range items {
		if it.ID == s.failID {
			return errors.New("upsert rejected")
		}
	}
	return s.MemoryStore.Upsert(ctx, items)
}

func TestIndex_UpsertFailureIsIsolated(t *testing.T) {
	store := &failingStore{MemoryStore: memstore.NewMemoryStore(), failID: "b"}
	uc := NewIndexUseCase(newFlaky(""), store, IndexOptions{Pacing: -1})

	result, err := uc.Index(context.Background(), records("a", "b", "c"))
	if err != nil {
		t.Fatal(err)
	}
	if result.Indexed != 2 || len(result.Failures) != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
	if !strings.Contains(result.Failures[0].Error(), "upsert rejected") {
		t.Errorf("expected upsert cause, got %v", result.Failures[0])
	}
}

func TestIndex_SkipsEmptyText(t *testing.T) {
	store := memstore.NewMemoryStore()
	emb := newFlaky("")
	uc := NewIndexUseCase(emb, store, IndexOptions{Pacing: -1})

	result, err := uc.Index(context.Background(), []domain.ModelRecord{{ID: ""}, {ID: "a/b"}})
	if err != nil {
		t.Fatal(err)
	}
	if result.Skipped != 1 || result.Indexed != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
	if emb.calls != 1 {
		t.Errorf("expected skipped record not to be embedded, got %d calls", emb.calls)
	}
}

func TestIndex_ProgressEveryTen(t *testing.T) {
	ids := make([]string, 25)
	for i := range ids {
		ids[i] = "org/model-" + string(rune('a'+i))
	}

	var reported []int
	uc := NewIndexUseCase(newFlaky(""), memstore.NewMemoryStore(), IndexOptions{
		Pacing:   -1,
		Progress: func(indexed, total int, _ string) { reported = append(reported, indexed) },
	})

	if _, err := uc.Index(context.Background(), records(ids...)); err != nil {
		t.Fatal(err)
	}
	if len(reported) != 2 || reported[0] != 10 || reported[1] != 20 {
		t.Errorf("expected progress at 10 and 20, got %v", reported)
	}
}

func TestIndex_Pacing(t *testing.T) {
	uc := NewIndexUseCase(newFlaky(""), memstore.NewMemoryStore(), IndexOptions{Pacing: 30 * time.Millisecond})

	start := time.Now()
	if _, err := uc.Index(context.Background(), records("a", "b", "c")); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 55*time.Millisecond {
		t.Errorf("expected records to be paced, finished in %s", elapsed)
	}
}

func TestIndex_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	uc := NewIndexUseCase(newFlaky(""), memstore.NewMemoryStore(), IndexOptions{Pacing: -1})
	result, err := uc.Index(ctx, records("a", "b"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result.Indexed != 0 {
		t.Errorf("expected nothing indexed, got %d", result.Indexed)
	}
}

func TestIndex_Idempotent(t *testing.T) {
	store := memstore.NewMemoryStore()
	uc := NewIndexUseCase(newFlaky(""), store, IndexOptions{Pacing: -1})
	recs := records("a/b", "c/d", "e/f")

	for i := 0; i < 2; i++ {
		if _, err := uc.Index(context.Background(), recs); err != nil {
			t.Fatal(err)
		}
	}

	ids := store.IDs()
	if len(ids) != 3 || ids[0] != "a/b" || ids[1] != "c/d" || ids[2] != "e/f" {
		t.Errorf("expected the same three ids after two runs, got %v", ids)
	}
}

func TestRun_LoadsRegistry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.json")
	if err := os.WriteFile(path, []byte(`[{"id":"a/b","downloads":5},{"id":"c/d","license":"mit"}]`), 0644); err != nil {
		t.Fatal(err)
	}

	store := memstore.NewMemoryStore()
	uc := NewIndexUseCase(newFlaky(""), store, IndexOptions{Pacing: -1})

	result, err := uc.Run(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if result.Indexed != 2 {
		t.Errorf("expected 2 indexed, got %d", result.Indexed)
	}
	item, _ := store.Get("a/b")
	if item.Metadata["downloads"] != 5.0 {
		t.Errorf("expected downloads passed through, got %v", item.Metadata["downloads"])
	}
}

func TestRun_RegistryNotFound(t *testing.T) {
	resolver := &registry.Resolver{ExeDir: t.TempDir(), WorkDir: t.TempDir()}
	uc := NewIndexUseCase(newFlaky(""), memstore.NewMemoryStore(), IndexOptions{Pacing: -1, Resolver: resolver})

	if _, err := uc.Run(context.Background(), ""); !errors.Is(err, registry.ErrRegistryNotFound) {
		t.Fatalf("expected ErrRegistryNotFound, got %v", err)
	}
}
