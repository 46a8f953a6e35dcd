package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIEmbedder_Embed(t *testing.T) {
	var gotAuth string
	var gotReq embeddingRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		// Reply out of order to check index placement.
		w.Write([]byte(`{"data":[{"embedding":[0.3,0.4],"index":1},{"embedding":[0.1,0.2],"index":0}]}`))
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder(Options{APIKey: "sk-test", BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatal(err)
	}

	vecs, err := e.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotAuth != "Bearer sk-test" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if gotReq.Model != DefaultModel {
		t.Errorf("expected model %s, got %s", DefaultModel, gotReq.Model)
	}
	if len(vecs) != 2 || vecs[0][0] != 0.1 || vecs[1][0] != 0.3 {
		t.Errorf("unexpected vectors: %v", vecs)
	}
	if e.Dimension() != 3072 {
		t.Errorf("expected dimension 3072 for %s, got %d", DefaultModel, e.Dimension())
	}
}

func TestOpenAIEmbedder_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder(Options{APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	_, err = e.Embed(context.Background(), []string{"x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestOpenAIEmbedder_MissingEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	e, _ := NewOpenAIEmbedder(Options{APIKey: "k", BaseURL: srv.URL})
	if _, err := e.Embed(context.Background(), []string{"x"}); err == nil {
		t.Fatal("expected error for empty data")
	}
}

func TestNewOpenAIEmbedder_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIEmbedder(Options{}); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(32)
	ctx := context.Background()

	a, _ := e.Embed(ctx, []string{"text generation model"})
	b, _ := e.Embed(ctx, []string{"text generation model"})

	if len(a[0]) != 32 {
		t.Fatalf("expected 32 dims, got %d", len(a[0]))
	}
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("expected identical vectors at %d", i)
		}
	}
}
