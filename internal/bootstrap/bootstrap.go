// Package bootstrap turns configuration and resolved credentials into the
// embedder and vector store the use cases run against.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"autorouter/config"
	"autorouter/internal/adapter/embedding"
	"autorouter/internal/adapter/memstore"
	"autorouter/internal/adapter/pgstore"
	"autorouter/internal/adapter/pinecone"
	"autorouter/internal/adapter/store"
	"autorouter/internal/port"
)

// NewEmbedder builds the configured embedder. apiKey is only used by
// providers that call out to an API.
func NewEmbedder(cfg config.EmbeddingConfig, apiKey string) (port.Embedder, error) {
	switch cfg.Provider {
	case "openai", "":
		return embedding.NewOpenAIEmbedder(embedding.Options{
			APIKey:    apiKey,
			Model:     cfg.Model,
			BaseURL:   cfg.BaseURL,
			Dimension: cfg.Dimension,
			Timeout:   cfg.Timeout(),
		})
	case "mock":
		return embedding.NewMockEmbedder(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

// StoreParams carries what a backend needs beyond its config section.
type StoreParams struct {
	IndexName   string
	Dimension   int
	Model       string
	PineconeKey string
	DatabaseURL string
	// Dir anchors a relative bolt path.
	Dir string
}

// VectorStore is an opened backend together with its release function.
type VectorStore struct {
	port.VectorStore
	Close func() error
}

func noClose() error { return nil }

// OpenVectorStore opens the configured backend.
func OpenVectorStore(ctx context.Context, cfg config.VectorStoreConfig, p StoreParams) (*VectorStore, error) {
	switch cfg.Backend {
	case "pinecone", "":
		idx, err := pinecone.NewIndex(pinecone.Options{
			APIKey:        p.PineconeKey,
			IndexName:     p.IndexName,
			ControllerURL: cfg.ControllerURL,
			Host:          cfg.Host,
			Namespace:     cfg.Namespace,
		})
		if err != nil {
			return nil, err
		}
		return &VectorStore{VectorStore: idx, Close: noClose}, nil

	case "bolt":
		path := cfg.BoltPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(p.Dir, path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
		st, err := store.NewBoltStore(path)
		if err != nil {
			return nil, err
		}
		vs, err := store.NewBoltVectorStore(st, p.IndexName, p.Dimension, p.Model)
		if err != nil {
			st.Close()
			return nil, err
		}
		return &VectorStore{VectorStore: vs, Close: st.Close}, nil

	case "pgvector":
		if p.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL is required for the pgvector backend")
		}
		pool, err := pgstore.Connect(ctx, p.DatabaseURL)
		if err != nil {
			return nil, err
		}
		pg := pgstore.New(pool, p.IndexName, p.Dimension)
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return &VectorStore{VectorStore: pg, Close: func() error { pool.Close(); return nil }}, nil

	case "memory":
		return &VectorStore{VectorStore: memstore.NewMemoryStore(), Close: noClose}, nil

	default:
		return nil, fmt.Errorf("unsupported vector store backend: %s", cfg.Backend)
	}
}

// NeedsEmbeddingKey reports whether the provider calls a paid API.
func NeedsEmbeddingKey(cfg config.EmbeddingConfig) bool {
	return cfg.Provider == "openai" || cfg.Provider == ""
}

// NeedsPineconeKey reports whether the backend is Pinecone.
func NeedsPineconeKey(cfg config.VectorStoreConfig) bool {
	return cfg.Backend == "pinecone" || cfg.Backend == ""
}
