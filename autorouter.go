// Package autorouter picks machine-learning models for a natural-language
// task description.
//
// A Router embeds the task with OpenAI and asks a Pinecone index of model
// metadata for the nearest entries. A Remote sends the same request to a
// hosted autorouter service. Both satisfy Selector. IndexModels builds the
// index from a model registry file.
package autorouter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"autorouter/internal/adapter/embedding"
	"autorouter/internal/adapter/pinecone"
	"autorouter/internal/adapter/remote"
	"autorouter/internal/domain"
	"autorouter/internal/port"
	"autorouter/internal/usecase"
)

// DefaultIndexName is the Pinecone index used when none is given.
const DefaultIndexName = "autorouter-models"

type (
	ModelRecord   = domain.ModelRecord
	SearchOptions = domain.SearchOptions
	SearchFilter  = domain.SearchFilter
	SearchResult  = domain.SearchResult
	IndexResult   = usecase.IndexResult
	RecordFailure = usecase.RecordFailure

	// Selector is implemented by Router and Remote.
	Selector = port.Selector
	// Remote forwards selection to a hosted service.
	Remote = remote.Client
	// APIError is returned by Remote for non-2xx replies.
	APIError = remote.APIError
)

// ErrSelectionFailed is returned when the embedder yields no vector.
var ErrSelectionFailed = usecase.ErrSelectionFailed

// Config holds the credentials and endpoints a Router needs. Keys are
// never read from the environment here.
type Config struct {
	OpenAIKey   string
	PineconeKey string
	IndexName   string

	// Optional overrides.
	EmbeddingModel  string
	OpenAIBaseURL   string
	PineconeHost    string
	PineconeBaseURL string
	Namespace       string
	Timeout         time.Duration
}

// Router answers selection queries directly against OpenAI and Pinecone.
type Router struct {
	*usecase.SelectUseCase
}

func newGateways(cfg Config) (port.Embedder, port.VectorStore, error) {
	embedder, err := embedding.NewOpenAIEmbedder(embedding.Options{
		APIKey:  cfg.OpenAIKey,
		Model:   cfg.EmbeddingModel,
		BaseURL: cfg.OpenAIBaseURL,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, nil, err
	}

	name := cfg.IndexName
	if name == "" {
		name = DefaultIndexName
	}
	index, err := pinecone.NewIndex(pinecone.Options{
		APIKey:        cfg.PineconeKey,
		IndexName:     name,
		ControllerURL: cfg.PineconeBaseURL,
		Host:          cfg.PineconeHost,
		Namespace:     cfg.Namespace,
		Timeout:       cfg.Timeout,
	})
	if err != nil {
		return nil, nil, err
	}
	return embedder, index, nil
}

// New creates a Router.
func New(cfg Config) (*Router, error) {
	embedder, index, err := newGateways(cfg)
	if err != nil {
		return nil, err
	}
	return &Router{SelectUseCase: usecase.NewSelectUseCase(embedder, index)}, nil
}

// NewRemote creates a client for a hosted service at baseURL.
func NewRemote(baseURL, apiKey string) *Remote {
	return remote.NewClient(baseURL, apiKey, &http.Client{Timeout: remote.DefaultTimeout})
}

// IndexOptions tunes IndexModels.
type IndexOptions struct {
	// RegistryPath is the model registry JSON; empty searches the default
	// locations.
	RegistryPath string
	// Pacing is the minimum spacing between records. Zero means 100ms,
	// negative disables pacing.
	Pacing   time.Duration
	Progress func(indexed, total int, id string)
	Logger   *slog.Logger
}

// IndexModels embeds every registry record and upserts it into the
// configured Pinecone index. Per-record failures are reported in the
// result, not as an error.
func IndexModels(ctx context.Context, cfg Config, opts IndexOptions) (*IndexResult, error) {
	embedder, index, err := newGateways(cfg)
	if err != nil {
		return nil, err
	}
	uc := usecase.NewIndexUseCase(embedder, index, usecase.IndexOptions{
		Pacing:   opts.Pacing,
		Progress: opts.Progress,
		Logger:   opts.Logger,
	})
	return uc.Run(ctx, opts.RegistryPath)
}

// BuildSearchableText returns the lower-cased text embedded for record.
func BuildSearchableText(record ModelRecord) string {
	return usecase.BuildSearchableText(record)
}
