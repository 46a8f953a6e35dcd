package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"autorouter/internal/adapter/registry"
	"autorouter/internal/domain"
	"autorouter/internal/port"
)

// DefaultPacing spaces records so the embedding API sees at most ten
// requests per second.
const DefaultPacing = 100 * time.Millisecond

// DefaultProgressEvery is how many indexed records pass between progress reports.
const DefaultProgressEvery = 10

// ProgressFunc is called with the number of records indexed so far, the total
// record count and the id of the record that was just indexed.
type ProgressFunc func(indexed, total int, id string)

// IndexOptions tunes an IndexUseCase.
type IndexOptions struct {
	Pacing        time.Duration // 0 means DefaultPacing, negative disables pacing
	ProgressEvery int
	Progress      ProgressFunc
	Resolver      *registry.Resolver
	Logger        *slog.Logger
}

// IndexUseCase embeds every registry record and upserts it into a vector store.
type IndexUseCase struct {
	embedder      port.Embedder
	store         port.VectorStore
	limiter       *rate.Limiter
	progressEvery int
	progress      ProgressFunc
	resolver      registry.Resolver
	logger        *slog.Logger
}

// NewIndexUseCase creates a new index use case.
func NewIndexUseCase(embedder port.Embedder, store port.VectorStore, opts IndexOptions) *IndexUseCase {
	pacing := opts.Pacing
	if pacing == 0 {
		pacing = DefaultPacing
	}
	limit := rate.Inf
	if pacing > 0 {
		limit = rate.Every(pacing)
	}

	every := opts.ProgressEvery
	if every <= 0 {
		every = DefaultProgressEvery
	}

	resolver := registry.DefaultResolver()
	if opts.Resolver != nil {
		resolver = *opts.Resolver
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &IndexUseCase{
		embedder:      embedder,
		store:         store,
		limiter:       rate.NewLimiter(limit, 1),
		progressEvery: every,
		progress:      opts.Progress,
		resolver:      resolver,
		logger:        logger,
	}
}

// RecordFailure is a record that could not be indexed.
type RecordFailure struct {
	ID  string
	Err error
}

func (f RecordFailure) Error() string {
	return fmt.Sprintf("model %s: %v", f.ID, f.Err)
}

func (f RecordFailure) Unwrap() error {
	return f.Err
}

// IndexResult contains the results of an indexing run.
type IndexResult struct {
	Total    int
	Indexed  int
	Skipped  int
	Failures []RecordFailure
	Duration time.Duration
}

// Run resolves and loads the registry, then indexes it. An empty
// registryPath triggers the resolver's search order.
func (u *IndexUseCase) Run(ctx context.Context, registryPath string) (*IndexResult, error) {
	path, err := u.resolver.Resolve(registryPath)
	if err != nil {
		return nil, err
	}

	records, err := registry.Load(path)
	if err != nil {
		return nil, err
	}
	u.logger.Info("loaded registry", "path", path, "models", len(records))

	return u.Index(ctx, records)
}

// Index processes records one after another. A failing record is logged
// and recorded; it never stops the run. Only context cancellation does,
// in which case the partial result is returned with the context error.
func (u *IndexUseCase) Index(ctx context.Context, records []domain.ModelRecord) (*IndexResult, error) {
	start := time.Now()
	result := &IndexResult{Total: len(records)}

	for _, record := range records {
		if err := u.limiter.Wait(ctx); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}

		text := BuildSearchableText(record)
		if strings.TrimSpace(text) == "" {
			u.logger.Info("skipping model with no searchable content", "model", record.ID)
			result.Skipped++
			continue
		}

		if err := u.indexRecord(ctx, record, text); err != nil {
			if ctx.Err() != nil {
				result.Duration = time.Since(start)
				return result, ctx.Err()
			}
			u.logger.Error("failed to index model", "model", record.ID, "error", err)
			result.Failures = append(result.Failures, RecordFailure{ID: record.ID, Err: err})
			continue
		}

		result.Indexed++
		if result.Indexed%u.progressEvery == 0 {
			u.logger.Info("indexing progress", "indexed", result.Indexed, "total", result.Total)
			if u.progress != nil {
				u.progress(result.Indexed, result.Total, record.ID)
			}
		}
	}

	result.Duration = time.Since(start)
	u.logger.Info("indexing complete",
		"indexed", result.Indexed,
		"skipped", result.Skipped,
		"failed", len(result.Failures),
		"duration", result.Duration.String(),
	)
	return result, nil
}

// indexRecord embeds one record and upserts it.
func (u *IndexUseCase) indexRecord(ctx context.Context, record domain.ModelRecord, text string) error {
	embeddings, err := u.embedder.Embed(ctx, []string{text})
	if err != nil {
		return fmt.Errorf("failed to embed: %w", err)
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return fmt.Errorf("failed to embed: empty result")
	}

	meta := DeriveMetadata(record)
	err = u.store.Upsert(ctx, []port.VectorItem{{
		ID:       record.ID,
		Vector:   embeddings[0],
		Metadata: meta.Map(),
	}})
	if err != nil {
		return fmt.Errorf("failed to upsert: %w", err)
	}
	return nil
}
