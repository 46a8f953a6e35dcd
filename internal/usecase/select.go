package usecase

import (
	"context"
	"errors"

	"autorouter/internal/domain"
	"autorouter/internal/port"
)

// ErrSelectionFailed is returned when selection fails without a more
// specific cause.
var ErrSelectionFailed = errors.New("failed to select model")

// SelectUseCase answers selection queries straight from the embedder and
// vector store.
type SelectUseCase struct {
	embedder port.Embedder
	store    port.VectorStore
}

// NewSelectUseCase creates a new select use case.
func NewSelectUseCase(embedder port.Embedder, store port.VectorStore) *SelectUseCase {
	return &SelectUseCase{
		embedder: embedder,
		store:    store,
	}
}

// SelectModel embeds query and returns the nearest models in the order the
// store ranked them. Errors from the embedder or store are returned as-is
// and no partial results are produced.
func (u *SelectUseCase) SelectModel(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	embeddings, err := u.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, ErrSelectionFailed
	}

	req := port.QueryRequest{
		Vector:          embeddings[0],
		TopK:            opts.EffectiveLimit(),
		IncludeMetadata: true,
	}
	if license := opts.License(); license != "" {
		req.Filter = port.EqualityFilter("license", license)
	}

	matches, err := u.store.Query(ctx, req)
	if err != nil {
		return nil, err
	}

	results := make([]domain.SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, toSearchResult(m))
	}
	return results, nil
}

func toSearchResult(m port.VectorResult) domain.SearchResult {
	r := domain.SearchResult{
		ID:          stringField(m.Metadata, "id"),
		Name:        stringField(m.Metadata, "name"),
		Description: stringField(m.Metadata, "description"),
		Task:        stringField(m.Metadata, "task"),
		Provider:    stringField(m.Metadata, "provider"),
		License:     stringField(m.Metadata, "license"),
		Endpoint:    stringField(m.Metadata, "endpoint"),
		Score:       m.Score,
	}
	if r.ID == "" {
		r.ID = m.ID
	}
	if d, ok := numberField(m.Metadata, "downloads"); ok {
		r.Downloads = &d
	}
	return r
}

func stringField(meta map[string]any, key string) string {
	s, _ := meta[key].(string)
	return s
}

func numberField(meta map[string]any, key string) (float64, bool) {
	switch v := meta[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
