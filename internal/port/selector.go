package port

import (
	"context"

	"autorouter/internal/domain"
)

// Selector picks candidate models for a free-text task description.
// The direct and remote façades both implement it.
type Selector interface {
	SelectModel(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}
