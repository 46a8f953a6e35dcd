package port

import "context"

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates embeddings for the given texts.
	// Returns a slice of vectors, one per input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VectorStore stores and searches embedding vectors inside one index.
type VectorStore interface {
	// Upsert adds or overwrites vectors keyed by ID.
	Upsert(ctx context.Context, items []VectorItem) error

	// Query returns the nearest vectors to req.Vector, best first.
	Query(ctx context.Context, req QueryRequest) ([]VectorResult, error)
}

// VectorItem represents a vector to be stored.
type VectorItem struct {
	ID       string         // Unique identifier (the model id)
	Vector   []float32      // Embedding vector
	Metadata map[string]any // Stored next to the vector
}

// QueryRequest describes a nearest-neighbor query.
type QueryRequest struct {
	Vector          []float32
	TopK            int
	IncludeMetadata bool
	Filter          Filter // nil means no filter
}

// VectorResult represents a search result.
type VectorResult struct {
	ID       string         // Model id
	Score    float64        // Similarity score (higher is better)
	Metadata map[string]any // Stored metadata
}

// Filter is a metadata filter in the {field: {"$eq": value}} grammar.
type Filter map[string]map[string]any

// EqualityFilter builds {field: {"$eq": value}}.
func EqualityFilter(field string, value any) Filter {
	return Filter{field: {"$eq": value}}
}

// Matches reports whether metadata satisfies every equality clause.
func (f Filter) Matches(metadata map[string]any) bool {
	for field, cond := range f {
		want, ok := cond["$eq"]
		if !ok {
			return false
		}
		if metadata[field] != want {
			return false
		}
	}
	return true
}
