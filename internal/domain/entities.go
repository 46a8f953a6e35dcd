package domain

// Provider is stamped on every indexed entry.
const Provider = "huggingface"

// InferenceEndpointBase prefixes the model id when a record has no endpoint.
const InferenceEndpointBase = "https://api-inference.huggingface.co/models/"

// ModelRecord is one entry of the on-disk model registry.
type ModelRecord struct {
	ID          string   `json:"id"`
	Name        string   `json:"name,omitempty"`
	Task        string   `json:"task,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Downloads   *float64 `json:"downloads,omitempty"`
	License     string   `json:"license,omitempty"`
	Endpoint    string   `json:"endpoint,omitempty"`
	Category    string   `json:"category,omitempty"`
}

// ModelMetadata is the metadata object persisted alongside each vector.
type ModelMetadata struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Task        string   `json:"task"`
	Provider    string   `json:"provider"`
	License     string   `json:"license"`
	Downloads   *float64 `json:"downloads,omitempty"`
	Endpoint    string   `json:"endpoint"`
}

// Map flattens the metadata into the shape vector stores accept.
// downloads is left out when the registry did not carry it.
func (m ModelMetadata) Map() map[string]any {
	out := map[string]any{
		"id":          m.ID,
		"name":        m.Name,
		"description": m.Description,
		"task":        m.Task,
		"provider":    m.Provider,
		"license":     m.License,
		"endpoint":    m.Endpoint,
	}
	if m.Downloads != nil {
		out["downloads"] = *m.Downloads
	}
	return out
}

// SearchFilter restricts a selection to matching metadata.
type SearchFilter struct {
	License string `json:"license,omitempty"`
}

// SearchOptions tunes a selection call.
type SearchOptions struct {
	Limit  int           `json:"limit,omitempty"`
	Filter *SearchFilter `json:"filter,omitempty"`
}

// DefaultSearchLimit is used when SearchOptions.Limit is not positive.
const DefaultSearchLimit = 10

// EffectiveLimit returns the requested limit or the default.
func (o SearchOptions) EffectiveLimit() int {
	if o.Limit > 0 {
		return o.Limit
	}
	return DefaultSearchLimit
}

// License returns the license filter value, empty when unset.
func (o SearchOptions) License() string {
	if o.Filter == nil {
		return ""
	}
	return o.Filter.License
}

// SearchResult is one candidate model returned by a selection.
type SearchResult struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Task        string   `json:"task"`
	Provider    string   `json:"provider"`
	License     string   `json:"license"`
	Downloads   *float64 `json:"downloads,omitempty"`
	Score       float64  `json:"score"`
	Endpoint    string   `json:"endpoint,omitempty"`
}
