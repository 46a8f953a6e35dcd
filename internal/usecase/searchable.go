package usecase

import (
	"strings"

	"autorouter/internal/domain"
)

// BuildSearchableText produces the embedding input for a record: id, task,
// description and tags in that order, empty parts dropped, single-space
// joined and lower-cased.
func BuildSearchableText(m domain.ModelRecord) string {
	parts := make([]string, 0, 3+len(m.Tags))
	parts = append(parts, m.ID, m.Task, m.Description)
	parts = append(parts, m.Tags...)

	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.ToLower(strings.Join(kept, " "))
}

// DeriveMetadata fills every metadata field, substituting defaults for
// anything the record lacks. Downloads is passed through as-is.
func DeriveMetadata(m domain.ModelRecord) domain.ModelMetadata {
	meta := domain.ModelMetadata{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Task:        m.Task,
		Provider:    domain.Provider,
		License:     m.License,
		Downloads:   m.Downloads,
		Endpoint:    m.Endpoint,
	}
	if meta.Name == "" {
		meta.Name = shortName(m.ID)
	}
	if meta.Task == "" {
		meta.Task = "unknown"
	}
	if meta.License == "" {
		meta.License = "unknown"
	}
	if meta.Endpoint == "" {
		meta.Endpoint = domain.InferenceEndpointBase + m.ID
	}
	return meta
}

// shortName returns the segment after the first "/" in id, or id itself.
func shortName(id string) string {
	segments := strings.Split(id, "/")
	if len(segments) > 1 && segments[1] != "" {
		return segments[1]
	}
	return id
}
