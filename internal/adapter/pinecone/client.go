// Package pinecone talks to the Pinecone REST API: the control plane to
// resolve an index host and the data plane to upsert and query vectors.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"autorouter/internal/port"
)

// DefaultControllerURL is the Pinecone control plane.
const DefaultControllerURL = "https://api.pinecone.io"

const apiVersion = "2024-07"

// Options configures an index connection.
type Options struct {
	APIKey        string
	IndexName     string
	ControllerURL string
	// Host skips the describe-index lookup when set. A bare host gets https://.
	Host      string
	Namespace string
	Timeout   time.Duration
}

// Index is a port.VectorStore backed by one Pinecone index.
type Index struct {
	apiKey        string
	indexName     string
	controllerURL string
	namespace     string
	client        *http.Client

	mu   sync.Mutex
	host string
}

// NewIndex creates a connection to a Pinecone index. The host is resolved
// lazily on first use.
func NewIndex(opts Options) (*Index, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("pinecone API key is empty")
	}
	if opts.IndexName == "" && opts.Host == "" {
		return nil, fmt.Errorf("pinecone index name or host is required")
	}
	if opts.ControllerURL == "" {
		opts.ControllerURL = DefaultControllerURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	idx := &Index{
		apiKey:        opts.APIKey,
		indexName:     opts.IndexName,
		controllerURL: strings.TrimRight(opts.ControllerURL, "/"),
		namespace:     opts.Namespace,
		client:        &http.Client{Timeout: opts.Timeout},
	}
	if opts.Host != "" {
		idx.host = normalizeHost(opts.Host)
	}
	return idx, nil
}

func normalizeHost(host string) string {
	host = strings.TrimRight(host, "/")
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	return host
}

type describeIndexResponse struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Host      string `json:"host"`
}

func (i *Index) resolveHost(ctx context.Context) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.host != "" {
		return i.host, nil
	}

	var desc describeIndexResponse
	endpoint := i.controllerURL + "/indexes/" + url.PathEscape(i.indexName)
	if err := i.do(ctx, http.MethodGet, endpoint, nil, &desc); err != nil {
		return "", fmt.Errorf("describe index %s: %w", i.indexName, err)
	}
	if desc.Host == "" {
		return "", fmt.Errorf("describe index %s: no host in response", i.indexName)
	}
	i.host = normalizeHost(desc.Host)
	return i.host, nil
}

type vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type upsertRequest struct {
	Vectors   []vector `json:"vectors"`
	Namespace string   `json:"namespace,omitempty"`
}

type upsertResponse struct {
	UpsertedCount int `json:"upsertedCount"`
}

// Upsert writes vectors, overwriting any with the same ID.
func (i *Index) Upsert(ctx context.Context, items []port.VectorItem) error {
	if len(items) == 0 {
		return nil
	}
	host, err := i.resolveHost(ctx)
	if err != nil {
		return err
	}

	req := upsertRequest{Namespace: i.namespace, Vectors: make([]vector, len(items))}
	for j, item := range items {
		req.Vectors[j] = vector{ID: item.ID, Values: item.Vector, Metadata: item.Metadata}
	}

	var resp upsertResponse
	if err := i.do(ctx, http.MethodPost, host+"/vectors/upsert", req, &resp); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

type queryRequest struct {
	Vector          []float32   `json:"vector"`
	TopK            int         `json:"topK"`
	IncludeMetadata bool        `json:"includeMetadata"`
	Filter          port.Filter `json:"filter,omitempty"`
	Namespace       string      `json:"namespace,omitempty"`
}

type queryResponse struct {
	Matches []match `json:"matches"`
}

type match struct {
	ID       string         `json:"id"`
	Score    *float64       `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// Query runs a nearest-neighbor query. Matches are returned in the order
// Pinecone sent them.
func (i *Index) Query(ctx context.Context, q port.QueryRequest) ([]port.VectorResult, error) {
	host, err := i.resolveHost(ctx)
	if err != nil {
		return nil, err
	}

	req := queryRequest{
		Vector:          q.Vector,
		TopK:            q.TopK,
		IncludeMetadata: q.IncludeMetadata,
		Filter:          q.Filter,
		Namespace:       i.namespace,
	}

	var resp queryResponse
	if err := i.do(ctx, http.MethodPost, host+"/query", req, &resp); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	results := make([]port.VectorResult, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		var score float64
		if m.Score != nil {
			score = *m.Score
		}
		results = append(results, port.VectorResult{ID: m.ID, Score: score, Metadata: m.Metadata})
	}
	return results, nil
}

func (i *Index) do(ctx context.Context, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Api-Key", i.apiKey)
	req.Header.Set("X-Pinecone-API-Version", apiVersion)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		preview := string(respBody)
		if len(preview) > 200 {
			preview = preview[:200]
		}
		return fmt.Errorf("pinecone returned status %d: %s", resp.StatusCode, preview)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
