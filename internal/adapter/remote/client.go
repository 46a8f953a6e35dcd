// Package remote talks to a hosted selection service over HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"autorouter/internal/domain"
)

// DefaultTimeout bounds a single remote call.
const DefaultTimeout = 30 * time.Second

// ErrNetwork stands in for transport failures that carry no message.
var ErrNetwork = errors.New("Network error")

// APIError is a non-2xx reply from the selection service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// SearchRequest is the body of POST /api/search.
type SearchRequest struct {
	Query  string        `json:"query"`
	Limit  int           `json:"limit,omitempty"`
	Filter *SearchFilter `json:"filter,omitempty"`
}

type SearchFilter struct {
	License string `json:"license,omitempty"`
}

// SearchResponse is the body of a successful POST /api/search.
type SearchResponse struct {
	Models []domain.SearchResult `json:"models"`
	Total  int                   `json:"total"`
}

// Client is a port.Selector backed by a remote selection service.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a client for baseURL. A nil httpClient gets a client
// with DefaultTimeout.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  httpClient,
	}
}

// NewSearchRequest builds the wire request for query and opts. Limit and
// filter are only sent when set.
func NewSearchRequest(query string, opts domain.SearchOptions) SearchRequest {
	req := SearchRequest{Query: query}
	if opts.Limit > 0 {
		req.Limit = opts.Limit
	}
	if opts.Filter != nil {
		req.Filter = &SearchFilter{License: opts.Filter.License}
	}
	return req
}

func (c *Client) SelectModel(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	body, err := json.Marshal(NewSearchRequest(query, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.client.Do(req)
	if err != nil {
		if err.Error() == "" {
			return nil, ErrNetwork
		}
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, respBody)
	}

	var result SearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return result.Models, nil
}

func statusError(status int, body []byte) *APIError {
	switch status {
	case http.StatusUnauthorized:
		return &APIError{StatusCode: status, Message: "Invalid API key"}
	case http.StatusBadRequest:
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
			return &APIError{StatusCode: status, Message: payload.Error}
		}
		return &APIError{StatusCode: status, Message: "Bad request"}
	default:
		return &APIError{StatusCode: status, Message: fmt.Sprintf("HTTP error: status %d", status)}
	}
}

// HealthCheck reports whether GET /api/health answers 2xx. Any failure,
// including a transport error, reads as unhealthy.
func (c *Client) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}
