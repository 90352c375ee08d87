// Package cohere implements the reranker boundary against the Cohere
// rerank API. The client returns an explicit (documents, error) pair;
// callers decide whether an error degrades or propagates.
package cohere

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

	"github.com/maplepath-ai/maplepath/internal/domain"
)

const (
	DefaultBaseURL = "https://api.cohere.com"
	DefaultModel   = "rerank-multilingual-v3.0"

	// DefaultTimeout bounds the whole rerank round trip. The retrieval
	// pipeline treats a timeout exactly like any other rerank failure.
	DefaultTimeout = 10 * time.Second
)

var (
	// ErrNoAPIKey is returned when the client is constructed without credentials
	ErrNoAPIKey = errors.New("cohere api key not set")
	// ErrNoDocuments is returned when Rerank is called with an empty candidate list
	ErrNoDocuments = errors.New("no documents to rerank")
)

// StatusError is a non-2xx response from the rerank API.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("cohere rerank status: %s", e.Status)
	}
	return fmt.Sprintf("cohere rerank status: %s: %s", e.Status, strings.TrimSpace(e.Body))
}

// Client calls the Cohere v1 rerank endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a rerank client with the default model and timeout.
func NewClient(apiKey string) (*Client, error) {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a rerank client with explicit configuration.
func NewClientWithConfig(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank scores the candidate documents against the query and returns at
// most topN of them, ordered by descending relevance. Each result keeps
// the index the candidate held in the submitted list.
func (c *Client) Rerank(ctx context.Context, query string, documents []string, topN int) ([]domain.RerankedDocument, error) {
	if len(documents) == 0 {
		return nil, ErrNoDocuments
	}
	if topN <= 0 || topN > len(documents) {
		topN = len(documents)
	}

	body, err := json.Marshal(rerankRequest{
		Model:     c.model,
		Query:     query,
		Documents: documents,
		TopN:      topN,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	url := c.baseURL + "/v1/rerank"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cohere rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(payload),
		}
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	results := make([]domain.RerankedDocument, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.Index < 0 || r.Index >= len(documents) {
			return nil, fmt.Errorf("rerank result index %d out of range", r.Index)
		}
		results = append(results, domain.RerankedDocument{
			Index:          r.Index,
			RelevanceScore: r.RelevanceScore,
		})
	}
	return results, nil
}
