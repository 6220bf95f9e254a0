package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// SearcherOption configures an HTTPSearcher.
type SearcherOption func(*searcherOptions)

type searcherOptions struct {
	httpClient *http.Client
	maxResults int
	maxRetries uint64
}

// WithHTTPClient overrides the HTTP client used for search requests.
func WithHTTPClient(client *http.Client) SearcherOption {
	return func(o *searcherOptions) { o.httpClient = client }
}

// WithMaxResults caps how many documents a search returns. Default: 5.
func WithMaxResults(n int) SearcherOption {
	return func(o *searcherOptions) { o.maxResults = n }
}

// WithMaxRetries sets how many times a failed request is retried. Default: 2.
func WithMaxRetries(n uint64) SearcherOption {
	return func(o *searcherOptions) { o.maxRetries = n }
}

// HTTPSearcher queries a knowledge-base retrieval service over HTTP. The
// service is expected to expose a POST /search endpoint taking a knowledge
// base ID and a query and returning scored document snippets.
type HTTPSearcher struct {
	apiKey     string
	baseURL    string
	client     *http.Client
	maxResults int
	maxRetries uint64
}

// NewHTTPSearcher creates a searcher for the retrieval service at baseURL.
func NewHTTPSearcher(baseURL, apiKey string, opts ...SearcherOption) *HTTPSearcher {
	o := &searcherOptions{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		maxResults: 5,
		maxRetries: 2,
	}
	for _, opt := range opts {
		opt(o)
	}
	return &HTTPSearcher{
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		client:     o.httpClient,
		maxResults: o.maxResults,
		maxRetries: o.maxRetries,
	}
}

type searchRequest struct {
	KnowledgeBaseID string `json:"knowledge_base_id"`
	Query           string `json:"query"`
	MaxResults      int    `json:"max_results"`
}

type searchResponse struct {
	Results []searchEntry `json:"results"`
}

type searchEntry struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Search runs one retrieval query and returns the matched snippets as a
// single text block, ready to inject into a model prompt. Transient
// failures are retried with exponential backoff; 4xx responses are not.
func (s *HTTPSearcher) Search(ctx context.Context, knowledgeBaseID, query string) (string, error) {
	body, err := json.Marshal(searchRequest{
		KnowledgeBaseID: knowledgeBaseID,
		Query:           query,
		MaxResults:      s.maxResults,
	})
	if err != nil {
		return "", fmt.Errorf("knowledge: marshal request: %w", err)
	}

	var result searchResponse
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/search", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if s.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+s.apiKey)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			err := fmt.Errorf("knowledge: search returned status %d: %s", resp.StatusCode, string(respBody))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}

		result = searchResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("knowledge: decode response: %w", err)
		}
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.maxRetries)
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return "", err
	}

	if len(result.Results) == 0 {
		return "", nil
	}

	var b strings.Builder
	for i, r := range result.Results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if r.Title != "" {
			b.WriteString(r.Title)
			b.WriteString("\n")
		}
		b.WriteString(r.Content)
	}
	return b.String(), nil
}
