// Package reranker reorders retrieved chunks with a cross-encoder service.
//
// Scores are raw cross-encoder logits (ms-marco-MiniLM style); the query
// pipeline's noise floor is calibrated against them. When reranking is
// disabled or the service is down, callers degrade to similarity order.
package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/documind/documind/pkg/config"
	"github.com/documind/documind/pkg/httpclient"
)

// Result assigns a relevance score to one input document.
type Result struct {
	// Index is the document's position in the input slice.
	Index int

	// Score is the raw cross-encoder score, higher is more relevant.
	Score float64
}

// Reranker reorders documents by relevance to a query.
type Reranker interface {
	// Rerank returns the topK most relevant documents, best first.
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]Result, error)
}

// NoOpReranker keeps the incoming order, used when reranking is disabled.
type NoOpReranker struct{}

func NewNoOpReranker() *NoOpReranker {
	return &NoOpReranker{}
}

// Rerank returns the first topK documents unchanged with zero scores.
func (r *NoOpReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]Result, error) {
	if topK > len(documents) {
		topK = len(documents)
	}
	results := make([]Result, topK)
	for i := range results {
		results[i] = Result{Index: i}
	}
	return results, nil
}

// HTTPReranker calls a cross-encoder scoring service.
type HTTPReranker struct {
	config *config.RerankerConfig
	client *httpclient.Client
}

// NewHTTPReranker builds a reranker from config.
func NewHTTPReranker(cfg *config.RerankerConfig) *HTTPReranker {
	if cfg == nil {
		cfg = &config.RerankerConfig{}
		cfg.SetDefaults()
	}

	client := httpclient.New(
		httpclient.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Timeout)}),
		httpclient.WithMaxRetries(1),
	)

	return &HTTPReranker{
		config: cfg,
		client: client,
	}
}

// FromConfig returns the HTTP reranker when enabled, the noop otherwise.
func FromConfig(cfg *config.RerankerConfig) Reranker {
	if cfg != nil && config.BoolValue(cfg.Enabled, true) {
		return NewHTTPReranker(cfg)
	}
	return NewNoOpReranker()
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
}

// Rerank scores every document against the query and returns the topK best.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]Result, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(rerankRequest{
		Model:     r.config.Model,
		Query:     query,
		Documents: documents,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rerank request returned %d: %s", resp.StatusCode, string(data))
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}

	if len(parsed.Scores) != len(documents) {
		return nil, fmt.Errorf("rerank returned %d scores for %d documents",
			len(parsed.Scores), len(documents))
	}

	results := make([]Result, len(documents))
	for i, score := range parsed.Scores {
		results[i] = Result{Index: i, Score: score}
	}
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})

	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}
