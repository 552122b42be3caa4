package embedders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/documind/documind/pkg/config"
	"github.com/documind/documind/pkg/httpclient"
)

// ollamaEmbedMu serializes embedding calls. Ollama degrades badly under
// concurrent embedding requests against the same model.
var ollamaEmbedMu sync.Mutex

// OllamaEmbedder embeds text through an Ollama runtime.
type OllamaEmbedder struct {
	config *config.OllamaConfig
	client *httpclient.Client
}

// NewOllamaEmbedder builds an embedder from config.
func NewOllamaEmbedder(cfg *config.OllamaConfig) (*OllamaEmbedder, error) {
	if cfg == nil {
		cfg = &config.OllamaConfig{}
		cfg.SetDefaults()
	}
	if cfg.EmbeddingModel == "" {
		return nil, fmt.Errorf("embedding model is required")
	}

	client := httpclient.New(
		httpclient.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Timeout)}),
		httpclient.WithMaxRetries(cfg.MaxRetries),
	)

	return &OllamaEmbedder{
		config: cfg,
		client: client,
	}, nil
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the embedding vector for text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	ollamaEmbedMu.Lock()
	defer ollamaEmbedMu.Unlock()

	body, err := json.Marshal(ollamaEmbedRequest{
		Model:  e.config.EmbeddingModel,
		Prompt: text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	url := strings.TrimSuffix(e.config.BaseURL, "/") + "/api/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding request returned %d: %s", resp.StatusCode, string(data))
	}

	var parsed ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}

	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("embedding response contained no vector")
	}

	return parsed.Embedding, nil
}

func (e *OllamaEmbedder) Close() error {
	return nil
}
