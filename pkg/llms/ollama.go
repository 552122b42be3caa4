package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/documind/documind/pkg/config"
	"github.com/documind/documind/pkg/httpclient"
)

// Generation defaults tuned for grounded answering over small local models.
const (
	defaultTemperature   = 0.3
	defaultTopP          = 0.9
	defaultTopK          = 40
	defaultNumPredict    = 1024
	defaultNumCtx        = 4096
	defaultRepeatPenalty = 1.1
)

// OllamaLLM generates text through an Ollama runtime.
type OllamaLLM struct {
	config *config.OllamaConfig
	client *httpclient.Client
}

// NewOllamaLLM builds a generator from config.
func NewOllamaLLM(cfg *config.OllamaConfig) (*OllamaLLM, error) {
	if cfg == nil {
		cfg = &config.OllamaConfig{}
		cfg.SetDefaults()
	}
	if cfg.GenerationModel == "" {
		return nil, fmt.Errorf("generation model is required")
	}

	client := httpclient.New(
		httpclient.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Timeout)}),
		httpclient.WithMaxRetries(cfg.MaxRetries),
	)

	return &OllamaLLM{
		config: cfg,
		client: client,
	}, nil
}

type ollamaGenerateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	System  string                 `json:"system,omitempty"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate runs a single non-streaming completion.
func (l *OllamaLLM) Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error) {
	options := applyOptions(opts)

	temperature := defaultTemperature
	if options.Temperature >= 0 {
		temperature = options.Temperature
	}
	numPredict := defaultNumPredict
	if options.MaxTokens > 0 {
		numPredict = options.MaxTokens
	}

	request := ollamaGenerateRequest{
		Model:  l.config.GenerationModel,
		Prompt: prompt,
		System: options.System,
		Stream: false,
		Options: map[string]interface{}{
			"temperature":    temperature,
			"top_p":          defaultTopP,
			"top_k":          defaultTopK,
			"num_predict":    numPredict,
			"num_ctx":        defaultNumCtx,
			"repeat_penalty": defaultRepeatPenalty,
		},
	}

	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal generate request: %w", err)
	}

	url := strings.TrimSuffix(l.config.BaseURL, "/") + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("generation request returned %d: %s", resp.StatusCode, string(data))
	}

	var parsed ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode generate response: %w", err)
	}

	return strings.TrimSpace(parsed.Response), nil
}

// Available probes the runtime's model listing endpoint.
func (l *OllamaLLM) Available(ctx context.Context) bool {
	url := strings.TrimSuffix(l.config.BaseURL, "/") + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	probe := &http.Client{Timeout: 3 * time.Second}
	resp, err := probe.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

func (l *OllamaLLM) Close() error {
	return nil
}
