package reranker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/documind/documind/pkg/config"
)

func newTestReranker(t *testing.T, handler http.HandlerFunc) *HTTPReranker {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.RerankerConfig{URL: server.URL + "/rerank"}
	cfg.SetDefaults()
	return NewHTTPReranker(cfg)
}

func TestHTTPReranker_OrdersByScore(t *testing.T) {
	r := newTestReranker(t, func(w http.ResponseWriter, req *http.Request) {
		var body rerankRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if body.Query != "what is the noise floor" {
			t.Errorf("Unexpected query %q", body.Query)
		}
		if len(body.Documents) != 3 {
			t.Fatalf("Expected 3 documents, got %d", len(body.Documents))
		}
		json.NewEncoder(w).Encode(rerankResponse{Scores: []float64{-7.2, 3.1, -1.4}})
	})

	results, err := r.Rerank(context.Background(), "what is the noise floor",
		[]string{"a", "b", "c"}, 2)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Index != 1 || results[0].Score != 3.1 {
		t.Errorf("Expected best document b, got index %d score %v", results[0].Index, results[0].Score)
	}
	if results[1].Index != 2 {
		t.Errorf("Expected second best c, got index %d", results[1].Index)
	}
}

func TestHTTPReranker_ScoreCountMismatch(t *testing.T) {
	r := newTestReranker(t, func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(rerankResponse{Scores: []float64{1.0}})
	})

	if _, err := r.Rerank(context.Background(), "q", []string{"a", "b"}, 2); err == nil {
		t.Error("Expected error on score count mismatch")
	}
}

func TestHTTPReranker_ServerDown(t *testing.T) {
	cfg := &config.RerankerConfig{URL: "http://127.0.0.1:1/rerank"}
	cfg.SetDefaults()
	r := NewHTTPReranker(cfg)

	if _, err := r.Rerank(context.Background(), "q", []string{"a"}, 1); err == nil {
		t.Error("Expected error when service is unreachable")
	}
}

func TestHTTPReranker_EmptyDocuments(t *testing.T) {
	r := newTestReranker(t, func(w http.ResponseWriter, req *http.Request) {
		t.Error("Server should not be called for empty input")
	})

	results, err := r.Rerank(context.Background(), "q", nil, 5)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected no results, got %d", len(results))
	}
}

func TestNoOpReranker(t *testing.T) {
	r := NewNoOpReranker()

	results, err := r.Rerank(context.Background(), "q", []string{"a", "b", "c"}, 2)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected first-k of 2, got %d", len(results))
	}
	if results[0].Index != 0 || results[1].Index != 1 {
		t.Errorf("NoOp must keep incoming order, got %v", results)
	}

	results, _ = r.Rerank(context.Background(), "q", []string{"a"}, 5)
	if len(results) != 1 {
		t.Errorf("topK beyond input should clamp, got %d", len(results))
	}
}

func TestFromConfig(t *testing.T) {
	enabled := &config.RerankerConfig{}
	enabled.SetDefaults()
	if _, ok := FromConfig(enabled).(*HTTPReranker); !ok {
		t.Error("Enabled config should build the HTTP reranker")
	}

	disabled := &config.RerankerConfig{Enabled: config.BoolPtr(false)}
	disabled.SetDefaults()
	if _, ok := FromConfig(disabled).(*NoOpReranker); !ok {
		t.Error("Disabled config should build the noop reranker")
	}
}
