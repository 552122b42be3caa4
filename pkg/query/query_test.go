package query

import (
	"context"
	"strings"
	"testing"

	"github.com/documind/documind/pkg/config"
	"github.com/documind/documind/pkg/llms"
	"github.com/documind/documind/pkg/rbac"
	"github.com/documind/documind/pkg/reranker"
	"github.com/documind/documind/pkg/vectordb"
)

type fakeEmbedder struct{}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.5, 0.5}, nil
}

func (f *fakeEmbedder) Close() error { return nil }

type fakeStore struct {
	searchResults []vectordb.SearchResult
	fileResults   []vectordb.SearchResult
}

func (f *fakeStore) CreateCollection(ctx context.Context, collection string, vectorSize uint64) error {
	return nil
}

func (f *fakeStore) Upsert(ctx context.Context, collection string, points []vectordb.Point) error {
	return nil
}

func (f *fakeStore) Search(ctx context.Context, collection string, vector []float32, topK int) ([]vectordb.SearchResult, error) {
	return f.searchResults, nil
}

func (f *fakeStore) SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]interface{}) ([]vectordb.SearchResult, error) {
	return f.searchResults, nil
}

func (f *fakeStore) GetByFilter(ctx context.Context, collection string, filter map[string]interface{}, limit int) ([]vectordb.SearchResult, error) {
	return f.fileResults, nil
}

func (f *fakeStore) Count(ctx context.Context, collection string) (uint64, error) {
	return uint64(len(f.searchResults)), nil
}

func (f *fakeStore) Delete(ctx context.Context, collection string, id string) error { return nil }

func (f *fakeStore) DeleteByFilter(ctx context.Context, collection string, filter map[string]interface{}) error {
	return nil
}

func (f *fakeStore) DeleteCollection(ctx context.Context, collection string) error { return nil }

func (f *fakeStore) Close() error { return nil }

type fakeGenerator struct {
	answer    string
	err       error
	available bool
	prompts   []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string, opts ...llms.GenerateOption) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.answer, f.err
}

func (f *fakeGenerator) Available(ctx context.Context) bool { return f.available }

func (f *fakeGenerator) Close() error { return nil }

func chunkResult(content, filename, domain, category string, distance float32) vectordb.SearchResult {
	return vectordb.SearchResult{
		Score:    1 - distance,
		Distance: distance,
		Content:  content,
		Metadata: map[string]interface{}{
			"filename": filename,
			"domain":   domain,
			"category": category,
			"filepath": "/sorted/" + domain + "/" + category + "/" + filename,
		},
	}
}

func newTestEngine(store *fakeStore, gen *fakeGenerator) *Engine {
	cfg := &config.QueryConfig{}
	cfg.SetDefaults()
	return NewEngine(cfg, "documents", &fakeEmbedder{}, store, gen,
		reranker.NewNoOpReranker(), rbac.NewPolicy(nil))
}

func TestAnswer_NoResults(t *testing.T) {
	engine := newTestEngine(&fakeStore{}, &fakeGenerator{available: true})

	resp, err := engine.Answer(context.Background(), "what does the contract say", "Admin")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !strings.Contains(resp.Answer, "I don't have this information") {
		t.Errorf("Expected no-info answer, got %q", resp.Answer)
	}
	if resp.ConfidenceScore != 0 || len(resp.CitedFiles) != 0 {
		t.Errorf("Empty retrieval must carry no confidence or sources: %+v", resp)
	}
}

func TestAnswer_AccessDenied(t *testing.T) {
	store := &fakeStore{searchResults: []vectordb.SearchResult{
		chunkResult("salary details", "payroll.pdf", "Finance", "Payroll", 0.2),
	}}
	engine := newTestEngine(store, &fakeGenerator{available: true})

	// Doctor has no Finance access, so the only candidate is blocked.
	resp, err := engine.Answer(context.Background(), "what is the payroll total", "Doctor")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !strings.Contains(resp.Answer, "Access Denied") {
		t.Errorf("Expected the access-denied answer, got %q", resp.Answer)
	}
}

func TestAnswer_GroundedAnswer(t *testing.T) {
	store := &fakeStore{searchResults: []vectordb.SearchResult{
		chunkResult("The warranty covers two years of repairs.", "warranty.pdf", "Personal", "Shopping", 0.2),
		chunkResult("Repairs exclude accidental damage.", "warranty.pdf", "Personal", "Shopping", 0.3),
	}}
	gen := &fakeGenerator{answer: "The warranty covers two years of repairs, excluding accidental damage.", available: true}
	engine := newTestEngine(store, gen)

	resp, err := engine.Answer(context.Background(), "how long does the warranty last", "Admin")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if !strings.Contains(resp.Answer, "📊 Confidence:") || !strings.Contains(resp.Answer, "📄 Sources: warranty.pdf") {
		t.Errorf("Expected confidence and sources appended, got %q", resp.Answer)
	}
	if len(resp.CitedFiles) != 1 || resp.CitedFiles[0] != "warranty.pdf" {
		t.Errorf("Cited files should deduplicate, got %v", resp.CitedFiles)
	}
	if len(resp.SourceSnippets) != 2 {
		t.Errorf("Expected 2 snippets, got %d", len(resp.SourceSnippets))
	}
	if resp.ConfidenceScore <= 0 {
		t.Errorf("Expected positive confidence, got %d", resp.ConfidenceScore)
	}

	if len(gen.prompts) != 1 {
		t.Fatalf("Expected one generation call, got %d", len(gen.prompts))
	}
	prompt := gen.prompts[0]
	if !strings.Contains(prompt, "[Source 1: warranty.pdf]") {
		t.Errorf("Prompt missing source block:\n%s", prompt)
	}
	if !strings.Contains(prompt, "CRITICAL RULES:") {
		t.Error("Prompt missing the grounding rules")
	}
}

func TestAnswer_DistanceFilter(t *testing.T) {
	store := &fakeStore{searchResults: []vectordb.SearchResult{
		chunkResult("far away content", "noise.txt", "Technology", "Other", 1.5),
	}}
	engine := newTestEngine(store, &fakeGenerator{available: true})

	resp, err := engine.Answer(context.Background(), "anything relevant here", "Admin")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !strings.Contains(resp.Answer, "I don't have this information") {
		t.Errorf("Distant chunks must be dropped, got %q", resp.Answer)
	}
}

func TestAnswer_Refusal(t *testing.T) {
	store := &fakeStore{searchResults: []vectordb.SearchResult{
		chunkResult("unrelated text", "misc.txt", "Technology", "Other", 0.4),
	}}
	gen := &fakeGenerator{answer: "I don't have this information in the provided documents.", available: true}
	engine := newTestEngine(store, gen)

	resp, err := engine.Answer(context.Background(), "what is the capital of mars", "Admin")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(resp.CitedFiles) != 0 || resp.ConfidenceScore != 0 {
		t.Errorf("Refusal must not cite sources, got %+v", resp)
	}
	if strings.Contains(resp.Answer, "Confidence:") {
		t.Errorf("Refusal must not append confidence, got %q", resp.Answer)
	}
}

func TestIsRefusal(t *testing.T) {
	if !isRefusal("I don't have this information in the provided documents.") {
		t.Error("Short refusal must be detected")
	}
	long := "The report describes the deployment in detail. " +
		strings.Repeat("More substance here. ", 5) +
		"Some aspects are not mentioned in the documents."
	if isRefusal(long) {
		t.Error("Long answers with a refusal suffix are valid answers")
	}
	if isRefusal("The warranty lasts two years.") {
		t.Error("Plain answers are not refusals")
	}
}

func TestAnswer_WholeFileRetrieval(t *testing.T) {
	store := &fakeStore{fileResults: []vectordb.SearchResult{
		{Content: "second part", Metadata: map[string]interface{}{"chunk_index": int64(1)}},
		{Content: "first part", Metadata: map[string]interface{}{"chunk_index": int64(0)}},
	}}
	gen := &fakeGenerator{available: true}
	engine := newTestEngine(store, gen)

	resp, err := engine.Answer(context.Background(), "show me config.yaml", "Admin")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !resp.FullFileRetrieval {
		t.Fatal("Expected whole-file retrieval")
	}
	if !strings.Contains(resp.Answer, "first part\nsecond part") {
		t.Errorf("Chunks must join in index order, got %q", resp.Answer)
	}
	if len(gen.prompts) != 0 {
		t.Error("Whole-file retrieval must not call the LLM")
	}
	if resp.ConfidenceScore != 100 {
		t.Errorf("Whole-file retrieval confidence should be 100, got %d", resp.ConfidenceScore)
	}
}

func TestConfidenceScore(t *testing.T) {
	chunks := []Chunk{
		{Similarity: 0.9, Distance: 0.2},
		{Similarity: 0.85, Distance: 0.3},
		{Similarity: 0.8, Distance: 0.4},
		{Similarity: 0.8, Distance: 0.4},
		{Similarity: 0.75, Distance: 0.5},
	}
	score := confidenceScore(chunks)
	// meanSim=0.82, chunkBonus=1, meanDist=0.36 -> distConf=0.82
	// 0.4*0.82 + 0.3*1 + 0.3*0.82 = 0.874
	if score != 87 {
		t.Errorf("Expected 87, got %d", score)
	}
	if confidenceScore(nil) != 0 {
		t.Error("No chunks means zero confidence")
	}
}

func TestConfidenceLevel(t *testing.T) {
	if !strings.Contains(confidenceLevel(80), "HIGH") {
		t.Error("80 should be HIGH")
	}
	if !strings.Contains(confidenceLevel(50), "MEDIUM") {
		t.Error("50 should be MEDIUM")
	}
	if !strings.Contains(confidenceLevel(10), "LOW") {
		t.Error("10 should be LOW")
	}
}
