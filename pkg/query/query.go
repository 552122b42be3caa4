// Package query answers questions strictly from indexed documents.
//
// The pipeline: detect the query language, short-circuit whole-file
// requests, retrieve candidates by vector similarity, drop chunks the
// user's role may not see, rerank, apply the noise floor, prompt the LLM
// with the surviving chunks and post-process the answer with refusal
// detection and a confidence score.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/pkoukk/tiktoken-go"

	"github.com/documind/documind/pkg/config"
	"github.com/documind/documind/pkg/embedders"
	"github.com/documind/documind/pkg/llms"
	"github.com/documind/documind/pkg/metrics"
	"github.com/documind/documind/pkg/rbac"
	"github.com/documind/documind/pkg/reranker"
	"github.com/documind/documind/pkg/vectordb"
)

// filenamePattern spots explicit file references like "report.pdf".
var filenamePattern = regexp.MustCompile(`\b([a-zA-Z0-9_-]+\.[a-zA-Z0-9]+)\b`)

// contextTokenBudget caps the prompt's document block, leaving room for
// the instructions and the answer inside the model's 4096-token window.
const contextTokenBudget = 3000

// Chunk is one retrieved piece of a document.
type Chunk struct {
	Text       string
	Filename   string
	Category   string
	Filepath   string
	Similarity float64
	Distance   float64
	Relevance  float64
}

// Snippet is the source preview returned with an answer.
type Snippet struct {
	ID           int     `json:"id"`
	Filename     string  `json:"filename"`
	Category     string  `json:"category"`
	Text         string  `json:"text"`
	Similarity   float64 `json:"similarity"`
	RelevancePct int     `json:"relevance_pct"`
}

// Response is the full answer payload.
type Response struct {
	Answer            string    `json:"answer"`
	CitedFiles        []string  `json:"cited_files"`
	ConfidenceScore   int       `json:"confidence_score"`
	SourceSnippets    []Snippet `json:"source_snippets"`
	DetectedLanguage  string    `json:"detected_language"`
	FullFileRetrieval bool      `json:"full_file_retrieval,omitempty"`
}

// Engine runs the retrieval and answering pipeline.
type Engine struct {
	cfg        *config.QueryConfig
	collection string
	embedder   embedders.Embedder
	store      vectordb.Provider
	generator  llms.Generator
	reranker   reranker.Reranker
	policy     *rbac.Policy
	encoder    *tiktoken.Tiktoken
	logger     *slog.Logger
}

// NewEngine builds the query engine.
func NewEngine(
	cfg *config.QueryConfig,
	collection string,
	embedder embedders.Embedder,
	store vectordb.Provider,
	generator llms.Generator,
	rr reranker.Reranker,
	policy *rbac.Policy,
) *Engine {
	if cfg == nil {
		cfg = &config.QueryConfig{}
		cfg.SetDefaults()
	}

	// cl100k_base is a close enough token estimate for context budgeting.
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		encoder = nil
	}

	return &Engine{
		cfg:        cfg,
		collection: collection,
		embedder:   embedder,
		store:      store,
		generator:  generator,
		reranker:   rr,
		policy:     policy,
		encoder:    encoder,
		logger:     slog.Default().With("component", "query"),
	}
}

// Answer runs the pipeline for one query under the given role.
func (e *Engine) Answer(ctx context.Context, query, role string) (*Response, error) {
	started := time.Now()
	defer func() {
		metrics.Queries.Inc()
		metrics.QueryDuration.Observe(time.Since(started).Seconds())
	}()

	lang := e.detectLanguage(query)

	if resp := e.tryWholeFile(ctx, query); resp != nil {
		resp.DetectedLanguage = lang
		return resp, nil
	}

	chunks, rbacFiltered, err := e.retrieve(ctx, query, role)
	if err != nil {
		return nil, err
	}

	if len(chunks) == 0 {
		answer := noInfoMessageFor(lang)
		if rbacFiltered {
			answer = accessDeniedAnswer
		}
		return &Response{
			Answer:           answer,
			CitedFiles:       []string{},
			SourceSnippets:   []Snippet{},
			DetectedLanguage: lang,
		}, nil
	}

	chunks = e.rerank(ctx, query, chunks)
	chunks = e.applyNoiseFloor(chunks)

	return e.generate(ctx, query, lang, chunks)
}

func (e *Engine) detectLanguage(query string) string {
	info := whatlanggo.Detect(query)
	if !info.IsReliable() {
		return "en"
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return "en"
	}
	return code
}

// tryWholeFile reassembles a file's chunks when the query names one and
// reads like a retrieval request.
func (e *Engine) tryWholeFile(ctx context.Context, query string) *Response {
	lower := strings.ToLower(query)

	names := filenamePattern.FindAllString(lower, -1)
	if len(names) == 0 {
		return nil
	}

	asking := false
	for _, keyword := range fileIntentKeywords {
		if strings.Contains(lower, keyword) {
			asking = true
			break
		}
	}
	if !asking {
		return nil
	}

	for _, name := range names {
		content, found := e.fullFile(ctx, name)
		if !found {
			continue
		}

		preview := content
		if len(preview) > 500 {
			preview = preview[:500] + "..."
		}
		return &Response{
			Answer: fmt.Sprintf("Here is the complete content of **%s**:\n\n```\n%s\n```",
				name, content),
			CitedFiles:      []string{name},
			ConfidenceScore: 100,
			SourceSnippets: []Snippet{{
				ID:       1,
				Filename: name,
				Category: "Full File",
				Text:     preview,
			}},
			FullFileRetrieval: true,
		}
	}
	return nil
}

// fullFile joins a file's chunks in index order.
func (e *Engine) fullFile(ctx context.Context, filename string) (string, bool) {
	results, err := e.store.GetByFilter(ctx, e.collection,
		map[string]interface{}{"filename": filename}, 0)
	if err != nil {
		e.logger.Warn("Whole-file lookup failed", "filename", filename, "error", err)
		return "", false
	}
	if len(results) == 0 {
		return "", false
	}

	sort.Slice(results, func(a, b int) bool {
		return chunkIndexOf(results[a]) < chunkIndexOf(results[b])
	})

	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Content
	}
	return strings.Join(parts, "\n"), true
}

func chunkIndexOf(r vectordb.SearchResult) int {
	switch v := r.Metadata["chunk_index"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// retrieve runs kNN, drops distant candidates and filters by role access.
// rbacFiltered reports that matches existed but the role blocked them all.
func (e *Engine) retrieve(ctx context.Context, query, role string) ([]Chunk, bool, error) {
	vector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, false, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := e.store.Search(ctx, e.collection, vector, e.cfg.InitialK)
	if err != nil {
		return nil, false, fmt.Errorf("retrieval failed: %w", err)
	}

	var chunks []Chunk
	blocked := 0
	for _, r := range results {
		distance := float64(r.Distance)
		if distance >= e.cfg.MaxDistance {
			continue
		}

		domain, _ := r.Metadata["domain"].(string)
		category, _ := r.Metadata["category"].(string)
		if role != "" && !e.policy.Access(role, domain, category) {
			blocked++
			continue
		}

		filename, _ := r.Metadata["filename"].(string)
		filepath, _ := r.Metadata["filepath"].(string)
		chunks = append(chunks, Chunk{
			Text:       r.Content,
			Filename:   filename,
			Category:   category,
			Filepath:   filepath,
			Similarity: 1.0 - distance/2.0,
			Distance:   distance,
		})
	}

	if blocked > 0 {
		metrics.AccessDenials.WithLabelValues(role).Add(float64(blocked))
	}

	sort.SliceStable(chunks, func(a, b int) bool {
		return chunks[a].Similarity > chunks[b].Similarity
	})

	rbacFiltered := blocked > 0 && len(chunks) == 0
	return chunks, rbacFiltered, nil
}

// rerank orders candidates with the cross-encoder, degrading to the
// similarity order when the service fails.
func (e *Engine) rerank(ctx context.Context, query string, chunks []Chunk) []Chunk {
	documents := make([]string, len(chunks))
	for i, c := range chunks {
		documents[i] = c.Text
	}

	results, err := e.reranker.Rerank(ctx, query, documents, e.cfg.FinalK)
	if err != nil {
		e.logger.Warn("Reranking failed, keeping similarity order", "error", err)
		if len(chunks) > e.cfg.FinalK {
			return chunks[:e.cfg.FinalK]
		}
		return chunks
	}

	reranked := make([]Chunk, 0, len(results))
	for _, r := range results {
		chunk := chunks[r.Index]
		chunk.Relevance = r.Score
		reranked = append(reranked, chunk)
	}
	return reranked
}

// applyNoiseFloor drops chunks scored at or below the floor, keeping the
// top chunk when everything would be dropped.
func (e *Engine) applyNoiseFloor(chunks []Chunk) []Chunk {
	if len(chunks) == 0 {
		return chunks
	}
	floor := *e.cfg.NoiseFloor

	kept := chunks[:0:0]
	for _, c := range chunks {
		if c.Relevance > floor {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		e.logger.Warn("All chunks below noise floor, keeping top candidate")
		return chunks[:1]
	}
	return kept
}

func (e *Engine) generate(ctx context.Context, query, lang string, chunks []Chunk) (*Response, error) {
	snippets := make([]Snippet, len(chunks))
	for i, c := range chunks {
		text := c.Text
		if len(text) > 300 {
			text = text[:300] + "..."
		}
		snippets[i] = Snippet{
			ID:           i + 1,
			Filename:     c.Filename,
			Category:     c.Category,
			Text:         text,
			Similarity:   c.Similarity,
			RelevancePct: int(c.Similarity * 100),
		}
	}

	prompt := e.buildPrompt(query, lang, chunks)

	answer, err := e.generator.Generate(ctx, prompt,
		llms.WithTemperature(0.3),
	)
	if err != nil {
		if !e.generator.Available(ctx) {
			return &Response{
				Answer:           "I cannot answer right now because the language model is not running. Please start it to get AI-powered answers from your documents.",
				CitedFiles:       []string{},
				SourceSnippets:   []Snippet{},
				DetectedLanguage: lang,
			}, nil
		}
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}
	answer = strings.TrimSpace(answer)

	if isRefusal(answer) {
		return &Response{
			Answer:           answer,
			CitedFiles:       []string{},
			SourceSnippets:   []Snippet{},
			DetectedLanguage: lang,
		}, nil
	}

	score := confidenceScore(chunks)
	cited := citedFiles(chunks)
	if len(cited) > 0 {
		answer += fmt.Sprintf("\n\n📊 Confidence: %s (%d%%)", confidenceLevel(score), score)
		answer += fmt.Sprintf("\n📄 Sources: %s", strings.Join(cited, ", "))
	}

	return &Response{
		Answer:           answer,
		CitedFiles:       cited,
		ConfidenceScore:  score,
		SourceSnippets:   snippets,
		DetectedLanguage: lang,
	}, nil
}

// buildPrompt assembles the strict document-only prompt, trimming chunks
// that would blow the context token budget.
func (e *Engine) buildPrompt(query, lang string, chunks []Chunk) string {
	var docs strings.Builder
	used := 0
	for i, c := range chunks {
		block := fmt.Sprintf("[Source %d: %s]\n%s\n\n", i+1, c.Filename, c.Text)
		tokens := e.countTokens(block)
		if used+tokens > contextTokenBudget && used > 0 {
			e.logger.Info("Context budget reached", "included", i, "total", len(chunks))
			break
		}
		docs.WriteString(block)
		used += tokens
	}

	preamble := ""
	lower := strings.ToLower(query)
	for _, trigger := range definitionTriggers {
		if strings.Contains(lower, trigger) {
			preamble = "Provide a concise 1-2 line definition FIRST, then details.\n"
			break
		}
	}

	return fmt.Sprintf(`%s

CRITICAL RULES:
1. ONLY answer using information from the documents below.
2. **STRICT PROHIBITION:** Do NOT use any external knowledge, general knowledge, or information from your training data.
3. If the answer is NOT in the documents, respond EXACTLY: "I don't have this information in the provided documents."
4. **DO NOT** provide "general information", "related concepts", or "possible connections" if they are not in the text.
5. **DO NOT** apologize or be conversational. Just provide the answer or the refusal.
6. Always cite which document the information comes from.
7. Provide detailed, comprehensive answers. ELABORATE on the 'why' and 'how'.
8. Include all types, categories, characteristics, and details mentioned in the documents.
%s
Documents:
%s
Question: %s

Answer ONLY based on the documents above. If information is not in documents, say "I don't have this information in the provided documents." Do NOT add external context.`,
		systemPromptFor(lang), preamble, docs.String(), query)
}

func (e *Engine) countTokens(text string) int {
	if e.encoder == nil {
		return len(text) / 4
	}
	return len(e.encoder.Encode(text, nil, nil))
}

// isRefusal reports whether the model declined to answer. Long answers
// containing a refusal phrase are treated as valid answers with a
// hallucinated suffix.
func isRefusal(answer string) bool {
	lower := strings.ToLower(answer)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return len(answer) <= 100
		}
	}
	return false
}

// confidenceScore blends mean similarity, chunk count and mean distance
// into a 0-100 score.
func confidenceScore(chunks []Chunk) int {
	if len(chunks) == 0 {
		return 0
	}

	var simSum, distSum float64
	for _, c := range chunks {
		simSum += c.Similarity
		distSum += c.Distance
	}
	n := float64(len(chunks))
	meanSim := simSum / n
	meanDist := distSum / n

	chunkBonus := n / 5.0
	if chunkBonus > 1 {
		chunkBonus = 1
	}
	distConf := 1.0 - meanDist/2.0
	if distConf < 0 {
		distConf = 0
	}

	score := int((meanSim*0.4 + chunkBonus*0.3 + distConf*0.3) * 100)
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

func confidenceLevel(score int) string {
	switch {
	case score >= 75:
		return "🟢 HIGH"
	case score >= 40:
		return "🟡 MEDIUM"
	default:
		return "🔴 LOW"
	}
}

func citedFiles(chunks []Chunk) []string {
	seen := make(map[string]bool)
	var files []string
	for _, c := range chunks {
		if c.Filename == "" || seen[c.Filename] {
			continue
		}
		seen[c.Filename] = true
		files = append(files, c.Filename)
	}
	return files
}
