// Package classifier assigns documents a Domain > Category > FileType slot.
//
// Classification is hierarchical: ordered guardrail rules first, then
// extension shortcuts, then keyword scoring over domains and the chosen
// domain's categories, with an optional LLM consult when rule confidence is
// low. Classification never fails; the worst case is the default slot.
package classifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/documind/documind/pkg/config"
)

// Result is a classification decision.
type Result struct {
	Domain        string  `json:"domain"`
	Category      string  `json:"category"`
	FileExtension string  `json:"file_extension"`
	Confidence    float64 `json:"confidence"`
	DomainScore   int     `json:"domain_score"`
	CategoryScore int     `json:"category_score"`
}

// Generator produces a completion for a prompt. The classifier uses it only
// for the low-confidence fallback.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// CategorySource supplies admin-defined categories per domain, as
// category name to keyword list. They merge into the builtin candidate table.
type CategorySource interface {
	CustomCategories(ctx context.Context, domain string) (map[string][]string, error)
}

// Classifier classifies document text.
type Classifier struct {
	cfg        *config.ClassifierConfig
	llm        Generator
	categories CategorySource
	logger     *slog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLLM enables the low-confidence LLM fallback.
func WithLLM(llm Generator) Option {
	return func(c *Classifier) {
		c.llm = llm
	}
}

// WithCategorySource merges admin-defined categories into category scoring.
func WithCategorySource(src CategorySource) Option {
	return func(c *Classifier) {
		c.categories = src
	}
}

// New builds a classifier.
func New(cfg *config.ClassifierConfig, opts ...Option) *Classifier {
	if cfg == nil {
		cfg = &config.ClassifierConfig{}
		cfg.SetDefaults()
	}
	c := &Classifier{
		cfg:    cfg,
		logger: slog.Default().With("component", "classifier"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// llmPrefixBytes bounds how much document text the fallback prompt carries.
const llmPrefixBytes = 1024

// Classify assigns text (with its original filename) to a domain/category
// slot. It never returns an error: unclassifiable input lands in
// Technology/Other with zero confidence.
func (c *Classifier) Classify(ctx context.Context, text, filename string) Result {
	textLower := strings.ToLower(text)
	filenameLower := strings.ToLower(filename)
	ext := fileExtension(filename)

	if forced, ok := ruleClassify(textLower, filenameLower, ext); ok {
		return forced
	}

	result := c.scoreClassify(ctx, textLower, filenameLower, ext)

	if result.Confidence < c.cfg.FallbackThreshold && c.llmEnabled() {
		if llmResult, ok := c.llmClassify(ctx, text, filename, ext); ok {
			c.logger.Info("LLM fallback classified document",
				"filename", filename,
				"domain", llmResult.Domain,
				"category", llmResult.Category)
			return llmResult
		}
	}

	return result
}

func (c *Classifier) llmEnabled() bool {
	return c.llm != nil && config.BoolValue(c.cfg.LLMFallback, true)
}

// ruleClassify applies the ordered guardrail rules and extension shortcuts.
func ruleClassify(textLower, filenameLower, ext string) (Result, bool) {
	for _, rule := range guardrailRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(textLower, kw) || strings.Contains(filenameLower, kw) {
				return Result{
					Domain:        rule.Domain,
					Category:      rule.Category,
					FileExtension: extOrFiles(ext),
					Confidence:    0.95,
					DomainScore:   100,
					CategoryScore: 100,
				}, true
			}
		}
	}

	if codeExtensions[ext] {
		category := "Script"
		switch {
		case frontendExtensions[ext]:
			category = "Frontend"
		case backendExtensions[ext]:
			category = "Backend"
		}
		return Result{
			Domain:        "Code",
			Category:      category,
			FileExtension: ext,
			Confidence:    0.95,
			DomainScore:   100,
			CategoryScore: 100,
		}, true
	}

	if docExtensions[ext] {
		return Result{
			Domain:        "Documentation",
			Category:      "Other",
			FileExtension: extOrFiles(ext),
			Confidence:    0.85,
			DomainScore:   90,
			CategoryScore: 90,
		}, true
	}

	return Result{}, false
}

// scoreClassify runs keyword scoring over domains then categories.
func (c *Classifier) scoreClassify(ctx context.Context, textLower, filenameLower, ext string) Result {
	bestDomain, bestDomainScore, totalDomainScore := scoreDomains(textLower, filenameLower)

	candidates := c.categoryCandidates(ctx, bestDomain)
	bestCategory, bestCategoryScore, totalCategoryScore := scoreCategories(candidates, textLower, filenameLower)

	domainConfidence := 0.0
	if totalDomainScore > 0 {
		domainConfidence = float64(bestDomainScore) / float64(totalDomainScore)
	}
	categoryConfidence := 0.0
	if totalCategoryScore > 0 {
		categoryConfidence = float64(bestCategoryScore) / float64(totalCategoryScore)
	}

	combined := math.Round(math.Min(1.0, domainConfidence*0.6+categoryConfidence*0.4)*100) / 100

	c.logger.Debug("Scored classification",
		"domain", bestDomain, "domain_score", bestDomainScore,
		"category", bestCategory, "category_score", bestCategoryScore,
		"confidence", combined)

	return Result{
		Domain:        bestDomain,
		Category:      bestCategory,
		FileExtension: extOrFiles(ext),
		Confidence:    combined,
		DomainScore:   bestDomainScore,
		CategoryScore: bestCategoryScore,
	}
}

// scoreDomains scores every domain: strong hits double, weak hits single,
// strong hits in the filename add five. Zero everywhere defaults to
// Technology.
func scoreDomains(textLower, filenameLower string) (best string, bestScore, total int) {
	best = "Technology"
	for _, domain := range Domains() {
		kw := domainKeywords[domain]
		score := 0
		for _, k := range kw.Strong {
			score += strings.Count(textLower, k) * 2
		}
		for _, k := range kw.Weak {
			score += strings.Count(textLower, k)
		}
		for _, k := range kw.Strong {
			if strings.Contains(filenameLower, k) {
				score += 5
			}
		}
		total += score
		if score > bestScore {
			best = domain
			bestScore = score
		}
	}
	if bestScore == 0 {
		best = "Technology"
	}
	return best, bestScore, total
}

// scoreCategories scores candidate categories in slice order: text occurrence
// count plus five per keyword appearing in the filename. Ties keep the
// earliest candidate; zero everywhere defaults to Other.
func scoreCategories(candidates []categoryEntry, textLower, filenameLower string) (best string, bestScore, total int) {
	best = "Other"
	for _, cand := range candidates {
		if cand.Name == "Other" {
			continue
		}
		score := 0
		for _, kw := range cand.Keywords {
			score += strings.Count(textLower, kw)
			if strings.Contains(filenameLower, kw) {
				score += 5
			}
		}
		total += score
		if score > bestScore {
			best = cand.Name
			bestScore = score
		}
	}
	if bestScore == 0 {
		best = "Other"
	}
	return best, bestScore, total
}

// categoryCandidates merges builtin and admin-defined categories for a
// domain. Custom keywords extend (not replace) builtin lists on name clash;
// new custom names sort after the builtins so scoring order stays stable.
func (c *Classifier) categoryCandidates(ctx context.Context, domain string) []categoryEntry {
	builtin := categoryKeywordsByDomain[domain]
	if c.categories == nil {
		return builtin
	}

	custom, err := c.categories.CustomCategories(ctx, domain)
	if err != nil {
		c.logger.Warn("Failed to load custom categories", "domain", domain, "error", err)
		return builtin
	}
	if len(custom) == 0 {
		return builtin
	}

	merged := make([]categoryEntry, 0, len(builtin)+len(custom))
	known := make(map[string]struct{}, len(builtin))
	for _, entry := range builtin {
		known[entry.Name] = struct{}{}
		keywords := entry.Keywords
		if extra, ok := custom[entry.Name]; ok {
			keywords = append(append([]string(nil), entry.Keywords...), extra...)
		}
		merged = append(merged, categoryEntry{Name: entry.Name, Keywords: keywords})
	}

	added := make([]string, 0, len(custom))
	for name := range custom {
		if _, ok := known[name]; !ok {
			added = append(added, name)
		}
	}
	sort.Strings(added)
	for _, name := range added {
		merged = append(merged, categoryEntry{Name: name, Keywords: custom[name]})
	}
	return merged
}

// llmClassify consults the generation model with a strict-JSON prompt over a
// bounded prefix of the document. Any failure keeps the rule-based answer.
func (c *Classifier) llmClassify(ctx context.Context, text, filename, ext string) (Result, bool) {
	prefix := text
	if len(prefix) > llmPrefixBytes {
		prefix = prefix[:llmPrefixBytes]
	}

	prompt := buildLLMPrompt(prefix, filename)

	response, err := c.llm.Generate(ctx, prompt)
	if err != nil {
		c.logger.Warn("LLM classification failed", "filename", filename, "error", err)
		return Result{}, false
	}

	parsed, ok := parseLLMResponse(response)
	if !ok {
		c.logger.Warn("LLM returned unusable classification", "filename", filename)
		return Result{}, false
	}

	parsed.FileExtension = extOrFiles(ext)
	parsed.Confidence = 0.85
	parsed.DomainScore = 80
	parsed.CategoryScore = 80
	return parsed, true
}

func buildLLMPrompt(prefix, filename string) string {
	var b strings.Builder
	b.WriteString("Classify this document into exactly one domain and one category.\n\n")
	b.WriteString("Valid domains: ")
	b.WriteString(strings.Join(Domains(), ", "))
	b.WriteString("\n\nFilename: ")
	b.WriteString(filename)
	b.WriteString("\n\nDocument excerpt:\n")
	b.WriteString(prefix)
	b.WriteString("\n\nRespond with ONLY a JSON object, no other text:\n")
	b.WriteString(`{"domain": "<domain>", "category": "<category>"}`)
	return b.String()
}

// parseLLMResponse extracts and validates the JSON decision. The domain must
// belong to the taxonomy; the category falls back to Other when empty.
func parseLLMResponse(response string) (Result, bool) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return Result{}, false
	}

	var decision struct {
		Domain   string `json:"domain"`
		Category string `json:"category"`
	}
	if err := json.Unmarshal([]byte(response[start:end+1]), &decision); err != nil {
		return Result{}, false
	}

	if _, ok := domainKeywords[decision.Domain]; !ok {
		return Result{}, false
	}
	if decision.Category == "" {
		decision.Category = "Other"
	}

	return Result{Domain: decision.Domain, Category: decision.Category}, true
}

func fileExtension(filename string) string {
	if idx := strings.LastIndex(filename, "."); idx >= 0 && idx < len(filename)-1 {
		return strings.ToLower(filename[idx+1:])
	}
	return ""
}

func extOrFiles(ext string) string {
	if ext == "" {
		return "files"
	}
	return ext
}
