package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/documind/documind/pkg/config"
)

type stubGenerator struct {
	response string
	err      error
	called   bool
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	s.called = true
	return s.response, s.err
}

type stubCategories struct {
	categories map[string][]string
	err        error
}

func (s *stubCategories) CustomCategories(ctx context.Context, domain string) (map[string][]string, error) {
	return s.categories, s.err
}

func defaultConfig() *config.ClassifierConfig {
	cfg := &config.ClassifierConfig{}
	cfg.SetDefaults()
	return cfg
}

func TestClassify_GuardrailPrecedence(t *testing.T) {
	c := New(defaultConfig())

	// Guardrails fire before keyword scoring, even when the body is full of
	// other domains' vocabulary.
	text := "Aadhaar enrollment details. machine learning dataset training model neural network"
	result := c.Classify(context.Background(), text, "scan.pdf")

	if result.Domain != "Government" || result.Category != "ID" {
		t.Errorf("Expected Government/ID, got %s/%s", result.Domain, result.Category)
	}
	if result.Confidence != 0.95 {
		t.Errorf("Expected confidence 0.95, got %v", result.Confidence)
	}
	if result.DomainScore != 100 || result.CategoryScore != 100 {
		t.Errorf("Expected forced scores 100/100, got %d/%d", result.DomainScore, result.CategoryScore)
	}
}

func TestClassify_GuardrailOrder(t *testing.T) {
	c := New(defaultConfig())

	// "resume" triggers Personal/Identity; an earlier Government rule keyword
	// in the same text must win because rules run in order.
	text := "resume attached along with pan card copy"
	result := c.Classify(context.Background(), text, "docs.pdf")

	if result.Domain != "Government" || result.Category != "ID" {
		t.Errorf("Expected Government/ID (earlier rule), got %s/%s", result.Domain, result.Category)
	}
}

func TestClassify_GuardrailMatchesFilename(t *testing.T) {
	c := New(defaultConfig())

	result := c.Classify(context.Background(), "quarterly figures", "gst_invoice_2025.pdf")
	if result.Domain != "Finance" || result.Category != "Tax" {
		t.Errorf("Expected Finance/Tax from filename, got %s/%s", result.Domain, result.Category)
	}
}

func TestClassify_CodeExtensionShortcut(t *testing.T) {
	c := New(defaultConfig())

	tests := []struct {
		filename string
		category string
	}{
		{"component.tsx", "Frontend"},
		{"styles.scss", "Script"}, // scss is not in the code set; see below
		{"service.go", "Backend"},
		{"handler.py", "Backend"},
		{"query.sql", "Script"},
		{"deploy.ps1", "Script"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			result := c.Classify(context.Background(), "plain body", tt.filename)
			if tt.filename == "styles.scss" {
				// scss is a frontend extension but not a code extension, so
				// it falls through to keyword scoring.
				if result.Domain == "Code" {
					t.Errorf("scss should not shortcut to Code, got %s/%s", result.Domain, result.Category)
				}
				return
			}
			if result.Domain != "Code" || result.Category != tt.category {
				t.Errorf("Expected Code/%s, got %s/%s", tt.category, result.Domain, result.Category)
			}
			if result.Confidence != 0.95 {
				t.Errorf("Expected confidence 0.95, got %v", result.Confidence)
			}
		})
	}
}

func TestClassify_DocumentationExtension(t *testing.T) {
	c := New(defaultConfig())

	result := c.Classify(context.Background(), "some notes", "NOTES.RST")
	if result.Domain != "Documentation" || result.Category != "Other" {
		t.Errorf("Expected Documentation/Other, got %s/%s", result.Domain, result.Category)
	}
	if result.Confidence != 0.85 {
		t.Errorf("Expected confidence 0.85, got %v", result.Confidence)
	}
}

func TestClassify_KeywordScoring(t *testing.T) {
	c := New(defaultConfig())

	text := "Patient admitted to hospital with symptoms. Diagnosis confirmed after " +
		"lab test and imaging. Treatment plan includes medication and therapy. " +
		"The physician recorded vital signs and medical history."
	result := c.Classify(context.Background(), text, "notes.txt")

	if result.Domain != "Healthcare" {
		t.Errorf("Expected Healthcare, got %s (score %d)", result.Domain, result.DomainScore)
	}
	if result.FileExtension != "txt" {
		t.Errorf("Expected extension txt, got %s", result.FileExtension)
	}
}

func TestClassify_DefaultsToTechnologyOther(t *testing.T) {
	cfg := defaultConfig()
	cfg.LLMFallback = config.BoolPtr(false)
	c := New(cfg)

	result := c.Classify(context.Background(), "zzz qqq xxx", "mystery.bin")
	if result.Domain != "Technology" || result.Category != "Other" {
		t.Errorf("Expected Technology/Other default, got %s/%s", result.Domain, result.Category)
	}
	if result.Confidence != 0 {
		t.Errorf("Expected zero confidence, got %v", result.Confidence)
	}
}

func TestClassify_NoExtension(t *testing.T) {
	cfg := defaultConfig()
	cfg.LLMFallback = config.BoolPtr(false)
	c := New(cfg)

	result := c.Classify(context.Background(), "zzz", "README")
	if result.FileExtension != "files" {
		t.Errorf("Expected placeholder extension, got %s", result.FileExtension)
	}
}

func TestClassify_LLMFallbackOnLowConfidence(t *testing.T) {
	llm := &stubGenerator{response: `{"domain": "Legal", "category": "Court"}`}
	c := New(defaultConfig(), WithLLM(llm))

	result := c.Classify(context.Background(), "zzz qqq", "mystery.bin")

	if !llm.called {
		t.Fatal("Expected LLM fallback to run on zero-confidence input")
	}
	if result.Domain != "Legal" || result.Category != "Court" {
		t.Errorf("Expected Legal/Court from LLM, got %s/%s", result.Domain, result.Category)
	}
	if result.Confidence != 0.85 {
		t.Errorf("Expected fallback confidence 0.85, got %v", result.Confidence)
	}
	if result.DomainScore != 80 || result.CategoryScore != 80 {
		t.Errorf("Expected fallback scores 80/80, got %d/%d", result.DomainScore, result.CategoryScore)
	}
}

func TestClassify_LLMFallbackSkippedOnHighConfidence(t *testing.T) {
	llm := &stubGenerator{response: `{"domain": "Legal", "category": "Court"}`}
	c := New(defaultConfig(), WithLLM(llm))

	text := "Patient admitted to hospital. Diagnosis, treatment, prescription, " +
		"medication, physician, clinical notes, discharge planned."
	c.Classify(context.Background(), text, "notes.txt")

	// Healthcare guardrail (prescription/discharge) fires; no LLM consult.
	if llm.called {
		t.Error("LLM should not be consulted when rules are confident")
	}
}

func TestClassify_LLMFailureKeepsRuleAnswer(t *testing.T) {
	tests := []struct {
		name string
		llm  *stubGenerator
	}{
		{"error", &stubGenerator{err: errors.New("connection refused")}},
		{"garbage", &stubGenerator{response: "I think this is probably legal?"}},
		{"unknown_domain", &stubGenerator{response: `{"domain": "Astrology", "category": "Other"}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(defaultConfig(), WithLLM(tt.llm))
			result := c.Classify(context.Background(), "zzz", "mystery.bin")
			if result.Domain != "Technology" || result.Category != "Other" {
				t.Errorf("Expected rule answer kept, got %s/%s", result.Domain, result.Category)
			}
		})
	}
}

func TestClassify_CustomCategoriesMerge(t *testing.T) {
	src := &stubCategories{categories: map[string][]string{
		"Telemetry": {"telemetry", "observability"},
	}}
	cfg := defaultConfig()
	cfg.LLMFallback = config.BoolPtr(false)
	c := New(cfg, WithCategorySource(src))

	text := "system telemetry and observability platform telemetry pipeline"
	result := c.Classify(context.Background(), text, "infra.txt")

	if result.Domain != "Technology" {
		t.Fatalf("Expected Technology, got %s", result.Domain)
	}
	if result.Category != "Telemetry" {
		t.Errorf("Expected custom Telemetry category, got %s", result.Category)
	}
}

func TestClassify_CustomCategorySourceErrorIgnored(t *testing.T) {
	src := &stubCategories{err: errors.New("redis down")}
	cfg := defaultConfig()
	cfg.LLMFallback = config.BoolPtr(false)
	c := New(cfg, WithCategorySource(src))

	result := c.Classify(context.Background(), "patient hospital diagnosis treatment", "chart.txt")
	if result.Domain != "Healthcare" {
		t.Errorf("Classification should survive a category source failure, got %s", result.Domain)
	}
}

func TestClassify_CategoryTieBreakStable(t *testing.T) {
	cfg := defaultConfig()
	cfg.LLMFallback = config.BoolPtr(false)
	c := New(cfg)

	// Contract ("agreement") and Property ("lease") each score exactly one
	// hit; the earlier candidate in the table must win, every run.
	text := "the lawsuit mentions an agreement and a lease"
	for i := 0; i < 300; i++ {
		result := c.Classify(context.Background(), text, "note.txt")
		if result.Domain != "Legal" {
			t.Fatalf("Expected Legal, got %s", result.Domain)
		}
		if result.Category != "Contract" {
			t.Fatalf("Tie-break drifted to %s on run %d, want Contract", result.Category, i)
		}
	}
}

func TestClassify_CustomCategoryTieKeepsBuiltin(t *testing.T) {
	src := &stubCategories{categories: map[string][]string{
		"Compliance": {"lawsuit"},
	}}
	cfg := defaultConfig()
	cfg.LLMFallback = config.BoolPtr(false)
	c := New(cfg, WithCategorySource(src))

	// Builtin Contract and custom Compliance tie at one hit each; custom
	// names score after the builtins, so Contract keeps winning.
	text := "the lawsuit mentions an agreement"
	for i := 0; i < 300; i++ {
		result := c.Classify(context.Background(), text, "note.txt")
		if result.Category != "Contract" {
			t.Fatalf("Tie-break drifted to %s on run %d, want Contract", result.Category, i)
		}
	}
}

func TestParseLLMResponse(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantOK   bool
		domain   string
		category string
	}{
		{"clean", `{"domain": "Finance", "category": "Tax"}`, true, "Finance", "Tax"},
		{"wrapped", "Sure! Here you go:\n{\"domain\": \"Code\", \"category\": \"Backend\"}\nHope that helps.", true, "Code", "Backend"},
		{"empty_category", `{"domain": "Legal", "category": ""}`, true, "Legal", "Other"},
		{"bad_domain", `{"domain": "Cooking", "category": "Recipes"}`, false, "", ""},
		{"no_json", "cannot classify", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseLLMResponse(tt.response)
			if ok != tt.wantOK {
				t.Fatalf("parseLLMResponse() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && (got.Domain != tt.domain || got.Category != tt.category) {
				t.Errorf("Got %s/%s, want %s/%s", got.Domain, got.Category, tt.domain, tt.category)
			}
		})
	}
}
