package categories

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeKV struct {
	blobs map[string]map[string][]string
}

func newFakeKV() *fakeKV {
	return &fakeKV{blobs: map[string]map[string][]string{}}
}

func (f *fakeKV) CustomCategories(ctx context.Context, domain string) (map[string][]string, error) {
	if blob, ok := f.blobs[domain]; ok {
		out := make(map[string][]string, len(blob))
		for k, v := range blob {
			out[k] = v
		}
		return out, nil
	}
	return map[string][]string{}, nil
}

func (f *fakeKV) SetCustomCategories(ctx context.Context, domain string, categories map[string][]string) error {
	f.blobs[domain] = categories
	return nil
}

func (f *fakeKV) CustomCategoryDomains(ctx context.Context) ([]string, error) {
	var domains []string
	for domain := range f.blobs {
		domains = append(domains, domain)
	}
	return domains, nil
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		category string
		keywords []string
		wantErr  error
	}{
		{"valid", "Crypto", []string{"bitcoin"}, nil},
		{"empty name", "  ", []string{"bitcoin"}, ErrEmptyName},
		{"too long", strings.Repeat("x", 51), []string{"bitcoin"}, ErrNameTooLong},
		{"no keywords", "Crypto", nil, ErrNoKeywords},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.category, tt.keywords)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAddAndDelete(t *testing.T) {
	kv := newFakeKV()
	mgr := New(kv)
	ctx := context.Background()

	if err := mgr.Add(ctx, "Finance", "Crypto", []string{"bitcoin", "wallet"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := mgr.Add(ctx, "Finance", "Crypto", []string{"ethereum"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	stored, _ := kv.CustomCategories(ctx, "Finance")
	if len(stored["Crypto"]) != 1 || stored["Crypto"][0] != "ethereum" {
		t.Errorf("Re-adding must update keywords, got %v", stored["Crypto"])
	}

	if err := mgr.Delete(ctx, "Finance", "Crypto"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := mgr.Delete(ctx, "Finance", "Crypto"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Deleting a missing category should fail, got %v", err)
	}
}

func TestForDomain_MergesCustomOverBuiltin(t *testing.T) {
	kv := newFakeKV()
	mgr := New(kv)
	ctx := context.Background()

	builtin := map[string][]string{
		"Tax":     {"gst", "itr"},
		"Banking": {"statement"},
	}
	if err := mgr.Add(ctx, "Finance", "Crypto", []string{"bitcoin"}); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Add(ctx, "Finance", "Tax", []string{"vat"}); err != nil {
		t.Fatal(err)
	}

	merged, err := mgr.ForDomain(ctx, "Finance", builtin)
	if err != nil {
		t.Fatalf("ForDomain: %v", err)
	}
	if len(merged) != 3 {
		t.Errorf("Expected 3 categories, got %v", merged)
	}
	if merged["Tax"][0] != "vat" {
		t.Errorf("Custom entries must shadow builtin, got %v", merged["Tax"])
	}
	if len(builtin["Tax"]) != 2 {
		t.Error("Merging must not mutate the builtin table")
	}
}

func TestAllCustom(t *testing.T) {
	kv := newFakeKV()
	mgr := New(kv)
	ctx := context.Background()

	mgr.Add(ctx, "Finance", "Crypto", []string{"bitcoin"})
	mgr.Add(ctx, "Legal", "Patents", []string{"patent"})

	all, err := mgr.AllCustom(ctx)
	if err != nil {
		t.Fatalf("AllCustom: %v", err)
	}
	if len(all) != 2 || all["Finance"]["Crypto"] == nil || all["Legal"]["Patents"] == nil {
		t.Errorf("Unexpected listing: %v", all)
	}
}
