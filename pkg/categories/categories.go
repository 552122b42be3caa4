// Package categories manages admin-defined categories on top of the
// builtin classifier taxonomy. Custom categories live in the key-value
// store as one JSON blob per domain and are merged into classification
// and listings at read time.
package categories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

const maxNameLength = 50

var (
	ErrEmptyName   = errors.New("category name cannot be empty")
	ErrNameTooLong = fmt.Errorf("category name too long (max %d characters)", maxNameLength)
	ErrNoKeywords  = errors.New("at least one keyword is required")
	ErrNotFound    = errors.New("category not found")
)

// KV is the custom-category slice of the key-value store.
type KV interface {
	CustomCategories(ctx context.Context, domain string) (map[string][]string, error)
	SetCustomCategories(ctx context.Context, domain string, categories map[string][]string) error
	CustomCategoryDomains(ctx context.Context) ([]string, error)
}

// Manager persists and merges custom categories.
type Manager struct {
	kv     KV
	logger *slog.Logger
}

func New(kv KV) *Manager {
	return &Manager{
		kv:     kv,
		logger: slog.Default().With("component", "categories"),
	}
}

// Validate checks a category name and keyword list.
func Validate(name string, keywords []string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if len(name) > maxNameLength {
		return ErrNameTooLong
	}
	if len(keywords) == 0 {
		return ErrNoKeywords
	}
	return nil
}

// Add stores a custom category; adding an existing name updates it.
func (m *Manager) Add(ctx context.Context, domain, name string, keywords []string) error {
	if err := Validate(name, keywords); err != nil {
		return err
	}

	existing, err := m.kv.CustomCategories(ctx, domain)
	if err != nil {
		return err
	}
	existing[name] = keywords

	if err := m.kv.SetCustomCategories(ctx, domain, existing); err != nil {
		return err
	}
	m.logger.Info("Added custom category", "domain", domain, "category", name)
	return nil
}

// Delete removes a custom category; builtin categories cannot be deleted.
func (m *Manager) Delete(ctx context.Context, domain, name string) error {
	existing, err := m.kv.CustomCategories(ctx, domain)
	if err != nil {
		return err
	}
	if _, ok := existing[name]; !ok {
		return ErrNotFound
	}
	delete(existing, name)

	if err := m.kv.SetCustomCategories(ctx, domain, existing); err != nil {
		return err
	}
	m.logger.Info("Deleted custom category", "domain", domain, "category", name)
	return nil
}

// ForDomain merges the builtin keyword table with the domain's custom
// categories. Custom entries shadow builtin names.
func (m *Manager) ForDomain(ctx context.Context, domain string, builtin map[string][]string) (map[string][]string, error) {
	merged := make(map[string][]string, len(builtin))
	for name, keywords := range builtin {
		merged[name] = keywords
	}

	custom, err := m.kv.CustomCategories(ctx, domain)
	if err != nil {
		return nil, err
	}
	for name, keywords := range custom {
		merged[name] = keywords
	}
	return merged, nil
}

// AllCustom lists every domain's custom categories.
func (m *Manager) AllCustom(ctx context.Context) (map[string]map[string][]string, error) {
	domains, err := m.kv.CustomCategoryDomains(ctx)
	if err != nil {
		return nil, err
	}

	result := make(map[string]map[string][]string)
	for _, domain := range domains {
		categories, err := m.kv.CustomCategories(ctx, domain)
		if err != nil {
			return nil, err
		}
		if len(categories) > 0 {
			result[domain] = categories
		}
	}
	return result, nil
}
