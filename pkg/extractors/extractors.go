// Package extractors turns documents into plain text for chunking and
// classification.
//
// A registry dispatches on lowercased file extension. Extractors only read;
// they never mutate the filesystem. Files no extractor understands (or that
// fail to parse) degrade to the placeholder "File: <name>" so ingestion can
// still classify by filename and index something searchable.
package extractors

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Extraction is the result of pulling text out of a document.
type Extraction struct {
	// Text is the extracted plain text, or the "File: <name>" placeholder.
	Text string

	// SHA256 is the hex content hash of the raw file bytes.
	SHA256 string

	// SizeBytes is the raw file size.
	SizeBytes int64

	// Degraded is set when no extractor produced text and the placeholder
	// was used instead.
	Degraded bool
}

// Extractor pulls text from one family of file formats.
type Extractor interface {
	// Extensions returns the lowercased extensions (without dot) handled.
	Extensions() []string

	// Extract reads the file and returns its text content.
	Extract(ctx context.Context, path string) (string, error)
}

// Service owns the extractor registry and the extraction entry point.
type Service struct {
	byExtension map[string]Extractor
	logger      *slog.Logger
}

// NewService builds a service with the builtin extractors registered:
// plain text, PDF, DOCX and XLSX.
func NewService() *Service {
	s := &Service{
		byExtension: make(map[string]Extractor),
		logger:      slog.Default().With("component", "extractors"),
	}
	s.Register(&TextExtractor{})
	s.Register(&PDFExtractor{})
	s.Register(&DocxExtractor{})
	s.Register(&XlsxExtractor{})
	return s
}

// Register adds an extractor for its declared extensions. Later
// registrations win on extension clash.
func (s *Service) Register(e Extractor) {
	for _, ext := range e.Extensions() {
		s.byExtension[strings.ToLower(ext)] = e
	}
}

// Supported reports whether an extension has a dedicated extractor.
func (s *Service) Supported(ext string) bool {
	_, ok := s.byExtension[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return ok
}

// Extract hashes the file and pulls its text. Extraction failure is not an
// error: the text degrades to "File: <name>". Only filesystem-level failures
// (missing file, unreadable) return an error.
func (s *Service) Extract(ctx context.Context, path string) (*Extraction, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	hash, err := HashFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", path, err)
	}

	result := &Extraction{
		SHA256:    hash,
		SizeBytes: info.Size(),
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	extractor, ok := s.byExtension[ext]
	if !ok {
		result.Text = Placeholder(path)
		result.Degraded = true
		return result, nil
	}

	text, err := extractor.Extract(ctx, path)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			s.logger.Warn("Extraction failed, using filename placeholder",
				"path", path, "error", err)
		}
		result.Text = Placeholder(path)
		result.Degraded = true
		return result, nil
	}

	result.Text = text
	return result, nil
}

// Placeholder is the degenerate text indexed for unreadable files.
func Placeholder(path string) string {
	return "File: " + filepath.Base(path)
}

// HashFile streams the file through SHA-256 and returns the hex digest.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
