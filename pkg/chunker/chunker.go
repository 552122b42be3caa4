// Package chunker splits extracted text into overlapping chunks sized by how
// large the source file is.
//
// Splits prefer paragraph boundaries, fall back to sentence boundaries, and
// hard-split only when a single sentence exceeds the budget. A small overlap
// is carried between adjacent chunks so spans crossing a boundary still
// retrieve. chunk_index is dense from 0; concatenating chunks in ascending
// index order preserves text order.
package chunker

import (
	"strings"

	"github.com/documind/documind/pkg/config"
)

// Size tier boundaries.
const (
	smallFileBytes = 1 << 20       // 1 MB
	largeFileBytes = 10 * (1 << 20) // 10 MB
)

// Chunk is one slice of a document's text.
type Chunk struct {
	Content string
	Index   int
	Total   int
}

// Chunker splits text using the configured budgets.
type Chunker struct {
	cfg *config.IngestConfig
}

// New builds a chunker.
func New(cfg *config.IngestConfig) *Chunker {
	if cfg == nil {
		cfg = &config.IngestConfig{}
		cfg.SetDefaults()
	}
	return &Chunker{cfg: cfg}
}

// SizeFor picks the chunk budget for a file: bigger files get bigger chunks
// so the chunk count stays manageable.
func (c *Chunker) SizeFor(fileSizeBytes int64) int {
	switch {
	case fileSizeBytes < smallFileBytes:
		return c.cfg.ChunkSizeSmall
	case fileSizeBytes <= largeFileBytes:
		return c.cfg.ChunkSizeMedium
	default:
		return c.cfg.ChunkSizeLarge
	}
}

// Chunk splits text into indexed chunks using the budget for fileSizeBytes.
// Empty or whitespace-only text yields no chunks.
func (c *Chunker) Chunk(text string, fileSizeBytes int64) []Chunk {
	budget := c.SizeFor(fileSizeBytes)
	overlap := c.cfg.ChunkOverlap

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if len(text) <= budget {
		return []Chunk{{Content: text, Index: 0, Total: 1}}
	}

	pieces := splitPieces(text, budget)
	contents := assemble(pieces, budget, overlap)

	chunks := make([]Chunk, len(contents))
	for i, content := range contents {
		chunks[i] = Chunk{Content: content, Index: i, Total: len(contents)}
	}
	return chunks
}

// splitPieces breaks text into budget-sized pieces along paragraph then
// sentence boundaries, hard-splitting oversized sentences.
func splitPieces(text string, budget int) []string {
	var pieces []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) <= budget {
			pieces = append(pieces, para)
			continue
		}
		for _, sentence := range splitSentences(para) {
			if len(sentence) <= budget {
				pieces = append(pieces, sentence)
				continue
			}
			pieces = append(pieces, hardSplit(sentence, budget)...)
		}
	}
	return pieces
}

// assemble packs pieces into chunks up to budget, seeding each new chunk
// with the tail of the previous one.
func assemble(pieces []string, budget, overlap int) []string {
	var contents []string
	var current string

	for _, piece := range pieces {
		if current == "" {
			current = piece
			continue
		}
		if len(current)+1+len(piece) <= budget {
			current = current + "\n" + piece
			continue
		}

		contents = append(contents, current)
		if tail := overlapTail(current, overlap); tail != "" {
			current = tail + "\n" + piece
		} else {
			current = piece
		}
	}

	if current != "" {
		contents = append(contents, current)
	}
	return contents
}

// overlapTail returns the last overlap bytes of a chunk, snapped forward to
// a word boundary. Chunks no longer than the overlap carry nothing.
func overlapTail(content string, overlap int) string {
	if overlap <= 0 || len(content) <= overlap {
		return ""
	}
	tail := content[len(content)-overlap:]
	if idx := strings.IndexAny(tail, " \n\t"); idx >= 0 && idx < len(tail)-1 {
		tail = tail[idx+1:]
	}
	return strings.TrimSpace(tail)
}

// splitSentences splits on sentence-ending punctuation followed by
// whitespace, and on single newlines.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		ch := text[i]
		isEnd := (ch == '.' || ch == '!' || ch == '?') &&
			i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\n' || text[i+1] == '\t')
		if ch == '\n' || isEnd {
			end := i
			if isEnd {
				end = i + 1
			}
			if s := strings.TrimSpace(text[start:end]); s != "" {
				sentences = append(sentences, s)
			}
			start = end
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// hardSplit cuts text into budget-sized slices with no boundary preference.
func hardSplit(text string, budget int) []string {
	var parts []string
	for len(text) > budget {
		parts = append(parts, text[:budget])
		text = text[budget:]
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}
