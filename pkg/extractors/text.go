package extractors

import (
	"context"
	"os"
)

// TextExtractor reads plain-text formats verbatim: text, markup, data
// interchange and source code files.
type TextExtractor struct{}

func (e *TextExtractor) Extensions() []string {
	return []string{
		"txt", "md", "rst", "adoc", "csv", "tsv", "json", "yaml", "yml",
		"xml", "html", "htm", "css", "log", "ini", "toml", "cfg", "conf",
		"py", "js", "jsx", "ts", "tsx", "java", "cpp", "c", "h", "hpp",
		"cs", "go", "rs", "rb", "php", "swift", "kt", "scala",
		"sql", "r", "dart", "lua",
	}
}

func (e *TextExtractor) Extract(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
