package extractors

import (
	"context"
	"fmt"
	"strings"

	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

// DocxExtractor extracts the text body of Word documents.
type DocxExtractor struct{}

func (e *DocxExtractor) Extensions() []string {
	return []string{"docx"}
}

func (e *DocxExtractor) Extract(ctx context.Context, path string) (string, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to parse Word document: %w", err)
	}
	defer doc.Close()

	return doc.Editable().GetContent(), nil
}

// xlsxCellCap bounds how many non-empty cells a sheet contributes, keeping
// pathological spreadsheets from producing megabytes of text.
const xlsxCellCap = 1000

// XlsxExtractor extracts spreadsheet cells as "A1: value" lines per sheet.
type XlsxExtractor struct{}

func (e *XlsxExtractor) Extensions() []string {
	return []string{"xlsx"}
}

func (e *XlsxExtractor) Extract(ctx context.Context, path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to parse Excel document: %w", err)
	}
	defer f.Close()

	var parts []string
	for _, sheetName := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		var sheetText strings.Builder
		sheetText.WriteString(fmt.Sprintf("--- Sheet: %s ---\n", sheetName))

		rows, err := f.GetRows(sheetName)
		if err != nil {
			sheetText.WriteString(fmt.Sprintf("Error reading sheet: %v\n", err))
			parts = append(parts, strings.TrimSpace(sheetText.String()))
			continue
		}

		cellCount := 0
	rowLoop:
		for rowIndex, row := range rows {
			for colIndex, cell := range row {
				if cellCount >= xlsxCellCap {
					sheetText.WriteString("... (truncated)\n")
					break rowLoop
				}
				if text := strings.TrimSpace(cell); text != "" {
					cellRef, err := excelize.CoordinatesToCellName(colIndex+1, rowIndex+1)
					if err != nil {
						cellRef = fmt.Sprintf("R%dC%d", rowIndex+1, colIndex+1)
					}
					sheetText.WriteString(fmt.Sprintf("%s: %s\n", cellRef, text))
					cellCount++
				}
			}
		}

		if text := strings.TrimSpace(sheetText.String()); text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, "\n\n"), nil
}
