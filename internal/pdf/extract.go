package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrExtractFailed is returned when the PDF cannot be parsed for text.
var ErrExtractFailed = errors.New("pdf: text extraction failed")

// ExtractResult holds the text extracted from a PDF.
type ExtractResult struct {
	// Text is the extracted plain text, pages separated by newlines.
	Text string
	// Pages is the total page count of the document.
	Pages int
}

// ExtractText extracts plain text from PDF content. Pages that cannot be
// parsed are skipped rather than failing the whole document; extraction
// fails only when the file itself is not a readable PDF.
func ExtractText(content []byte) (*ExtractResult, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractFailed, err)
	}

	pages := reader.NumPage()
	var builder strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		builder.WriteString(text)
		builder.WriteByte('\n')
	}

	return &ExtractResult{
		Text:  builder.String(),
		Pages: pages,
	}, nil
}

// ExtractTextFile extracts plain text from a PDF on disk.
func ExtractTextFile(path string) (*ExtractResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractFailed, err)
	}
	return ExtractText(content)
}
