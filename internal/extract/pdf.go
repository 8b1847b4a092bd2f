package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor reads the text layer of each physical PDF page. Pages are
// already segmented (one physical page, one output page) and bypass the
// paginator's re-bucketing. Image-only pages get a placeholder so a
// scanned PDF keeps its page count instead of being dropped.
type PDFExtractor struct{}

func (*PDFExtractor) Extract(data []byte) ([]PageText, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	numPages := reader.NumPage()
	if numPages == 0 {
		return []PageText{placeholderPage()}, nil
	}

	raw := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			raw = append(raw, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Unreadable page, keep its slot with a placeholder.
			raw = append(raw, "")
			continue
		}
		raw = append(raw, text)
	}

	return assemblePDFPages(raw), nil
}

// assemblePDFPages normalizes per-page text and substitutes placeholders
// for pages that yielded nothing. Kept separate from the reader so the
// page-fidelity rules are testable without a real PDF.
func assemblePDFPages(raw []string) []PageText {
	if len(raw) == 0 {
		return []PageText{placeholderPage()}
	}
	pages := make([]PageText, 0, len(raw))
	for _, text := range raw {
		content := normalizeWhitespace(text)
		if content == "" {
			pages = append(pages, placeholderPage())
			continue
		}
		pages = append(pages, PageText{Content: content, WordCount: CountWords(content)})
	}
	return pages
}

// normalizeWhitespace collapses runs of whitespace into single spaces.
// PDF text layers often carry layout artifacts as stray spacing.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
