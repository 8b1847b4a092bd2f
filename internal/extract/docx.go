package extract

import (
	"bytes"
	"fmt"
	"strings"

	"code.sajari.com/docconv"
)

// docxWordBudget is the fixed word count per DOCX page. DOCX files carry
// no physical page boundaries, so segmentation is word-counted rather
// than character-budgeted like the paginator.
const docxWordBudget = 300

// DOCXExtractor pulls the full document text and segments it by word budget.
type DOCXExtractor struct{}

func (*DOCXExtractor) Extract(data []byte) ([]PageText, error) {
	text, _, err := docconv.ConvertDocx(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("convert docx: %w", err)
	}
	return segmentByWords(text, docxWordBudget), nil
}

// segmentByWords buckets whitespace-delimited words into pages of at most
// budget words each. Empty input yields one placeholder page.
func segmentByWords(text string, budget int) []PageText {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []PageText{placeholderPage()}
	}

	var pages []PageText
	for start := 0; start < len(words); start += budget {
		end := start + budget
		if end > len(words) {
			end = len(words)
		}
		chunk := words[start:end]
		pages = append(pages, PageText{
			Content:   strings.Join(chunk, " "),
			WordCount: len(chunk),
		})
	}
	return pages
}
