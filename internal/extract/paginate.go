package extract

import (
	"regexp"
	"strings"
)

const (
	// pageCharBudget is the soft character target per page. A single
	// paragraph longer than the budget stays whole on one page.
	pageCharBudget = 2000

	// emptyPageContent marks a page synthesized for input with no text.
	emptyPageContent = "(empty)"
)

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

// Paginate splits raw text into pages on blank-line paragraph boundaries,
// greedily packing paragraphs up to the character budget. It is pure and
// never returns zero pages: empty input yields one placeholder page.
func Paginate(text string) []PageText {
	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return []PageText{{Content: emptyPageContent, WordCount: 0}}
	}

	var pages []PageText
	var buf strings.Builder

	flush := func() {
		content := buf.String()
		pages = append(pages, PageText{Content: content, WordCount: CountWords(content)})
		buf.Reset()
	}

	for _, para := range paragraphs {
		if buf.Len() > 0 && buf.Len()+len(para)+2 > pageCharBudget {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(para)
	}
	if buf.Len() > 0 {
		flush()
	}

	return pages
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range paragraphSplit.Split(text, -1) {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CountWords counts whitespace-delimited non-empty tokens.
func CountWords(s string) int {
	return len(strings.Fields(s))
}
