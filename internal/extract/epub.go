package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/simp-lee/epub"
)

// EPUBExtractor walks the spine in reading order and emits one page per
// chapter. Chapters that fail to load are skipped rather than aborting
// the whole extraction; a book with no readable chapter still yields a
// single placeholder page.
type EPUBExtractor struct{}

func (*EPUBExtractor) Extract(data []byte) ([]PageText, error) {
	book, err := epub.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open epub: %w", err)
	}
	defer book.Close()

	var pages []PageText
	for _, ch := range book.Chapters() {
		text, err := ch.TextContent()
		if err != nil {
			continue
		}
		content := collapseBlankRuns(text)
		if content == "" {
			continue
		}
		pages = append(pages, PageText{Content: content, WordCount: CountWords(content)})
	}

	if len(pages) == 0 {
		return []PageText{placeholderPage()}, nil
	}
	return pages, nil
}

// collapseBlankRuns trims leading/trailing space and collapses runs of
// blank lines, keeping paragraph structure readable.
func collapseBlankRuns(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := true
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
