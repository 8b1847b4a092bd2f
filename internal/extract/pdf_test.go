package extract

import (
	"strings"
	"testing"
)

func TestAssemblePDFPages_MixedTextAndScanned(t *testing.T) {
	// Page 1 has a text layer, page 2 is scanned (no text).
	pages := assemblePDFPages([]string{"Hello  world", ""})

	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	if pages[0].Content != "Hello world" {
		t.Errorf("expected normalized text, got %q", pages[0].Content)
	}
	if pages[0].WordCount != 2 {
		t.Errorf("expected 2 words, got %d", pages[0].WordCount)
	}
	if !strings.Contains(pages[1].Content, "non-text content") {
		t.Errorf("expected non-text placeholder on page 2, got %q", pages[1].Content)
	}
	if pages[1].WordCount != 0 {
		t.Errorf("expected 0 words for placeholder, got %d", pages[1].WordCount)
	}
}

func TestAssemblePDFPages_AllScanned(t *testing.T) {
	// A fully scanned document still emits one page per physical page.
	pages := assemblePDFPages([]string{"", "  ", "\n"})
	if len(pages) != 3 {
		t.Fatalf("expected 3 placeholder pages, got %d", len(pages))
	}
	for i, p := range pages {
		if p.Content != placeholderContent {
			t.Errorf("page %d: expected placeholder, got %q", i+1, p.Content)
		}
	}
}

func TestAssemblePDFPages_NoPages(t *testing.T) {
	pages := assemblePDFPages(nil)
	if len(pages) != 1 {
		t.Fatalf("expected 1 page for empty document, got %d", len(pages))
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"  a   b\tc\nd  ", "a b c d"},
		{"already clean", "already clean"},
	}
	for _, c := range cases {
		if got := normalizeWhitespace(c.in); got != c.want {
			t.Errorf("normalizeWhitespace(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
