package extract

import (
	"testing"

	"github.com/folio-labs/folio-core/internal/core/domain"
)

func TestForFormat_ClosedSet(t *testing.T) {
	cases := []struct {
		format domain.Format
		want   Extractor
	}{
		{domain.FormatText, &TextExtractor{}},
		{domain.FormatPDF, &PDFExtractor{}},
		{domain.FormatEPUB, &EPUBExtractor{}},
		{domain.FormatDOCX, &DOCXExtractor{}},
	}
	for _, c := range cases {
		got := ForFormat(c.format)
		if got == nil {
			t.Fatalf("format %s: nil extractor", c.format)
		}
		if _, fallback := got.(*fallbackExtractor); fallback {
			t.Errorf("format %s: unexpected fallback extractor", c.format)
		}
	}
}

func TestForFormat_UnknownProducesPlaceholderPage(t *testing.T) {
	ex := ForFormat(domain.Format("MOBI"))

	pages, err := ex.Extract([]byte("whatever"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected exactly 1 page, got %d", len(pages))
	}
	if pages[0].Content != placeholderContent {
		t.Errorf("expected placeholder content, got %q", pages[0].Content)
	}
}

func TestTextExtractor(t *testing.T) {
	ex := &TextExtractor{}

	pages, err := ex.Extract([]byte("Hello world"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 || pages[0].Content != "Hello world" {
		t.Errorf("unexpected pages: %+v", pages)
	}

	// Empty file still yields one page.
	pages, err = ex.Extract(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 {
		t.Errorf("expected 1 placeholder page for empty file, got %d", len(pages))
	}

	// Invalid UTF-8 is an unrecoverable extraction error.
	if _, err := ex.Extract([]byte{0xff, 0xfe, 0xfd}); err == nil {
		t.Error("expected error for invalid UTF-8")
	}
}
