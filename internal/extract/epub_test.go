package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"testing"
)

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

// buildEPUB assembles a minimal valid EPUB with one XHTML chapter per
// entry of chapters, in spine order.
func buildEPUB(t *testing.T, chapters []string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	// The mimetype entry must be first and stored uncompressed.
	mt, err := w.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		t.Fatalf("create mimetype: %v", err)
	}
	if _, err := mt.Write([]byte("application/epub+zip")); err != nil {
		t.Fatalf("write mimetype: %v", err)
	}

	addFile := func(name, content string) {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	addFile("META-INF/container.xml", containerXML)

	var manifest, spine strings.Builder
	for i, body := range chapters {
		id := fmt.Sprintf("ch%d", i+1)
		href := id + ".xhtml"
		fmt.Fprintf(&manifest, `<item id=%q href=%q media-type="application/xhtml+xml"/>`, id, href)
		fmt.Fprintf(&spine, `<itemref idref=%q/>`, id)
		addFile("OEBPS/"+href, `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title></title></head><body>`+body+`</body></html>`)
	}

	addFile("OEBPS/content.opf", `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="uid">urn:uuid:00000000-0000-0000-0000-000000000000</dc:identifier>
    <dc:title>Test Book</dc:title>
    <dc:language>en</dc:language>
  </metadata>
  <manifest>`+manifest.String()+`</manifest>
  <spine>`+spine.String()+`</spine>
</package>`)

	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestEPUBExtractor_OnePagePerChapter(t *testing.T) {
	data := buildEPUB(t, []string{
		"<p>Alpha opens the book.</p>",
		"<p>Beta follows in spine order.</p>",
	})

	pages, err := (&EPUBExtractor{}).Extract(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected one page per chapter, got %d", len(pages))
	}
	if !strings.Contains(pages[0].Content, "Alpha") {
		t.Errorf("expected first chapter first, got %q", pages[0].Content)
	}
	if !strings.Contains(pages[1].Content, "Beta") {
		t.Errorf("expected second chapter second, got %q", pages[1].Content)
	}
	for i, p := range pages {
		if p.WordCount == 0 {
			t.Errorf("page %d: expected nonzero word count", i+1)
		}
	}
}

func TestEPUBExtractor_NoReadableChaptersYieldsPlaceholder(t *testing.T) {
	// One spine chapter whose body has no text at all.
	data := buildEPUB(t, []string{""})

	pages, err := (&EPUBExtractor{}).Extract(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected a single placeholder page, got %d", len(pages))
	}
	if pages[0].Content != placeholderContent {
		t.Errorf("expected placeholder content, got %q", pages[0].Content)
	}
}

func TestEPUBExtractor_OpenFailure(t *testing.T) {
	if _, err := (&EPUBExtractor{}).Extract([]byte("not a zip archive")); err == nil {
		t.Fatal("expected error for unreadable epub")
	}
}

func TestCollapseBlankRuns(t *testing.T) {
	in := "Title\n\n\n\nFirst line\nSecond line\n\n\n"
	want := "Title\n\nFirst line\nSecond line"
	if got := collapseBlankRuns(in); got != want {
		t.Errorf("collapseBlankRuns = %q, want %q", got, want)
	}
}
