package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docqa/internal/config"

	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
)

type zipEntry struct {
	name, body string
}

func writeZip(t *testing.T, path string, entries []zipEntry) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatalf("zip entry %s: %v", e.name, err)
		}
		if _, err := w.Write([]byte(e.body)); err != nil {
			t.Fatalf("zip write %s: %v", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
}

// writePDF writes an uncompressed PDF with one Helvetica text line per page.
func writePDF(t *testing.T, path string, pageTexts []string) {
	t.Helper()
	n := len(pageTexts)
	fontObj := 3 + 2*n
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
	}
	var kids []string
	for i := range pageTexts {
		kids = append(kids, fmt.Sprintf("%d 0 R", 3+2*i))
	}
	objects = append(objects, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n))
	for i, text := range pageTexts {
		content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>", fontObj, 4+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
}

func TestLoadDocumentPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manual.pdf")
	writePDF(t, path, []string{"Warranty lasts two years", "Returns need a receipt"})

	pages, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	if pages[0].Number != 1 || !strings.Contains(pages[0].Content, "Warranty lasts two years") {
		t.Fatalf("unexpected first page %+v", pages[0])
	}
	if pages[1].Number != 2 || !strings.Contains(pages[1].Content, "Returns need a receipt") {
		t.Fatalf("unexpected second page %+v", pages[1])
	}

	chunks, err := ParseFile(path, config.RAGConfig{Splitter: config.SplitterWindow, ChunkSize: 100, ChunkOverlap: 20})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(chunks) != 2 || chunks[1].PageNumber != 2 || chunks[1].Source != "manual.pdf" {
		t.Fatalf("unexpected chunks %+v", chunks)
	}
}

func TestLoadDocumentDOCX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "letter.docx")
	writeZip(t, path, []zipEntry{
		{"word/document.xml", `<w:document><w:body><w:p><w:r><w:t>Dear customer,</w:t></w:r></w:p>` +
			`<w:p><w:r><w:t xml:space="preserve">your order shipped.</w:t></w:r><w:tab/></w:p></w:body></w:document>`},
		{"word/_rels/document.xml.rels", `<Relationships></Relationships>`},
	})

	pages, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(pages) != 1 || pages[0].Number != 1 {
		t.Fatalf("expected a single page, got %+v", pages)
	}
	if got := strings.TrimSpace(pages[0].Content); got != "Dear customer, your order shipped." {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestLoadDocumentPPTXOrdersSlides(t *testing.T) {
	slide := func(text string) string {
		return `<p:sld><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
	}
	path := filepath.Join(t.TempDir(), "deck.pptx")
	writeZip(t, path, []zipEntry{
		{"ppt/slides/slide10.xml", slide("Tenth slide")},
		{"ppt/slides/slide2.xml", slide("Second slide")},
		{"ppt/slides/_rels/slide2.xml.rels", `<Relationships></Relationships>`},
		{"ppt/slides/slide1.xml", slide("First slide")},
		{"ppt/slides/slide3.xml", `<p:sld></p:sld>`},
	})

	pages, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []struct {
		number int
		text   string
	}{{1, "First slide"}, {2, "Second slide"}, {10, "Tenth slide"}}
	if len(pages) != len(want) {
		t.Fatalf("expected %d pages, got %+v", len(want), pages)
	}
	for i, w := range want {
		if pages[i].Number != w.number || strings.TrimSpace(pages[i].Content) != w.text {
			t.Fatalf("page %d: expected %d %q, got %+v", i, w.number, w.text, pages[i])
		}
	}
}

func TestLoadDocumentXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.xlsx")
	file := xlsx.NewFile()
	for _, sheet := range []struct {
		name  string
		cells []string
	}{
		{"Summary", []string{"revenue", "42"}},
		{"Regions", []string{"north", "south"}},
	} {
		s, err := file.AddSheet(sheet.name)
		if err != nil {
			t.Fatalf("add sheet: %v", err)
		}
		row := s.AddRow()
		for _, v := range sheet.cells {
			row.AddCell().SetString(v)
		}
	}
	if err := file.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	pages, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected one page per sheet, got %d", len(pages))
	}
	if pages[0].Number != 1 || !strings.Contains(pages[0].Content, "## Sheet: Summary") || !strings.Contains(pages[0].Content, "revenue\t42") {
		t.Fatalf("unexpected first sheet %q", pages[0].Content)
	}
	if pages[1].Number != 2 || !strings.Contains(pages[1].Content, "north\tsouth") {
		t.Fatalf("unexpected second sheet %q", pages[1].Content)
	}
}

func TestLoadDocumentSpreadsheetByExcelize(t *testing.T) {
	dir := t.TempDir()
	f := excelize.NewFile()
	if err := f.SetCellValue("Sheet1", "A1", "alpha"); err != nil {
		t.Fatalf("set cell: %v", err)
	}
	if _, err := f.NewSheet("Totals"); err != nil {
		t.Fatalf("new sheet: %v", err)
	}
	if err := f.SetCellValue("Totals", "B2", "beta"); err != nil {
		t.Fatalf("set cell: %v", err)
	}
	// excelize only saves under OOXML extensions; the reader does not check.
	saved := filepath.Join(dir, "book.xlsx")
	if err := f.SaveAs(saved); err != nil {
		t.Fatalf("save: %v", err)
	}
	f.Close()
	path := filepath.Join(dir, "book.ods")
	if err := os.Rename(saved, path); err != nil {
		t.Fatalf("rename: %v", err)
	}

	pages, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected one page per sheet, got %d", len(pages))
	}
	if pages[0].Number != 1 || !strings.Contains(pages[0].Content, "## Sheet: Sheet1") || !strings.Contains(pages[0].Content, "alpha") {
		t.Fatalf("unexpected first sheet %q", pages[0].Content)
	}
	if pages[1].Number != 2 || !strings.Contains(pages[1].Content, "## Sheet: Totals") || !strings.Contains(pages[1].Content, "beta") {
		t.Fatalf("unexpected second sheet %q", pages[1].Content)
	}
}
