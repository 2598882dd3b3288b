package parser

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"docqa/internal/config"
	"docqa/internal/models"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
)

const defaultPageNumber = 1

// SupportedExtensions lists the file types LoadDocument understands.
var SupportedExtensions = []string{".pdf", ".docx", ".pptx", ".xlsx", ".ods", ".md", ".txt"}

// ParseFile loads the document at filePath and splits every page with the
// configured splitter. Chunks keep page order.
func ParseFile(filePath string, cfg config.RAGConfig) ([]models.Chunk, error) {
	pages, err := LoadDocument(filePath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filePath, err)
	}

	splitter, err := NewSplitter(cfg)
	if err != nil {
		return nil, err
	}

	chunks, err := SplitPages(splitter, filepath.Base(filePath), pages)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", filePath, err)
	}

	log.Debug().
		Str("file", filePath).
		Int("pages", len(pages)).
		Int("chunks", len(chunks)).
		Msg("Parsed document")
	return chunks, nil
}

// LoadDocument extracts the text of a document page by page.
func LoadDocument(filePath string) ([]models.Page, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".pdf":
		return parsePDF(filePath)
	case ".docx":
		return parseDOCX(filePath)
	case ".pptx":
		return parsePPTX(filePath)
	case ".xlsx":
		return parseXLSX(filePath)
	case ".ods":
		return parseODS(filePath)
	case ".md":
		return parseMarkdown(filePath)
	case ".txt":
		return parseText(filePath)
	default:
		return nil, fmt.Errorf("unsupported file format: %q", ext)
	}
}

func parsePDF(filePath string) ([]models.Page, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	var pages []models.Page
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, models.Page{Number: i, Content: pageText})
	}
	return pages, nil
}

func parseDOCX(filePath string) ([]models.Page, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	// GetContent returns raw document XML; keep only the text runs
	content := extractTextFromXML(r.Editable().GetContent(), "<w:t", "</w:t>")
	return singlePage(content), nil
}

func parsePPTX(filePath string) ([]models.Page, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []models.Page
	for _, file := range f.File {
		slideNum, ok := slideNumber(file.Name)
		if !ok {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		slideText := extractTextFromXML(string(data), "<a:t", "</a:t>")
		if strings.TrimSpace(slideText) != "" {
			pages = append(pages, models.Page{Number: slideNum, Content: slideText})
		}
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	return pages, nil
}

// slideNumber parses N out of ppt/slides/slideN.xml.
func slideNumber(name string) (int, bool) {
	const prefix = "ppt/slides/slide"
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".xml") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".xml"))
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseXLSX(filePath string) ([]models.Page, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, err
	}

	var pages []models.Page
	for sheetNum, sheet := range f.Sheets {
		var text strings.Builder
		fmt.Fprintf(&text, "## Sheet: %s\n", sheet.Name)
		for _, row := range sheet.Rows {
			for _, cell := range row.Cells {
				text.WriteString(cell.String() + "\t")
			}
			text.WriteString("\n")
		}
		pages = append(pages, models.Page{Number: sheetNum + 1, Content: text.String()})
	}
	return pages, nil
}

func parseODS(filePath string) ([]models.Page, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []models.Page
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheetName, err)
		}
		var text strings.Builder
		fmt.Fprintf(&text, "## Sheet: %s\n", sheetName)
		for _, row := range rows {
			for _, cell := range row {
				text.WriteString(cell + "\t")
			}
			text.WriteString("\n")
		}
		pages = append(pages, models.Page{Number: sheetNum + 1, Content: text.String()})
	}
	return pages, nil
}

func parseMarkdown(filePath string) ([]models.Page, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return singlePage(markdownToText(data)), nil
}

func parseText(filePath string) ([]models.Page, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return singlePage(string(data)), nil
}

func singlePage(content string) []models.Page {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	return []models.Page{{Number: defaultPageNumber, Content: content}}
}

// extractTextFromXML concatenates the bodies of every open...close element.
// open is given without its closing bracket so attributes are tolerated.
func extractTextFromXML(xmlContent, open, close string) string {
	var text strings.Builder
	parts := strings.Split(xmlContent, open)
	for i, part := range parts {
		if i == 0 {
			continue
		}
		// skip look-alike tags such as <a:tab> or <w:tbl>
		if part == "" || (part[0] != '>' && part[0] != ' ') {
			continue
		}
		startIdx := strings.Index(part, ">")
		endIdx := strings.Index(part, close)
		if startIdx >= 0 && endIdx > startIdx {
			text.WriteString(part[startIdx+1:endIdx] + " ")
		}
	}
	return text.String()
}
