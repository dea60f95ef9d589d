package ingest

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// Extractor reads the text of one document format.
type Extractor interface {
	Supports(name string, data []byte) bool
	Extract(data []byte) ([]Page, error)
}

var pdfMagic = []byte("%PDF-")

// PDFExtractor extracts plain text per page with ledongthuc/pdf.
type PDFExtractor struct{}

// Supports reports whether the file is a PDF by extension or header.
func (PDFExtractor) Supports(name string, data []byte) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf") || bytes.HasPrefix(data, pdfMagic)
}

// Extract returns the non-empty pages. Pages that fail to decode are skipped.
func (PDFExtractor) Extract(data []byte) (pages []Page, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	rdr, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	n := rdr.NumPage()
	pages = make([]Page, 0, n)
	for i := 1; i <= n; i++ {
		pg := rdr.Page(i)
		if pg.V.IsNull() {
			continue
		}
		txt, err := pg.GetPlainText(nil)
		if err != nil {
			// Image-only or problematic page
			continue
		}
		if s := strings.TrimSpace(txt); s != "" {
			pages = append(pages, Page{Number: i, Text: s})
		}
	}
	return pages, nil
}

// TextExtractor reads UTF-8 plain text and markdown.
type TextExtractor struct{}

var textExtensions = map[string]bool{
	".txt":      true,
	".text":     true,
	".md":       true,
	".markdown": true,
}

// Supports reports whether the file has a plain text extension.
func (TextExtractor) Supports(name string, _ []byte) bool {
	return textExtensions[strings.ToLower(filepath.Ext(name))]
}

// Extract returns the whole file as a single unnumbered page.
func (TextExtractor) Extract(data []byte) ([]Page, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("file is not valid UTF-8")
	}
	text := strings.TrimSpace(strings.ReplaceAll(string(data), "\r\n", "\n"))
	if text == "" {
		return nil, nil
	}
	return []Page{{Number: 0, Text: text}}, nil
}

// DefaultExtractors returns the PDF and text extractors.
func DefaultExtractors() []Extractor {
	return []Extractor{PDFExtractor{}, TextExtractor{}}
}
