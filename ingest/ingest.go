// Package ingest extracts profile context from uploaded documents (resume
// PDFs, plain-text bios) so the identity recognizer can use them as extra
// recognition context.
package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extractor converts raw document content to plain text.
type Extractor interface {
	Extract(content []byte) (string, error)
}

// ContentType identifies the MIME type of content for extraction.
type ContentType string

const (
	TypePlainText ContentType = "text/plain"
	TypePDF       ContentType = "application/pdf"
)

// ContentTypeFromExtension maps file extensions to content types.
func ContentTypeFromExtension(ext string) ContentType {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "pdf":
		return TypePDF
	default:
		return TypePlainText
	}
}

// ForType returns the extractor for a content type.
func ForType(ct ContentType) Extractor {
	if ct == TypePDF {
		return NewPDFExtractor()
	}
	return NewTextExtractor()
}

// Compile-time interface checks.
var _ Extractor = (*PDFExtractor)(nil)
var _ Extractor = (*TextExtractor)(nil)

// PDFExtractor implements Extractor for PDF documents.
type PDFExtractor struct{}

// NewPDFExtractor creates a PDF extractor.
func NewPDFExtractor() *PDFExtractor { return &PDFExtractor{} }

// Extract extracts plain text from a PDF document, page by page.
func (e *PDFExtractor) Extract(content []byte) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("empty PDF content")
	}
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	var text strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(pageText)
	}
	return strings.TrimSpace(text.String()), nil
}

// TextExtractor implements Extractor for plain text; it normalizes line
// endings and trims control noise.
type TextExtractor struct{}

// NewTextExtractor creates a plain-text extractor.
func NewTextExtractor() *TextExtractor { return &TextExtractor{} }

// Extract returns the content with normalized line endings.
func (e *TextExtractor) Extract(content []byte) (string, error) {
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	return strings.TrimSpace(text), nil
}

// ProfileContext extracts a document and condenses it into recognition
// context: the first maxChars characters of extracted text.
func ProfileContext(content []byte, ct ContentType, maxChars int) (string, error) {
	text, err := ForType(ct).Extract(content)
	if err != nil {
		return "", err
	}
	if maxChars > 0 && len(text) > maxChars {
		text = text[:maxChars]
	}
	return text, nil
}
