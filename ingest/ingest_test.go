package ingest

import (
	"strings"
	"testing"
)

func TestContentTypeFromExtension(t *testing.T) {
	tests := []struct {
		ext  string
		want ContentType
	}{
		{".pdf", TypePDF},
		{"PDF", TypePDF},
		{".txt", TypePlainText},
		{"", TypePlainText},
		{".docx", TypePlainText},
	}
	for _, tt := range tests {
		if got := ContentTypeFromExtension(tt.ext); got != tt.want {
			t.Errorf("ContentTypeFromExtension(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}

func TestTextExtractorNormalizes(t *testing.T) {
	e := NewTextExtractor()
	got, err := e.Extract([]byte("line one\r\nline two\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got != "line one\nline two" {
		t.Errorf("Extract = %q", got)
	}
}

func TestPDFExtractorRejectsEmpty(t *testing.T) {
	e := NewPDFExtractor()
	if _, err := e.Extract(nil); err == nil {
		t.Error("empty content must error")
	}
}

func TestPDFExtractorRejectsGarbage(t *testing.T) {
	e := NewPDFExtractor()
	if _, err := e.Extract([]byte("not a pdf at all")); err == nil {
		t.Error("non-PDF content must error")
	}
}

func TestProfileContextTruncates(t *testing.T) {
	content := []byte(strings.Repeat("army veteran resume ", 50))
	got, err := ProfileContext(content, TypePlainText, 40)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 40 {
		t.Errorf("len = %d, want 40", len(got))
	}
	if !strings.HasPrefix(got, "army veteran resume") {
		t.Errorf("got = %q", got)
	}
}

func TestProfileContextUnlimited(t *testing.T) {
	got, err := ProfileContext([]byte("short bio"), TypePlainText, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != "short bio" {
		t.Errorf("got = %q", got)
	}
}
