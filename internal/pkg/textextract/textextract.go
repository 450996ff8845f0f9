package textextract

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extractor adapts the package-level Extract function to the interface shape
// services consume.
type Extractor struct{}

func (Extractor) Extract(r io.Reader, filename string) (string, error) {
	return Extract(r, filename)
}

// Extract reads the full content of r and returns its plain text. The format
// is picked from the filename extension: PDFs go through the pdf reader,
// anything else is treated as already-plain text.
func Extract(r io.Reader, filename string) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read document content failed: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".pdf" {
		return extractPDF(b)
	}
	return string(b), nil
}

func extractPDF(b []byte) (string, error) {
	if len(b) == 0 {
		return "", nil
	}
	pdfReader, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", fmt.Errorf("open pdf failed: %w", err)
	}
	plainReader, err := pdfReader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text failed: %w", err)
	}
	out, err := io.ReadAll(plainReader)
	if err != nil {
		return "", fmt.Errorf("read pdf text failed: %w", err)
	}
	return string(out), nil
}
