// Package material reads uploaded study files (PDF or plain text) into the
// prompt text the transcript generator works from. Extraction is best-effort:
// one unreadable file yields an error-marker string instead of failing the job.
package material

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrorMarker is embedded in the combined text for files that could not be
// read, so the model still sees that a source existed.
func ErrorMarker(name string) string {
	return fmt.Sprintf("[Error extracting text from %s]", name)
}

// ExtractFile returns the text content of one material file. PDF files go
// through the pdf reader; anything else is treated as plain text.
func ExtractFile(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(path)
	default:
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		return string(b), nil
	}
}

// ExtractDir concatenates the extracted text of every regular file in dir,
// in name order, each section prefixed with its file name. Unreadable files
// contribute an error marker and are logged, never fatal.
func ExtractDir(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read materials dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		text, err := ExtractFile(filepath.Join(dir, name))
		if err != nil {
			log.Printf("material: %v", err)
			text = ErrorMarker(name)
		}
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", name, strings.TrimSpace(text))
	}
	return b.String(), nil
}

func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf %s: %w", filepath.Base(path), err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text %s: %w", filepath.Base(path), err)
	}
	return buf.String(), nil
}
