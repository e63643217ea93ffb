// Package pdftext turns an uploaded PDF into one concatenated text blob.
// It assumes an extractable text layer (no OCR): a page without one
// simply contributes nothing, only a document that cannot be opened at
// all is an error.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrUnreadable marks a PDF that could not be opened (corrupt,
// encrypted, or not a PDF at all).
var ErrUnreadable = errors.New("documento PDF ilegible")

// Extract returns the text content of every page in page order. A page
// whose text layer fails to extract contributes an empty string; the
// document as a whole only fails when the reader cannot open it. Case
// is preserved — callers uppercase when they want case-insensitive
// matching.
func Extract(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	var sb strings.Builder
	numPages := reader.NumPage()
	for pageNum := 1; pageNum <= numPages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		sb.WriteString(pageText(page))
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// ExtractFirstPage returns only the first page's text, used for the
// description line which is mined from page one of the invoice PDF.
func ExtractFirstPage(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if reader.NumPage() < 1 {
		return "", nil
	}
	page := reader.Page(1)
	if page.V.IsNull() {
		return "", nil
	}
	return pageText(page), nil
}

// pageText extracts one page, degrading to "" on any failure. The
// underlying reader panics on malformed content streams, so the recover
// is load-bearing here.
func pageText(page pdf.Page) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()

	rows, err := page.GetTextByRow()
	if err != nil {
		return ""
	}
	var sb strings.Builder
	for _, row := range rows {
		for i, word := range row.Content {
			if i > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(word.S)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
