// Package extract pulls plain text out of uploaded documents.
package extract

import (
	"path/filepath"
	"strings"

	"github.com/zombar/truthlens/internal/models"
)

// Format is a supported document type
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatTXT  Format = "txt"
)

// FormatOf returns the format for a file name's extension
func FormatOf(filename string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FormatPDF, true
	case ".docx":
		return FormatDOCX, true
	case ".txt":
		return FormatTXT, true
	default:
		return "", false
	}
}

// Text extracts the text of an uploaded file. The format is chosen by
// extension. An empty upload is insufficient content, an unknown extension is
// an UnsupportedFormatError and a reader failure is an ExtractionError.
func Text(filename string, content []byte) (string, error) {
	if len(content) == 0 {
		return "", &models.InsufficientContentError{Reason: "empty file"}
	}

	format, ok := FormatOf(filename)
	if !ok {
		return "", &models.UnsupportedFormatError{Filename: filename}
	}

	var (
		text string
		err  error
	)
	switch format {
	case FormatPDF:
		text, err = pdfText(content)
	case FormatDOCX:
		text, err = docxText(content)
	case FormatTXT:
		text = plainText(content)
	}
	if err != nil {
		return "", &models.ExtractionError{Format: string(format), Err: err}
	}
	return text, nil
}
