// Package export renders annotated review sheets as PDF and DOCX.
package export

import (
	"errors"
	"html/template"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// SheetAnnotation is one row of the review sheet's annotation table. Index
// matches the numbered marker in the overlay.
type SheetAnnotation struct {
	Index     int
	Kind      string
	Author    string
	Comment   string
	Position  string
	CreatedAt time.Time
}

// ReviewSheet is everything needed to render one revision's review sheet.
// OverlaySVG is the pre-rendered annotation overlay; the media image sits
// behind it in the template.
type ReviewSheet struct {
	AssetTitle     string
	Campaign       string
	Category       string
	Status         string
	RevisionNumber int
	MediaURL       string
	OverlaySVG     template.HTML
	Annotations    []SheetAnnotation
	GeneratedAt    time.Time
	GeneratedBy    string
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
