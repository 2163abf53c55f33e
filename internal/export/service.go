package export

import (
	"fmt"
)

// Service renders review sheets into downloadable documents.
type Service struct{}

// NewService creates a new export service
func NewService() *Service {
	return &Service{}
}

// Export renders the sheet as HTML and converts it to the requested format.
func (s *Service) Export(sheet ReviewSheet, format Format) (*Result, error) {
	html, err := RenderSheetHTML(sheet)
	if err != nil {
		return nil, fmt.Errorf("render review sheet: %w", err)
	}

	title := fmt.Sprintf("%s-rev%d", sheet.AssetTitle, sheet.RevisionNumber)
	switch format {
	case FormatPDF:
		return exportPDF(html, title)
	case FormatDOCX:
		return exportDOCX(html, title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// FormatPosition renders an annotation's anchor for the sheet table, e.g.
// "32.5%, 18.0%" or "10.0%, 20.0% (15.0 x 8.0)".
func FormatPosition(kind string, x, y, width, height float64) string {
	if kind == "rect" && (width > 0 || height > 0) {
		return fmt.Sprintf("%.1f%%, %.1f%% (%.1f x %.1f)", x, y, width, height)
	}
	return fmt.Sprintf("%.1f%%, %.1f%%", x, y)
}
