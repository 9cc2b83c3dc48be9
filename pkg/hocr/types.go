package hocr

import "github.com/gardar/redactor/pkg/layout"

// HOCR represents the entire hOCR document structure
type HOCR struct {
	Title    string            // Document title
	Language string            // Document language
	Metadata map[string]string // ocr-system, ocr-capabilities, ...
	Pages    []Page            // Pages in the document
}

// Page is one page of recognized text
// Corresponds to hOCR element with class: 'ocr_page'
type Page struct {
	ID         string      // Unique identifier
	PageNumber int         // Physical page number (ppageno), 0-based when present
	ImageName  string      // Source image filename
	BBox       BoundingBox // Page coordinates
	Lines      []Line      // All lines of the page in document order
}

// Line represents a line of text
// Corresponds to hOCR elements with class: 'ocr_line', 'ocr_header', 'ocr_caption', ...
type Line struct {
	ID    string      // Unique identifier
	BBox  BoundingBox // Line coordinates
	Words []Word      // Words in this line
}

// Word is a recognized word with bounding box
// Corresponds to hOCR element with class: 'ocrx_word'
type Word struct {
	ID         string      // Unique identifier
	Text       string      // The actual text content
	BBox       BoundingBox // Word coordinates
	Confidence float64     // Recognition confidence (0-100)
}

// BoundingBox represents a rectangle in the document
// Used to store hOCR 'bbox' property values
type BoundingBox struct {
	X1 float64 // Left coordinate
	Y1 float64 // Top coordinate
	X2 float64 // Right coordinate
	Y2 float64 // Bottom coordinate
}

// Rect converts the box into a layout rectangle.
func (b BoundingBox) Rect() layout.Rect {
	return layout.Rect{X0: b.X1, Y0: b.Y1, X1: b.X2, Y1: b.Y2}
}

// Layout converts the page into a searchable text layout in the page's
// pixel coordinate space. Words below minConfidence are left out; pass 0
// to keep everything.
func (p Page) Layout(minConfidence float64) *layout.Page {
	lines := make([]layout.Line, 0, len(p.Lines))
	for _, ln := range p.Lines {
		words := make([]layout.Word, 0, len(ln.Words))
		for _, w := range ln.Words {
			if minConfidence > 0 && w.Confidence > 0 && w.Confidence < minConfidence {
				continue
			}
			words = append(words, layout.Word{Text: w.Text, Box: w.BBox.Rect()})
		}
		lines = append(lines, layout.Line{Words: words})
	}
	return layout.NewPage(p.BBox.X2-p.BBox.X1, p.BBox.Y2-p.BBox.Y1, lines)
}
