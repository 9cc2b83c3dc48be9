// Package redact turns detected PII spans into opaque, labeled overlays on
// document pages.
//
// The package does not know how documents are stored. It drives any
// Document through a fixed sequence per page:
//
// - Extract: read the page text
// - Detect: run every configured pii.Detector over the text
// - Merge: resolve overlapping spans with pii.Resolve
// - Plan: locate every rectangle of each merged span and size its label
// - Apply: buffer the planned regions and apply them in one mutation
//
// Planning is read-only and may run for several pages at once; applying is
// serialized per document. After all pages the document is saved to a new
// path and closed on every exit path.
//
// Main Functions:
//
// - NewEngine: Builds an engine from detectors and Options
// - Engine.Process: Redacts every page of an open Document
// - RedactFile: Open, process, save and close in one call
// - FitFontSize: Label sizing for a target rectangle
package redact

import (
	"context"
	"math"
	"unicode/utf8"

	"github.com/gardar/redactor/pkg/layout"
)

// Document is an open, page-addressable document.
//
// PageCount, Page and the read-only methods of Page must be safe for
// concurrent use. AddRedaction and ApplyRedactions are only ever called for
// one page at a time. Close must be safe to call more than once.
type Document interface {
	PageCount() int
	Page(i int) (Page, error)
	Save(path string) error
	Close() error
}

// Page is one page of a Document.
type Page interface {
	// Text returns the page's extracted plain text.
	Text() string
	// Search returns every rectangle where s is rendered on the page.
	Search(s string) []layout.Rect
	// AddRedaction buffers a region without touching page content.
	AddRedaction(r Region)
	// ApplyRedactions destructively applies all buffered regions. Text and
	// Search results obtained before the call are invalid afterwards.
	ApplyRedactions() error
}

// Opener opens the document at path.
type Opener func(ctx context.Context, path string) (Document, error)

// Region is a rectangle to black out and the placeholder drawn over it.
type Region struct {
	Rect     layout.Rect
	Label    string
	FontSize int
}

// Label returns the placeholder text for a category.
func Label(category string) string {
	return "[" + category + "]"
}

const (
	glyphWidthRatio = 0.7 // average glyph width per point of font size
	heightBudget    = 0.9 // share of the rectangle height the label may use
	minFontSize     = 1
)

// FitFontSize returns the largest integer font size at which label is
// expected to fit inside r, never less than 1.
func FitFontSize(r layout.Rect, label string) int {
	n := utf8.RuneCountInString(label)
	if n == 0 {
		n = 1
	}
	byWidth := r.Width() / (float64(n) * glyphWidthRatio)
	byHeight := r.Height() * heightBudget

	size := math.Floor(math.Min(byWidth, byHeight))
	if math.IsNaN(size) || size < minFontSize {
		return minFontSize
	}
	return int(size)
}
