package pdfdoc

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"github.com/gardar/redactor/pkg/hocr"
	"github.com/gardar/redactor/pkg/layout"
)

// LayoutSource provides the text layout of every page of a PDF, in order.
// Layouts may use any unit as long as their size is set; OpenPDF scales
// each one onto its page.
type LayoutSource interface {
	Layouts(ctx context.Context, path string) ([]*layout.Page, error)
}

// TextLayer reads layouts from the PDF's own text objects. It finds nothing
// on scanned pages without a text layer.
type TextLayer struct{}

// Layouts implements LayoutSource.
func (TextLayer) Layouts(ctx context.Context, path string) ([]*layout.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}
	dims, err := pageDims(path)
	if err != nil {
		return nil, err
	}
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to read text layer: %w", err)
	}

	n := r.NumPage()
	pages := make([]*layout.Page, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var w, h float64
		if i <= len(dims) {
			w, h = dims[i-1].Width, dims[i-1].Height
		}
		texts, err := pageTexts(r.Page(i))
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages[i-1] = textLayout(fillWidths(texts), w, h)
	}
	return pages, nil
}

// pageTexts returns the positioned glyphs of a page. Malformed content
// streams make the reader panic, which is reported as an error.
func pageTexts(p pdf.Page) (texts []pdf.Text, err error) {
	if p.V.IsNull() {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed content stream: %v", r)
		}
	}()
	return p.Content().Text, nil
}

// fillWidths estimates the width of glyphs the reader reported as zero
// wide, which happens for standard fonts without a /Widths array. Such
// glyphs were not advanced either, so a run of them is laid out again from
// its first glyph using the estimated widths.
func fillWidths(texts []pdf.Text) []pdf.Text {
	out := make([]pdf.Text, len(texts))
	for i, t := range texts {
		if t.W == 0 && t.S != "" {
			if i > 0 && texts[i-1].W == 0 && sameRun(texts[i-1], t) {
				prev := out[i-1]
				t.X = prev.X + prev.W + (t.X - texts[i-1].X)
			}
			t.W = glyphWidth(t.Font, t.S, t.FontSize)
		}
		out[i] = t
	}
	return out
}

// sameRun reports whether t continues the text shown with prev without
// being positioned anew.
func sameRun(prev, t pdf.Text) bool {
	if prev.FontSize != t.FontSize || math.Abs(t.Y-prev.Y) > 0.01 {
		return false
	}
	return math.Abs(t.X-prev.X) <= t.FontSize*avgGlyphRatio
}

// Glyph geometry relative to the font size.
const (
	glyphAscent     = 0.8
	glyphDescent    = 0.2
	wordGapRatio    = 0.25
	minRowTolerance = 2.0
)

// textLayout groups glyphs into rows by baseline and rows into words by
// horizontal gaps, converting from PDF space (bottom-left origin) to the
// top-left origin of layout.
func textLayout(texts []pdf.Text, w, h float64) *layout.Page {
	type row struct {
		y     float64
		texts []pdf.Text
	}
	var rows []*row
	for _, t := range texts {
		if t.S == "" {
			continue
		}
		tol := max(minRowTolerance, t.FontSize*0.3)
		var found *row
		for _, r := range rows {
			if t.Y >= r.y-tol && t.Y <= r.y+tol {
				found = r
				break
			}
		}
		if found == nil {
			found = &row{y: t.Y}
			rows = append(rows, found)
		}
		found.texts = append(found.texts, t)
	}

	// Top to bottom = higher Y first
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].y > rows[j].y })

	lines := make([]layout.Line, 0, len(rows))
	for _, r := range rows {
		sort.SliceStable(r.texts, func(i, j int) bool { return r.texts[i].X < r.texts[j].X })

		var (
			words []layout.Word
			cur   strings.Builder
			box   layout.Rect
			right float64
		)
		flush := func() {
			if cur.Len() > 0 {
				words = append(words, layout.Word{Text: cur.String(), Box: box})
			}
			cur.Reset()
		}
		for _, t := range r.texts {
			if strings.TrimFunc(t.S, unicode.IsSpace) == "" {
				flush()
				continue
			}
			if cur.Len() > 0 && t.X-right > t.FontSize*wordGapRatio {
				flush()
			}
			glyph := layout.Rect{
				X0: t.X,
				Y0: h - (t.Y + t.FontSize*glyphAscent),
				X1: t.X + t.W,
				Y1: h - t.Y + t.FontSize*glyphDescent,
			}
			if cur.Len() == 0 {
				box = glyph
			} else {
				box = box.Union(glyph)
			}
			cur.WriteString(t.S)
			right = t.X + t.W
		}
		flush()
		lines = append(lines, layout.Line{Words: words})
	}
	return layout.NewPage(w, h, lines)
}

// HOCRSource serves layouts from parsed hOCR, typically produced by OCR of
// page images rendered from the same PDF.
type HOCRSource struct {
	Doc           hocr.HOCR
	MinConfidence float64 // Words below this confidence are ignored (0 = keep all)
}

// LoadHOCR parses the hOCR file at path.
func LoadHOCR(path string, minConfidence float64) (*HOCRSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read hOCR file: %w", err)
	}
	doc, err := hocr.ParseHOCR(data)
	if err != nil {
		return nil, err
	}
	return &HOCRSource{Doc: doc, MinConfidence: minConfidence}, nil
}

// Layouts implements LayoutSource.
func (s *HOCRSource) Layouts(ctx context.Context, path string) ([]*layout.Page, error) {
	pages := make([]*layout.Page, len(s.Doc.Pages))
	for i, p := range s.Doc.Pages {
		pages[i] = p.Layout(s.MinConfidence)
	}
	return pages, nil
}

// StaticSource serves layouts computed elsewhere.
type StaticSource []*layout.Page

// Layouts implements LayoutSource.
func (s StaticSource) Layouts(ctx context.Context, path string) ([]*layout.Page, error) {
	return s, nil
}
