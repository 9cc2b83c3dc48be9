// Package layout models the rendered text of a page as lines of positioned
// words. It produces the plain text handed to detectors and maps substrings
// of that text back to rectangles on the page.
//
// Coordinates use a top-left origin with y growing downwards, in whatever
// unit the producer chose (pixels for OCR output, points for PDF text).
package layout

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Rect is an axis-aligned rectangle with a top-left origin.
type Rect struct {
	X0, Y0 float64 // top-left corner
	X1, Y1 float64 // bottom-right corner
}

// Width returns the horizontal extent of r.
func (r Rect) Width() float64 { return r.X1 - r.X0 }

// Height returns the vertical extent of r.
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// IsEmpty reports whether r has no area.
func (r Rect) IsEmpty() bool { return r.X1 <= r.X0 || r.Y1 <= r.Y0 }

// Union returns the smallest rectangle containing r and o.
func (r Rect) Union(o Rect) Rect {
	if r.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return r
	}
	return Rect{
		X0: min(r.X0, o.X0),
		Y0: min(r.Y0, o.Y0),
		X1: max(r.X1, o.X1),
		Y1: max(r.Y1, o.Y1),
	}
}

// Intersects reports whether r and o share a non-empty area.
func (r Rect) Intersects(o Rect) bool {
	return r.X0 < o.X1 && o.X0 < r.X1 && r.Y0 < o.Y1 && o.Y0 < r.Y1
}

// Scale multiplies every coordinate by sx horizontally and sy vertically.
func (r Rect) Scale(sx, sy float64) Rect {
	return Rect{X0: r.X0 * sx, Y0: r.Y0 * sy, X1: r.X1 * sx, Y1: r.Y1 * sy}
}

// Word is a run of non-space text drawn inside Box.
type Word struct {
	Text string
	Box  Rect
}

// Line is a sequence of words read left to right.
type Line struct {
	Words []Word
}

// Page is an immutable text layout. It is safe for concurrent use.
type Page struct {
	width  float64
	height float64
	lines  []Line

	text  string
	runes []rune // search view of text: line breaks folded to spaces
	owner []int  // per rune: index into spans, -1 for separators
	spans []wordSpan
}

// wordSpan locates one word in the rune view of the page text.
type wordSpan struct {
	line, word int
	start, end int
}

// NewPage builds a layout of the given size. Word text is normalized to NFC
// and whitespace inside a word is removed; words that end up empty and
// lines without words are dropped.
func NewPage(width, height float64, lines []Line) *Page {
	p := &Page{width: width, height: height}
	for _, ln := range lines {
		var words []Word
		for _, w := range ln.Words {
			txt := strings.Join(strings.Fields(norm.NFC.String(w.Text)), "")
			if txt == "" {
				continue
			}
			words = append(words, Word{Text: txt, Box: w.Box})
		}
		if len(words) > 0 {
			p.lines = append(p.lines, Line{Words: words})
		}
	}
	p.index()
	return p
}

func (p *Page) index() {
	var b strings.Builder
	for li, ln := range p.lines {
		if li > 0 {
			b.WriteByte('\n')
			p.runes = append(p.runes, ' ')
			p.owner = append(p.owner, -1)
		}
		for wi, w := range ln.Words {
			if wi > 0 {
				b.WriteByte(' ')
				p.runes = append(p.runes, ' ')
				p.owner = append(p.owner, -1)
			}
			b.WriteString(w.Text)
			idx := len(p.spans)
			start := len(p.runes)
			for _, r := range w.Text {
				p.runes = append(p.runes, r)
				p.owner = append(p.owner, idx)
			}
			p.spans = append(p.spans, wordSpan{line: li, word: wi, start: start, end: len(p.runes)})
		}
	}
	p.text = b.String()
}

// Width returns the page width.
func (p *Page) Width() float64 { return p.width }

// Height returns the page height.
func (p *Page) Height() float64 { return p.height }

// Lines returns the lines of the page. The slice must not be modified.
func (p *Page) Lines() []Line { return p.lines }

// Text returns the page text: words separated by a space, lines by "\n".
func (p *Page) Text() string { return p.text }

// Without returns a copy of the page lacking every word whose box
// intersects one of rects.
func (p *Page) Without(rects []Rect) *Page {
	lines := make([]Line, 0, len(p.lines))
	for _, ln := range p.lines {
		var words []Word
	next:
		for _, w := range ln.Words {
			for _, r := range rects {
				if w.Box.Intersects(r) {
					continue next
				}
			}
			words = append(words, w)
		}
		lines = append(lines, Line{Words: words})
	}
	return NewPage(p.width, p.height, lines)
}

// Scale returns a copy of the page with all coordinates multiplied by sx
// and sy, used to move OCR pixel layouts into PDF point space.
func (p *Page) Scale(sx, sy float64) *Page {
	lines := make([]Line, len(p.lines))
	for i, ln := range p.lines {
		words := make([]Word, len(ln.Words))
		for j, w := range ln.Words {
			words[j] = Word{Text: w.Text, Box: w.Box.Scale(sx, sy)}
		}
		lines[i] = Line{Words: words}
	}
	return NewPage(p.width*sx, p.height*sy, lines)
}
