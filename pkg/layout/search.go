package layout

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Search returns the rectangles covering every occurrence of needle on the
// page, one rectangle per line an occurrence touches. Occurrences do not
// overlap.
//
// Search is looser than an exact substring match:
//
//   - Every occurrence is returned, not only the one a detector found, so a
//     needle that appears twice yields rectangles for both.
//   - Matching ignores case, so "Smith" also covers "SMITH".
//   - Any run of whitespace in needle matches a single word or line break.
//   - A substring that starts or ends inside a word gets a box interpolated
//     from the word's width, assuming glyphs of equal width.
func (p *Page) Search(needle string) []Rect {
	pat := []rune(strings.Join(strings.Fields(norm.NFC.String(needle)), " "))
	if len(pat) == 0 || len(pat) > len(p.runes) {
		return nil
	}

	var rects []Rect
	for i := 0; i+len(pat) <= len(p.runes); {
		if !p.matchAt(i, pat) {
			i++
			continue
		}
		rects = append(rects, p.boxes(i, i+len(pat))...)
		i += len(pat)
	}
	return rects
}

func (p *Page) matchAt(i int, pat []rune) bool {
	for j, r := range pat {
		if !foldEqual(p.runes[i+j], r) {
			return false
		}
	}
	return true
}

func foldEqual(a, b rune) bool {
	if a == b {
		return true
	}
	return unicode.ToLower(a) == unicode.ToLower(b)
}

// boxes covers the rune range [from, to) with one rectangle per line.
func (p *Page) boxes(from, to int) []Rect {
	var (
		rects   []Rect
		cur     Rect
		curLine = -1
	)
	for k := from; k < to; {
		idx := p.owner[k]
		if idx < 0 {
			k++
			continue
		}
		ws := p.spans[idx]
		a, b := max(from, ws.start), min(to, ws.end)
		box := p.partial(ws, a, b)
		if ws.line != curLine {
			if curLine >= 0 {
				rects = append(rects, cur)
			}
			cur, curLine = box, ws.line
		} else {
			cur = cur.Union(box)
		}
		k = b
	}
	if curLine >= 0 {
		rects = append(rects, cur)
	}
	return rects
}

// partial returns the part of the word's box covering runes [a, b),
// assuming glyphs of equal width.
func (p *Page) partial(ws wordSpan, a, b int) Rect {
	box := p.lines[ws.line].Words[ws.word].Box
	n := ws.end - ws.start
	if a == ws.start && b == ws.end || n == 0 {
		return box
	}
	step := box.Width() / float64(n)
	return Rect{
		X0: box.X0 + step*float64(a-ws.start),
		Y0: box.Y0,
		X1: box.X0 + step*float64(b-ws.start),
		Y1: box.Y1,
	}
}
