package gdocai

import (
	"sort"

	"cloud.google.com/go/documentai/apiv1/documentaipb"

	"github.com/gardar/redactor/pkg/layout"
)

// DocumentFromProto converts a Document AI response into page layouts.
// Tokens with a confidence below minConfidence are left out; a token that
// reports no confidence is always kept.
func DocumentFromProto(doc *documentaipb.Document, minConfidence float64) *Document {
	runes := []rune(doc.GetText())
	out := &Document{Raw: doc, Text: doc.GetText()}

	for i, page := range doc.GetPages() {
		num := int(page.GetPageNumber())
		if num == 0 {
			num = i + 1
		}
		w, h := pageSize(page)
		p := &Page{
			Number:   num,
			Width:    w,
			Height:   h,
			Language: pageLanguage(page),
			Layout:   layout.NewPage(w, h, pageLines(page, runes, w, h, minConfidence)),
		}
		if img := page.GetImage(); img != nil {
			p.Image = img.GetContent()
			p.ImageType = img.GetMimeType()
		}
		out.Pages = append(out.Pages, p)
	}

	sort.SliceStable(out.Pages, func(i, j int) bool {
		return out.Pages[i].Number < out.Pages[j].Number
	})
	return out
}

// pageSize prefers the reported dimension and falls back to the page image.
func pageSize(page *documentaipb.Document_Page) (float64, float64) {
	if d := page.GetDimension(); d.GetWidth() > 0 && d.GetHeight() > 0 {
		return float64(d.GetWidth()), float64(d.GetHeight())
	}
	img := page.GetImage()
	return float64(img.GetWidth()), float64(img.GetHeight())
}

// pageLines groups the page's tokens into its lines. Tokens that fall in no
// line are kept, in reading order, on a line of their own.
func pageLines(page *documentaipb.Document_Page, runes []rune, w, h, minConfidence float64) []layout.Line {
	assigned := make([]bool, len(page.GetTokens()))
	var lines []layout.Line

	for _, ln := range page.GetLines() {
		var words []layout.Word
		for ti, tok := range page.GetTokens() {
			if assigned[ti] || !within(tok.GetLayout(), ln.GetLayout()) {
				continue
			}
			assigned[ti] = true
			if wd, ok := tokenWord(tok, runes, w, h, minConfidence); ok {
				words = append(words, wd)
			}
		}
		lines = append(lines, layout.Line{Words: words})
	}

	var rest []layout.Word
	for ti, tok := range page.GetTokens() {
		if assigned[ti] {
			continue
		}
		if wd, ok := tokenWord(tok, runes, w, h, minConfidence); ok {
			rest = append(rest, wd)
		}
	}
	if len(rest) > 0 {
		lines = append(lines, layout.Line{Words: rest})
	}
	return lines
}

func tokenWord(tok *documentaipb.Document_Page_Token, runes []rune, w, h, minConfidence float64) (layout.Word, bool) {
	l := tok.GetLayout()
	if c := float64(l.GetConfidence()); minConfidence > 0 && c > 0 && c < minConfidence {
		return layout.Word{}, false
	}
	box, ok := boundingBox(l, w, h)
	if !ok {
		return layout.Word{}, false
	}
	return layout.Word{Text: tokenText(tok, runes), Box: box}, true
}

// boundingBox converts Document AI coordinates to page pixels.
// Normalized vertices (0-1) are scaled to the page dimension; absolute
// vertices are used as given.
func boundingBox(l *documentaipb.Document_Page_Layout, w, h float64) (layout.Rect, bool) {
	poly := l.GetBoundingPoly()
	var xs, ys []float64
	if nv := poly.GetNormalizedVertices(); len(nv) > 0 {
		for _, v := range nv {
			xs = append(xs, float64(v.GetX())*w)
			ys = append(ys, float64(v.GetY())*h)
		}
	} else {
		for _, v := range poly.GetVertices() {
			xs = append(xs, float64(v.GetX()))
			ys = append(ys, float64(v.GetY()))
		}
	}
	if len(xs) == 0 {
		return layout.Rect{}, false
	}
	r := layout.Rect{X0: xs[0], Y0: ys[0], X1: xs[0], Y1: ys[0]}
	for i := range xs {
		r.X0, r.X1 = min(r.X0, xs[i]), max(r.X1, xs[i])
		r.Y0, r.Y1 = min(r.Y0, ys[i]), max(r.Y1, ys[i])
	}
	return r, !r.IsEmpty()
}

// pageLanguage finds the most common language on the page by counting
// language occurrences across the page and its tokens.
func pageLanguage(page *documentaipb.Document_Page) string {
	langCount := make(map[string]int)
	for _, lang := range page.GetDetectedLanguages() {
		langCount[lang.GetLanguageCode()]++
	}
	for _, tok := range page.GetTokens() {
		for _, lang := range tok.GetDetectedLanguages() {
			langCount[lang.GetLanguageCode()]++
		}
	}

	var best string
	var highest int
	for lang, count := range langCount {
		if lang == "" {
			continue
		}
		if count > highest || (count == highest && lang < best) {
			highest, best = count, lang
		}
	}
	return best
}
