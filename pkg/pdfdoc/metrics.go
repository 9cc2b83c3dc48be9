package pdfdoc

import (
	"strings"
	"sync"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"
)

// avgGlyphRatio is the glyph width, relative to the font size, assumed when
// a font's metrics are unknown.
const avgGlyphRatio = 0.5

var (
	coreMu     sync.Mutex
	coreTables = make(map[string]*[256]float64)
)

// coreFamily maps a base font name onto one of the standard 14 fonts.
func coreFamily(baseFont string) (family, style string, ok bool) {
	if i := strings.Index(baseFont, "+"); i >= 0 {
		baseFont = baseFont[i+1:]
	}
	name := strings.ToLower(baseFont)
	switch {
	case strings.Contains(name, "courier"):
		family = "courier"
	case strings.Contains(name, "times"):
		family = "times"
	case strings.Contains(name, "helvetica"), strings.Contains(name, "arial"):
		family = "helvetica"
	case strings.Contains(name, "symbol"):
		return "symbol", "", true
	case strings.Contains(name, "zapf"), strings.Contains(name, "dingbat"):
		return "zapfdingbats", "", true
	default:
		return "", "", false
	}
	if strings.Contains(name, "bold") {
		style += "B"
	}
	if strings.Contains(name, "italic") || strings.Contains(name, "oblique") {
		style += "I"
	}
	return family, style, true
}

// coreWidths returns the glyph widths, in 1/1000 text space units, of the
// standard font closest to baseFont, indexed by WinAnsi code.
func coreWidths(baseFont string) (*[256]float64, bool) {
	family, style, ok := coreFamily(baseFont)
	if !ok {
		return nil, false
	}
	key := family + style

	coreMu.Lock()
	defer coreMu.Unlock()
	if t, ok := coreTables[key]; ok {
		return t, true
	}

	p := fpdf.New("P", "pt", "", "")
	p.SetFont(family, style, 12)
	if p.Err() {
		return nil, false
	}
	var t [256]float64
	for c := 1; c < 256; c++ {
		t[c] = float64(p.GetStringSymbolWidth(string([]byte{byte(c)})))
	}
	coreTables[key] = &t
	return &t, true
}

// glyphWidth estimates the width in points of the decoded glyph s set in
// baseFont at size.
func glyphWidth(baseFont, s string, size float64) float64 {
	t, ok := coreWidths(baseFont)
	if !ok {
		return size * avgGlyphRatio * float64(len([]rune(s)))
	}
	b, err := charmap.Windows1252.NewEncoder().Bytes([]byte(s))
	if err != nil || len(b) == 0 {
		return size * avgGlyphRatio
	}
	var w float64
	for _, c := range b {
		if t[c] > 0 {
			w += t[c]
		} else {
			w += avgGlyphRatio * 1000
		}
	}
	return w * size / 1000
}
