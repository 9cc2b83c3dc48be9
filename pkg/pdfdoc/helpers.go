package pdfdoc

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/gardar/redactor/pkg/layout"
)

// normalizeCoords rescales a layout's coords to the target page coords.
func normalizeCoords(x, y, srcW, srcH, dstW, dstH float64) (float64, float64) {
	nx := (x / srcW) * dstW
	ny := (y / srcH) * dstH
	return nx, ny
}

// fitLayout scales lp onto a page of the given size. A layout without a
// size is assumed to be in page units already.
func fitLayout(lp *layout.Page, w, h float64) *layout.Page {
	if lp == nil {
		return layout.NewPage(w, h, nil)
	}
	if lp.Width() <= 0 || lp.Height() <= 0 {
		return layout.NewPage(w, h, lp.Lines())
	}
	sx, sy := normalizeCoords(1, 1, lp.Width(), lp.Height(), w, h)
	return lp.Scale(sx, sy)
}

// latin1 encodes s for the core PDF fonts, replacing characters they
// cannot show.
func latin1(s string) string {
	enc := encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder())
	out, err := enc.String(s)
	if err != nil {
		return s
	}
	return out
}

func unescapePDFString(s string) string {
	s = strings.ReplaceAll(s, "\\(", "(")
	s = strings.ReplaceAll(s, "\\)", ")")
	s = strings.ReplaceAll(s, "\\\\", "\\")
	return s
}

func decodeUTF16BE(b []byte) (string, error) {
	if len(b) < 2 {
		return "", fmt.Errorf("input too short for UTF-16BE")
	}
	if b[0] != 0xFE || b[1] != 0xFF {
		return "", fmt.Errorf("no BOM detected, cannot confirm UTF-16BE")
	}
	b = b[2:]
	runes := make([]rune, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		runes = append(runes, rune(uint16(b[i])<<8|uint16(b[i+1])))
	}
	return string(runes), nil
}

// detectImageType tries to figure out whether the data is PNG, JPEG, etc.
func detectImageType(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image config: %w", err)
	}
	return strings.ToUpper(format), nil
}

// logLayerContext logs the bytes around the first optional content group
// reference, which is where layer names live.
func logLayerContext(log *slog.Logger, pdfData []byte) {
	idx := bytes.Index(pdfData, []byte("/OCG"))
	if idx < 0 {
		log.Debug("no optional content groups in PDF")
		return
	}
	start := max(idx-20, 0)
	end := min(idx+100, len(pdfData))
	log.Debug("optional content group context", "offset", idx, "bytes", string(pdfData[start:end]))
}
