package gdocai

import (
	"strings"
	"unicode"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
)

// textFromLayout extracts text from a layout's text anchor segments.
// Document AI indexes the full text by code point.
func textFromLayout(l *documentaipb.Document_Page_Layout, runes []rune) string {
	if l == nil || l.TextAnchor == nil {
		return ""
	}
	var b strings.Builder
	for _, seg := range l.TextAnchor.TextSegments {
		start, end := clampSegment(seg, len(runes))
		b.WriteString(string(runes[start:end]))
	}
	return b.String()
}

func clampSegment(seg *documentaipb.Document_TextAnchor_TextSegment, n int) (int, int) {
	start := int(seg.GetStartIndex())
	end := int(seg.GetEndIndex())
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if start > end {
		start = end
	}
	return start, end
}

// tokenText returns the token's text without the break Document AI appends.
func tokenText(tok *documentaipb.Document_Page_Token, runes []rune) string {
	txt := textFromLayout(tok.GetLayout(), runes)
	if tok.GetDetectedBreak().GetType() != documentaipb.Document_Page_Token_DetectedBreak_TYPE_UNSPECIFIED {
		txt = strings.TrimRightFunc(txt, unicode.IsSpace)
	}
	return strings.TrimSpace(txt)
}

// anchorRange returns the first text segment of l.
func anchorRange(l *documentaipb.Document_Page_Layout) (start, end int64, ok bool) {
	segs := l.GetTextAnchor().GetTextSegments()
	if len(segs) == 0 {
		return 0, 0, false
	}
	return segs[0].GetStartIndex(), segs[0].GetEndIndex(), true
}

// within reports whether child's text lies inside parent's.
func within(child, parent *documentaipb.Document_Page_Layout) bool {
	cs, ce, ok := anchorRange(child)
	if !ok {
		return false
	}
	ps, pe, ok := anchorRange(parent)
	if !ok {
		return false
	}
	return cs >= ps && ce <= pe
}
