package pdfdoc

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/gardar/redactor/pkg/layout"
)

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokString
	tokName
	tokArray
	tokDict
	tokOp
)

// token is one lexical element of a content stream. start and end are
// byte offsets into the stream.
type token struct {
	kind       tokenKind
	start, end int
	num        float64
	str        []byte  // decoded bytes of a string
	elems      []token // elements of an array
	op         string  // operator or name
}

type lexer struct {
	buf []byte
	pos int
}

func isSpace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (l *lexer) skip() {
	for l.pos < len(l.buf) {
		c := l.buf[l.pos]
		switch {
		case isSpace(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.buf) && l.buf[l.pos] != '\n' && l.buf[l.pos] != '\r' {
				l.pos++
			}
		default:
			return
		}
	}
}

// next returns the next token, or false at the end of the stream.
func (l *lexer) next() (token, bool, error) {
	l.skip()
	if l.pos >= len(l.buf) {
		return token{}, false, nil
	}
	start := l.pos
	c := l.buf[l.pos]
	switch {
	case c == '(':
		s, err := l.literal()
		return token{kind: tokString, start: start, end: l.pos, str: s}, true, err
	case c == '<' && l.pos+1 < len(l.buf) && l.buf[l.pos+1] == '<':
		l.pos += 2
		elems, err := l.until(">>")
		return token{kind: tokDict, start: start, end: l.pos, elems: elems}, true, err
	case c == '<':
		s, err := l.hexString()
		return token{kind: tokString, start: start, end: l.pos, str: s}, true, err
	case c == '[':
		l.pos++
		elems, err := l.until("]")
		return token{kind: tokArray, start: start, end: l.pos, elems: elems}, true, err
	case c == '/':
		l.pos++
		l.regular()
		return token{kind: tokName, start: start, end: l.pos, op: string(l.buf[start+1 : l.pos])}, true, nil
	case c == ']' || c == '>' || c == ')':
		return token{}, false, fmt.Errorf("unexpected %q at offset %d", c, start)
	case c == '{' || c == '}':
		l.pos++
		return token{kind: tokOp, start: start, end: l.pos, op: string(c)}, true, nil
	}

	l.regular()
	word := string(l.buf[start:l.pos])
	if c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') {
		if f, err := strconv.ParseFloat(word, 64); err == nil {
			return token{kind: tokNumber, start: start, end: l.pos, num: f}, true, nil
		}
	}
	return token{kind: tokOp, start: start, end: l.pos, op: word}, true, nil
}

func (l *lexer) regular() {
	for l.pos < len(l.buf) && !isSpace(l.buf[l.pos]) && !isDelim(l.buf[l.pos]) {
		l.pos++
	}
}

// until collects tokens up to the closing delimiter.
func (l *lexer) until(closing string) ([]token, error) {
	var elems []token
	for {
		l.skip()
		if l.pos >= len(l.buf) {
			return elems, fmt.Errorf("unterminated %q", closing)
		}
		if bytes.HasPrefix(l.buf[l.pos:], []byte(closing)) {
			l.pos += len(closing)
			return elems, nil
		}
		t, ok, err := l.next()
		if err != nil {
			return elems, err
		}
		if !ok {
			return elems, fmt.Errorf("unterminated %q", closing)
		}
		elems = append(elems, t)
	}
}

func (l *lexer) literal() ([]byte, error) {
	l.pos++ // (
	var out []byte
	depth := 1
	for l.pos < len(l.buf) {
		c := l.buf[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return out, nil
			}
		case '\\':
			if l.pos >= len(l.buf) {
				return out, fmt.Errorf("unterminated string")
			}
			e := l.buf[l.pos]
			l.pos++
			switch e {
			case 'n':
				c = '\n'
			case 'r':
				c = '\r'
			case 't':
				c = '\t'
			case 'b':
				c = '\b'
			case 'f':
				c = '\f'
			case '\r':
				if l.pos < len(l.buf) && l.buf[l.pos] == '\n' {
					l.pos++
				}
				continue
			case '\n':
				continue
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && l.pos < len(l.buf) && l.buf[l.pos] >= '0' && l.buf[l.pos] <= '7'; i++ {
						v = v*8 + int(l.buf[l.pos]-'0')
						l.pos++
					}
					c = byte(v)
				} else {
					c = e
				}
			}
		}
		out = append(out, c)
	}
	return out, fmt.Errorf("unterminated string")
}

func (l *lexer) hexString() ([]byte, error) {
	l.pos++ // <
	var digits []byte
	for l.pos < len(l.buf) {
		c := l.buf[l.pos]
		l.pos++
		if c == '>' {
			if len(digits)%2 == 1 {
				digits = append(digits, '0')
			}
			out := make([]byte, len(digits)/2)
			_, err := hex.Decode(out, digits)
			return out, err
		}
		if !isSpace(c) {
			digits = append(digits, c)
		}
	}
	return nil, fmt.Errorf("unterminated hex string")
}

// skipInlineImage moves past the data of an inline image, which follows
// the ID operator and ends at an EI operator.
func (l *lexer) skipInlineImage() error {
	if l.pos < len(l.buf) && isSpace(l.buf[l.pos]) {
		l.pos++
	}
	for i := l.pos; i+2 <= len(l.buf); i++ {
		if l.buf[i] != 'E' || l.buf[i+1] != 'I' {
			continue
		}
		if i > 0 && !isSpace(l.buf[i-1]) {
			continue
		}
		if i+2 < len(l.buf) && !isSpace(l.buf[i+2]) {
			continue
		}
		l.pos = i + 2
		return nil
	}
	return fmt.Errorf("inline image without EI")
}

// matrix is a PDF transformation matrix [a b c d e f].
type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func (m matrix) apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

func translate(tx, ty float64) matrix { return matrix{1, 0, 0, 1, tx, ty} }

// fontMetrics holds what is needed to position the glyphs of a font.
type fontMetrics struct {
	twoByte bool
	widths  map[int]float64 // 1/1000 text space units
	missing float64
}

func (f *fontMetrics) width(code int) float64 {
	if w, ok := f.widths[code]; ok {
		return w
	}
	return f.missing
}

// codes splits a shown string into character codes.
func (f *fontMetrics) codes(s []byte) [][]byte {
	n := 1
	if f.twoByte {
		n = 2
	}
	var out [][]byte
	for i := 0; i < len(s); i += n {
		out = append(out, s[i:min(i+n, len(s))])
	}
	return out
}

func code(b []byte) int {
	c := 0
	for _, x := range b {
		c = c<<8 | int(x)
	}
	return c
}

var unknownFont = &fontMetrics{missing: avgGlyphRatio * 1000}

// textState is the part of the graphics state that positions glyphs.
type textState struct {
	ctm           matrix
	font          *fontMetrics
	size          float64
	charSpace     float64
	wordSpace     float64
	scale         float64 // horizontal scaling, 1 = 100%
	leading, rise float64
	tm, tlm       matrix
}

// scrubber removes covered glyphs from one content stream.
type scrubber struct {
	fonts   map[string]*fontMetrics
	rects   []layout.Rect // PDF user space, Y0 < Y1
	st      textState
	stack   []textState
	edits   []edit
	removed int
}

type edit struct {
	start, end int
	repl       []byte
}

// scrubContent rewrites the text-showing operators of content so glyphs
// whose center falls inside one of rects are no longer drawn. Each removed
// glyph is replaced by a shift of the same width, so the remaining text
// keeps its position. It returns the new content and the number of glyphs
// removed.
func scrubContent(content []byte, fonts map[string]*fontMetrics, rects []layout.Rect) ([]byte, int, error) {
	s := &scrubber{
		fonts: fonts,
		rects: rects,
		st:    textState{ctm: identity, font: unknownFont, scale: 1, tm: identity, tlm: identity},
	}
	l := &lexer{buf: content}
	var operands []token
	for {
		t, ok, err := l.next()
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			break
		}
		if t.kind != tokOp {
			operands = append(operands, t)
			continue
		}
		switch t.op {
		case "BI":
			if _, err := l.until("ID"); err != nil {
				return nil, 0, err
			}
			if err := l.skipInlineImage(); err != nil {
				return nil, 0, err
			}
		default:
			s.operator(t, operands)
		}
		operands = operands[:0]
	}
	if len(s.edits) == 0 {
		return content, 0, nil
	}

	var out bytes.Buffer
	last := 0
	for _, e := range s.edits {
		out.Write(content[last:e.start])
		out.Write(e.repl)
		last = e.end
	}
	out.Write(content[last:])
	return out.Bytes(), s.removed, nil
}

func nums(operands []token, n int) ([]float64, bool) {
	if len(operands) < n {
		return nil, false
	}
	out := make([]float64, n)
	for i, t := range operands[len(operands)-n:] {
		if t.kind != tokNumber {
			return nil, false
		}
		out[i] = t.num
	}
	return out, true
}

func (s *scrubber) operator(op token, operands []token) {
	st := &s.st
	switch op.op {
	case "q":
		s.stack = append(s.stack, *st)
	case "Q":
		if n := len(s.stack); n > 0 {
			*st = s.stack[n-1]
			s.stack = s.stack[:n-1]
		}
	case "cm":
		if v, ok := nums(operands, 6); ok {
			st.ctm = matrix(v).mul(st.ctm)
		}
	case "BT":
		st.tm, st.tlm = identity, identity
	case "Tf":
		if len(operands) >= 2 && operands[0].kind == tokName && operands[1].kind == tokNumber {
			st.font = s.fonts[operands[0].op]
			if st.font == nil {
				st.font = unknownFont
			}
			st.size = operands[1].num
		}
	case "Tc":
		if v, ok := nums(operands, 1); ok {
			st.charSpace = v[0]
		}
	case "Tw":
		if v, ok := nums(operands, 1); ok {
			st.wordSpace = v[0]
		}
	case "Tz":
		if v, ok := nums(operands, 1); ok {
			st.scale = v[0] / 100
		}
	case "TL":
		if v, ok := nums(operands, 1); ok {
			st.leading = v[0]
		}
	case "Ts":
		if v, ok := nums(operands, 1); ok {
			st.rise = v[0]
		}
	case "Td", "TD":
		if v, ok := nums(operands, 2); ok {
			if op.op == "TD" {
				st.leading = -v[1]
			}
			st.tlm = translate(v[0], v[1]).mul(st.tlm)
			st.tm = st.tlm
		}
	case "Tm":
		if v, ok := nums(operands, 6); ok {
			st.tlm = matrix(v)
			st.tm = st.tlm
		}
	case "T*":
		s.nextLine()
	case "Tj", "'", `"`:
		if len(operands) == 0 || operands[len(operands)-1].kind != tokString {
			return
		}
		str := operands[len(operands)-1]
		var prefix []byte
		switch op.op {
		case "'":
			s.nextLine()
			prefix = []byte("T* ")
		case `"`:
			v, ok := nums(operands[:len(operands)-1], 2)
			if !ok {
				return
			}
			st.wordSpace, st.charSpace = v[0], v[1]
			s.nextLine()
			prefix = fmt.Appendf(nil, "%s Tw %s Tc T* ", fmtNum(v[0]), fmtNum(v[1]))
		}
		s.show(prefix, []token{str}, operands[0].start, op.end)
	case "TJ":
		if len(operands) == 0 || operands[len(operands)-1].kind != tokArray {
			return
		}
		s.show(nil, operands[len(operands)-1].elems, operands[0].start, op.end)
	}
}

func (s *scrubber) nextLine() {
	s.st.tlm = translate(0, -s.st.leading).mul(s.st.tlm)
	s.st.tm = s.st.tlm
}

// show advances the text matrix over elems and, if any glyph is covered,
// records an edit replacing bytes [start, end) with a TJ operator that
// shows only the uncovered glyphs.
func (s *scrubber) show(prefix []byte, elems []token, start, end int) {
	st := &s.st
	f := st.font
	var (
		parts   []byte
		pending []byte
		shift   float64
		covered int
	)
	flushString := func() {
		if len(pending) > 0 {
			parts = fmt.Appendf(parts, "<%x>", pending)
			pending = pending[:0]
		}
	}
	flushShift := func() {
		if shift != 0 {
			parts = append(parts, fmtNum(shift)...)
			parts = append(parts, ' ')
			shift = 0
		}
	}

	for _, el := range elems {
		switch el.kind {
		case tokNumber:
			st.tm = translate(-el.num/1000*st.size*st.scale, 0).mul(st.tm)
			flushString()
			shift += el.num
		case tokString:
			for _, c := range f.codes(el.str) {
				w0 := f.width(code(c)) / 1000
				adv := w0*st.size + st.charSpace
				if !f.twoByte && len(c) == 1 && c[0] == ' ' {
					adv += st.wordSpace
				}
				adv *= st.scale

				if s.covers(w0) {
					covered++
					flushString()
					if st.size != 0 {
						shift -= adv / st.scale / st.size * 1000
					}
				} else {
					flushShift()
					pending = append(pending, c...)
				}
				st.tm = translate(adv, 0).mul(st.tm)
			}
		}
	}
	if covered == 0 {
		return
	}
	s.removed += covered

	repl := append([]byte{}, prefix...)
	if st.size == 0 || st.scale == 0 {
		// Without a size the gap cannot be expressed; drop the whole run.
		s.edits = append(s.edits, edit{start: start, end: end, repl: repl})
		return
	}
	flushString()
	flushShift()
	repl = append(repl, '[')
	repl = append(repl, bytes.TrimSpace(parts)...)
	repl = append(repl, "] TJ"...)
	s.edits = append(s.edits, edit{start: start, end: end, repl: repl})
}

// covers reports whether the center of the glyph at the current text
// position, w0 text space units wide, lies in one of the rectangles.
func (s *scrubber) covers(w0 float64) bool {
	st := &s.st
	trm := matrix{st.size * st.scale, 0, 0, st.size, 0, st.rise}.mul(st.tm).mul(st.ctm)
	x, y := trm.apply(w0/2, glyphAscent/2-glyphDescent/2)
	for _, r := range s.rects {
		if x >= r.X0 && x <= r.X1 && y >= r.Y0 && y <= r.Y1 {
			return true
		}
	}
	return false
}

func fmtNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
