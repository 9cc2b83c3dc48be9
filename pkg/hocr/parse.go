package hocr

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/encoding/charmap"
)

// lineClasses are the hOCR classes Tesseract and other engines use for a
// single line of text.
var lineClasses = []string{"ocr_line", "ocr_header", "ocr_caption", "ocr_textfloat", "ocrx_line"}

// ParseHOCR converts raw hOCR data into a structured HOCR object.
func ParseHOCR(data []byte) (HOCR, error) {
	result := HOCR{Metadata: make(map[string]string)}

	decoded, err := decodeCharset(data)
	if err != nil {
		return result, err
	}

	doc, err := html.Parse(bytes.NewReader(decoded))
	if err != nil {
		return result, fmt.Errorf("failed to parse hOCR HTML: %w", err)
	}

	// Extract document metadata and find all ocr_page elements
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "html":
				if lang := getAttrVal(n, "lang"); lang != "" {
					result.Language = lang
				}
			case n.Data == "title" && n.FirstChild != nil:
				result.Title = strings.TrimSpace(n.FirstChild.Data)
			case n.Data == "meta":
				name, content := getAttrVal(n, "name"), getAttrVal(n, "content")
				if strings.HasPrefix(name, "ocr-") && content != "" {
					result.Metadata[name] = content
				}
			case hasClass(n, "ocr_page"):
				result.Pages = append(result.Pages, processPage(n))
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if len(result.Pages) == 0 {
		return result, fmt.Errorf("no ocr_page elements found in hOCR data")
	}
	return result, nil
}

// decodeCharset converts Latin-1 documents to UTF-8 based on the declared
// meta charset. Everything else is assumed to be UTF-8 already.
func decodeCharset(data []byte) ([]byte, error) {
	head := data
	if len(head) > 2048 {
		head = head[:2048]
	}
	idx := bytes.Index(bytes.ToLower(head), []byte("charset="))
	if idx < 0 {
		return data, nil
	}
	fields := strings.FieldsFunc(string(head[idx+len("charset="):]), func(r rune) bool {
		return r == '"' || r == ';' || r == '\'' || r == '>' || r == ' ' || r == '/'
	})
	if len(fields) == 0 {
		return data, nil
	}

	switch enc := strings.ToLower(fields[0]); enc {
	case "iso-8859-1", "latin1", "latin-1", "windows-1252":
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", enc, err)
		}
		return decoded, nil
	default:
		return data, nil
	}
}

// ParseTitle breaks down an hOCR title attribute into its components
// Example input: "bbox 100 200 300 400; x_wconf 95"
func ParseTitle(title string) map[string][]string {
	result := make(map[string][]string)
	for _, part := range strings.Split(title, ";") {
		items := strings.Fields(part)
		if len(items) > 0 {
			result[items[0]] = items[1:]
		}
	}
	return result
}

// ParseBoundingBoxFromTitle extracts a bounding box from a title string
// Returns nil if the title carries no complete bbox property
func ParseBoundingBoxFromTitle(title string) *BoundingBox {
	bbox, ok := ParseTitle(title)["bbox"]
	if !ok || len(bbox) < 4 {
		return nil
	}
	var v [4]float64
	for i := range v {
		f, err := strconv.ParseFloat(bbox[i], 64)
		if err != nil {
			return nil
		}
		v[i] = f
	}
	return &BoundingBox{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}
}

// processPage extracts page information and all of its lines. Words that
// are not inside any line are grouped into one synthetic line per parent
// element.
func processPage(n *html.Node) Page {
	page := Page{ID: getAttrVal(n, "id")}

	title := getAttrVal(n, "title")
	if bbox := ParseBoundingBoxFromTitle(title); bbox != nil {
		page.BBox = *bbox
	}
	props := ParseTitle(title)
	if image, ok := props["image"]; ok && len(image) > 0 {
		page.ImageName = strings.Trim(strings.Join(image, " "), `"`)
	}
	if ppageno, ok := props["ppageno"]; ok && len(ppageno) > 0 {
		page.PageNumber, _ = strconv.Atoi(ppageno[0])
	}

	var collect func(parent *html.Node)
	collect = func(parent *html.Node) {
		var loose []Word
		for c := parent.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch {
			case isLine(c):
				page.Lines = append(page.Lines, processLine(c))
			case hasClass(c, "ocrx_word"):
				loose = append(loose, processWord(c))
			default:
				collect(c)
			}
		}
		if len(loose) > 0 {
			line := Line{ID: getAttrVal(parent, "id"), Words: loose}
			if bbox := ParseBoundingBoxFromTitle(getAttrVal(parent, "title")); bbox != nil {
				line.BBox = *bbox
			}
			page.Lines = append(page.Lines, line)
		}
	}
	collect(n)

	return page
}

// processLine extracts line information and its words
func processLine(n *html.Node) Line {
	line := Line{ID: getAttrVal(n, "id")}
	if bbox := ParseBoundingBoxFromTitle(getAttrVal(n, "title")); bbox != nil {
		line.BBox = *bbox
	}

	var extractWords func(*html.Node)
	extractWords = func(node *html.Node) {
		if node.Type == html.ElementNode && hasClass(node, "ocrx_word") {
			line.Words = append(line.Words, processWord(node))
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			extractWords(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractWords(c)
	}
	return line
}

// processWord extracts the text, bounding box and confidence of a word element
func processWord(n *html.Node) Word {
	word := Word{ID: getAttrVal(n, "id")}

	title := getAttrVal(n, "title")
	if bbox := ParseBoundingBoxFromTitle(title); bbox != nil {
		word.BBox = *bbox
	}
	if conf, ok := ParseTitle(title)["x_wconf"]; ok && len(conf) > 0 {
		word.Confidence, _ = strconv.ParseFloat(conf[0], 64)
	}
	word.Text = extractTextContent(n)
	return word
}

// extractTextContent gets all text from a node and its children
func extractTextContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(extractTextContent(c))
	}
	return strings.TrimSpace(b.String())
}

func isLine(n *html.Node) bool {
	for _, cls := range lineClasses {
		if hasClass(n, cls) {
			return true
		}
	}
	return false
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(getAttrVal(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// Get the value of a specific attribute from a node
func getAttrVal(n *html.Node, attrName string) string {
	for _, attr := range n.Attr {
		if attr.Key == attrName {
			return attr.Val
		}
	}
	return ""
}
