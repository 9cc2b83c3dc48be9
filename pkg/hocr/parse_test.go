package hocr

import (
	"testing"

	"github.com/gardar/redactor/pkg/layout"
)

const sample = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xml:lang="en" lang="en">
 <head>
  <title>scan</title>
  <meta http-equiv="Content-Type" content="text/html;charset=utf-8"/>
  <meta name="ocr-system" content="tesseract 5.3.0"/>
 </head>
 <body>
  <div class="ocr_page" id="page_1" title='image "scan.png"; bbox 0 0 1000 1400; ppageno 0'>
   <div class="ocr_carea" id="block_1_1" title="bbox 100 100 900 200">
    <p class="ocr_par" id="par_1_1" title="bbox 100 100 900 200">
     <span class="ocr_line" id="line_1_1" title="bbox 100 100 900 140; baseline 0 -8">
      <span class="ocrx_word" id="word_1_1" title="bbox 100 100 300 140; x_wconf 96">Contact:</span>
      <span class="ocrx_word" id="word_1_2" title="bbox 320 100 560 140; x_wconf 91"><strong>a@b.com</strong></span>
     </span>
     <span class="ocr_header" id="line_1_2" title="bbox 100 160 500 200">
      <span class="ocrx_word" id="word_1_3" title="bbox 100 160 500 200; x_wconf 12">~~</span>
     </span>
    </p>
   </div>
   <div class="ocr_carea" id="block_1_2" title="bbox 100 300 400 340">
    <span class="ocrx_word" id="word_1_4" title="bbox 100 300 400 340; x_wconf 90">stray</span>
   </div>
  </div>
 </body>
</html>`

func TestParseHOCR(t *testing.T) {
	doc, err := ParseHOCR([]byte(sample))
	if err != nil {
		t.Fatalf("ParseHOCR: %v", err)
	}
	if doc.Title != "scan" || doc.Language != "en" {
		t.Errorf("title/lang = %q/%q", doc.Title, doc.Language)
	}
	if doc.Metadata["ocr-system"] != "tesseract 5.3.0" {
		t.Errorf("metadata = %v", doc.Metadata)
	}
	if len(doc.Pages) != 1 {
		t.Fatalf("got %d pages", len(doc.Pages))
	}

	page := doc.Pages[0]
	if page.ImageName != "scan.png" || page.PageNumber != 0 {
		t.Errorf("page image/number = %q/%d", page.ImageName, page.PageNumber)
	}
	if page.BBox != (BoundingBox{0, 0, 1000, 1400}) {
		t.Errorf("page bbox = %+v", page.BBox)
	}
	if len(page.Lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(page.Lines))
	}
	if page.Lines[0].Words[1].Text != "a@b.com" || page.Lines[0].Words[1].Confidence != 91 {
		t.Errorf("word = %+v", page.Lines[0].Words[1])
	}
	if page.Lines[2].ID != "block_1_2" || page.Lines[2].Words[0].Text != "stray" {
		t.Errorf("synthetic line = %+v", page.Lines[2])
	}
}

func TestPageLayout(t *testing.T) {
	doc, err := ParseHOCR([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}

	lp := doc.Pages[0].Layout(50)
	if got, want := lp.Text(), "Contact: a@b.com\nstray"; got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
	if lp.Width() != 1000 || lp.Height() != 1400 {
		t.Errorf("size = %vx%v", lp.Width(), lp.Height())
	}
	rects := lp.Search("a@b.com")
	if len(rects) != 1 || rects[0] != (layout.Rect{X0: 320, Y0: 100, X1: 560, Y1: 140}) {
		t.Errorf("Search = %+v", rects)
	}

	if got := doc.Pages[0].Layout(0).Text(); got != "Contact: a@b.com\n~~\nstray" {
		t.Errorf("unfiltered Text() = %q", got)
	}
}

func TestParseLatin1(t *testing.T) {
	data := []byte("<html><head><meta charset=\"iso-8859-1\"></head><body>" +
		"<div class='ocr_page' title='bbox 0 0 10 10'><span class='ocr_line'>" +
		"<span class='ocrx_word' title='bbox 0 0 5 5'>Zo\xeb</span></span></div></body></html>")
	doc, err := ParseHOCR(data)
	if err != nil {
		t.Fatal(err)
	}
	if got := doc.Pages[0].Lines[0].Words[0].Text; got != "Zoë" {
		t.Errorf("word = %q, want Zoë", got)
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := ParseHOCR([]byte("<html><body><p>no pages</p></body></html>")); err == nil {
		t.Error("expected error without ocr_page")
	}
}

func TestParseBoundingBoxFromTitle(t *testing.T) {
	tests := []struct {
		title string
		want  *BoundingBox
	}{
		{"bbox 1 2 3 4; x_wconf 95", &BoundingBox{1, 2, 3, 4}},
		{"x_wconf 95; bbox 10 20 30 40", &BoundingBox{10, 20, 30, 40}},
		{"bbox 1 2 3", nil},
		{"bbox a b c d", nil},
		{"", nil},
	}
	for _, tt := range tests {
		got := ParseBoundingBoxFromTitle(tt.title)
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("%q: got %+v, want nil", tt.title, got)
		case tt.want != nil && (got == nil || *got != *tt.want):
			t.Errorf("%q: got %+v, want %+v", tt.title, got, tt.want)
		}
	}
}
