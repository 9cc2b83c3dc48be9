// Package ocr recognizes text on page images with Tesseract and turns the
// result into searchable page layouts.
//
// Tesseract is linked through gosseract, which needs the Tesseract and
// Leptonica libraries. It is only compiled in with the "ocr" build tag:
//
//	go build -tags ocr ./...
//
// On Ubuntu/Debian:
//
//	apt-get install libtesseract-dev libleptonica-dev tesseract-ocr-eng
package ocr

import (
	"context"
	"errors"
	"fmt"

	"github.com/gardar/redactor/pkg/hocr"
	"github.com/gardar/redactor/pkg/layout"
)

// ErrOCRNotEnabled is returned when the binary was built without OCR support.
var ErrOCRNotEnabled = errors.New("OCR support not enabled (rebuild with -tags ocr)")

// Recognizer turns one page image into hOCR.
type Recognizer interface {
	HOCR(ctx context.Context, imageData []byte) ([]byte, error)
}

// Layouts recognizes every image and returns one layout per image, in
// image pixel coordinates. Words below minConfidence are dropped.
func Layouts(ctx context.Context, r Recognizer, images [][]byte, minConfidence float64) ([]*layout.Page, error) {
	pages := make([]*layout.Page, len(images))
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := r.HOCR(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		doc, err := hocr.ParseHOCR(data)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		// Tesseract emits one ocr_page per image
		pages[i] = doc.Pages[0].Layout(minConfidence)
	}
	return pages, nil
}
