package pdfdoc

import (
	"bytes"
	"fmt"
	"image/png"

	"codeberg.org/go-pdf/fpdf"
)

// createPDFFromImages builds a new PDF with one page per image, sized from
// the image resolution.
func createPDFFromImages(pages []*imagePage, cfg Config) ([]byte, error) {
	dpi := cfg.DPI
	if dpi <= 0 {
		dpi = 72
	}
	pdf := fpdf.New("P", "pt", "A4", "")

	for i, page := range pages {
		img := page.pixels()
		if img == nil {
			return nil, fmt.Errorf("page %d is closed", i+1)
		}
		b := img.Bounds()
		w := float64(b.Dx()) * 72 / dpi
		h := float64(b.Dy()) * 72 / dpi

		// Add page with appropriate dimensions
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode page %d: %w", i+1, err)
		}

		imageName := fmt.Sprintf("img%d", i)
		opts := fpdf.ImageOptions{ReadDpi: false, ImageType: "PNG"}
		pdf.RegisterImageOptionsReader(imageName, opts, &buf)
		pdf.ImageOptions(imageName, 0, 0, w, h, false, opts, 0, "")
	}

	// Generate final PDF
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}
