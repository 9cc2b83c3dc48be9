package pdfdoc

import (
	"bytes"
	"fmt"
	"io"

	"codeberg.org/go-pdf/fpdf"
	"codeberg.org/go-pdf/fpdf/contrib/gofpdi"
)

// modifyExistingPDF imports pages from an existing PDF and overlays a
// redaction layer on every page that has regions.
func modifyExistingPDF(inputPDFData []byte, pages []*pdfPage, cfg Config) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "", "")
	importer := gofpdi.NewImporter()
	rs := io.ReadSeeker(bytes.NewReader(inputPDFData))

	for _, page := range pages {
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: page.w, Ht: page.h})

		tpl := importer.ImportPageFromStream(pdf, &rs, page.num, "/MediaBox")
		importer.UseImportedTemplate(pdf, tpl, 0, 0, page.w, 0)

		if regions := page.regions(); len(regions) > 0 {
			drawRedactionLayer(pdf, regions, cfg, page.num)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}
