package pdfdoc

import (
	"fmt"

	"codeberg.org/go-pdf/fpdf"

	"github.com/gardar/redactor/pkg/redact"
)

// drawRedactionLayer draws opaque rectangles with their labels onto a layer
// of the current pdf page. The pageNum parameter is used to create unique
// layer names for each page.
func drawRedactionLayer(
	pdf *fpdf.Fpdf,
	regions []redact.Region,
	cfg Config,
	pageNum int,
) {
	layerName := cfg.LayerName
	if pageNum > 0 {
		layerName = fmt.Sprintf("%s (Page %d)", cfg.LayerName, pageNum)
	}

	layer := pdf.AddLayer(layerName, true)
	pdf.BeginLayer(layer)

	pdf.SetFillColor(int(cfg.Fill.R), int(cfg.Fill.G), int(cfg.Fill.B))
	pdf.SetTextColor(int(cfg.Ink.R), int(cfg.Ink.G), int(cfg.Ink.B))
	pdf.SetDrawColor(255, 0, 0)
	pdf.SetLineWidth(0.5)

	for _, r := range regions {
		drawRegion(pdf, r, cfg)
	}

	pdf.EndLayer()
}

// drawRegion renders a single filled rectangle and its centered label
func drawRegion(pdf *fpdf.Fpdf, r redact.Region, cfg Config) {
	x, y := r.Rect.X0, r.Rect.Y0
	w, h := r.Rect.Width(), r.Rect.Height()

	pdf.Rect(x, y, w, h, "F")
	if cfg.Debug {
		pdf.Rect(x, y, w, h, "D")
	}

	label := latin1(r.Label)
	pdf.SetFont(cfg.Font.Name, cfg.Font.Style, float64(r.FontSize))
	tw := pdf.GetStringWidth(label)

	tx := x + max((w-tw)/2, 0)
	ty := y + h/2 + float64(r.FontSize)*cfg.Font.AscentRatio/2
	pdf.Text(tx, ty, label)
}
