// Package pdfdoc provides the documents the redaction engine works on.
//
// Two kinds of document are supported:
//
// - PDF: an existing PDF whose pages are imported and covered by a
// "Redactions (Page N)" layer of opaque rectangles and labels. Glyphs under
// a rectangle are removed from the page content first, unless KeepText is
// set.
// - Images: page images whose pixels are painted over, then assembled into
// a new PDF. Nothing of the covered content survives.
//
// Page text and geometry come from a LayoutSource: the PDF's own text layer,
// hOCR from an OCR engine, or a cloud layout service.
//
// Main Functions:
//
// - OpenPDF: Opens an existing PDF with layouts from a LayoutSource
// - OpenImages: Opens page images with their layouts
// - CheckExistingLayers: Detects an earlier redaction layer
package pdfdoc

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/gardar/redactor/pkg/layout"
	"github.com/gardar/redactor/pkg/redact"
)

func init() {
	// Keep pdfcpu from installing a config directory in the user's home.
	model.ConfigPath = "disable"
}

// PDF is an existing PDF opened for overlay redaction.
type PDF struct {
	cfg   Config
	log   *slog.Logger
	pages []*pdfPage

	mu     sync.Mutex
	data   []byte
	closed bool
}

// Opener returns a redact.Opener reading layouts from src.
func Opener(src LayoutSource, cfg Config) redact.Opener {
	return func(ctx context.Context, path string) (redact.Document, error) {
		return OpenPDF(ctx, path, src, cfg)
	}
}

// OpenPDF validates the PDF at path and loads the layout of every page.
func OpenPDF(ctx context.Context, path string, src LayoutSource, cfg Config) (*PDF, error) {
	log := cfg.logger()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(path, conf); err != nil {
		return nil, fmt.Errorf("invalid PDF: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}

	if cfg.Debug {
		logLayerContext(log, data)
	}
	if cfg.KeepText {
		log.Warn("keeping the original text under the redaction layer, covered text stays extractable")
	}
	layers, err := CheckExistingLayers(data, cfg.LayerName)
	if err != nil {
		return nil, fmt.Errorf("layer detection failed: %w", err)
	}
	for _, w := range layers.Warnings {
		log.Warn(w)
	}
	if layers.HasLayer {
		if !cfg.Force {
			return nil, fmt.Errorf("%w (layer '%s'), use -force to redact again", ErrAlreadyRedacted, layers.LayerName)
		}
		log.Warn("document already has a redaction layer, redacting again due to force", "layer", layers.LayerName)
	}

	dims, err := pageDims(path)
	if err != nil {
		return nil, err
	}
	layouts, err := src.Layouts(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load page layouts: %w", err)
	}
	if len(layouts) != len(dims) {
		log.Warn("layout page count differs from PDF", "pdf_pages", len(dims), "layout_pages", len(layouts))
	}

	doc := &PDF{cfg: cfg, log: log, data: data, pages: make([]*pdfPage, len(dims))}
	for i, d := range dims {
		var lp *layout.Page
		if i < len(layouts) {
			lp = layouts[i]
		}
		doc.pages[i] = &pdfPage{num: i + 1, w: d.Width, h: d.Height, layout: fitLayout(lp, d.Width, d.Height)}
	}
	log.Debug("opened PDF", "path", path, "pages", len(dims))
	return doc, nil
}

func pageDims(path string) ([]types.Dim, error) {
	dims, err := api.PageDimsFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read page sizes: %w", err)
	}
	return dims, nil
}

// PageCount implements redact.Document.
func (d *PDF) PageCount() int { return len(d.pages) }

// Page implements redact.Document.
func (d *PDF) Page(i int) (redact.Page, error) {
	if i < 0 || i >= len(d.pages) {
		return nil, fmt.Errorf("page %d out of range (1-%d)", i+1, len(d.pages))
	}
	return d.pages[i], nil
}

// Save writes the redacted PDF to path.
func (d *PDF) Save(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("document is closed")
	}

	data := d.data
	if !d.cfg.KeepText {
		scrubbed, err := scrubText(data, d.pages, d.log)
		if err != nil {
			return fmt.Errorf("error removing covered text: %w", err)
		}
		data = scrubbed
	}
	out, err := modifyExistingPDF(data, d.pages, d.cfg)
	if err != nil {
		return fmt.Errorf("error modifying existing PDF: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}

// Close releases the document. It is safe to call more than once.
func (d *PDF) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.data = nil
	return nil
}

// pdfPage is one page of a PDF with its layout in PDF points.
type pdfPage struct {
	num  int // 1-based
	w, h float64

	mu      sync.RWMutex
	layout  *layout.Page
	pending []redact.Region
	applied []redact.Region
}

func (p *pdfPage) Text() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.layout.Text()
}

func (p *pdfPage) Search(s string) []layout.Rect {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.layout.Search(s)
}

func (p *pdfPage) AddRedaction(r redact.Region) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, r)
}

// ApplyRedactions commits the buffered regions to the page's overlay and
// drops every covered word from the page text.
func (p *pdfPage) ApplyRedactions() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		return nil
	}
	p.layout = p.layout.Without(regionRects(p.pending))
	p.applied = append(p.applied, p.pending...)
	p.pending = nil
	return nil
}

func (p *pdfPage) regions() []redact.Region {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.applied
}

func regionRects(regions []redact.Region) []layout.Rect {
	rects := make([]layout.Rect, len(regions))
	for i, r := range regions {
		rects[i] = r.Rect
	}
	return rects
}
