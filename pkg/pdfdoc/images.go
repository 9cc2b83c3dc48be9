package pdfdoc

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"log/slog"
	"math"
	"os"
	"sync"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/tiff" // register TIFF decoder

	"github.com/gardar/redactor/pkg/layout"
	"github.com/gardar/redactor/pkg/redact"
)

// ImagePage is a page image and the text layout found on it.
type ImagePage struct {
	Image  []byte       // PNG, JPEG, TIFF or BMP data
	Layout *layout.Page // Scaled to the image size when it has one
}

// Images is a document made of page images. Redactions are painted into
// the pixels.
type Images struct {
	cfg   Config
	log   *slog.Logger
	pages []*imagePage

	mu     sync.Mutex
	closed bool
}

// OpenImages decodes the page images and attaches their layouts.
func OpenImages(pages []ImagePage, cfg Config) (*Images, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("no image data provided")
	}
	p, err := newPainter(cfg)
	if err != nil {
		return nil, err
	}

	doc := &Images{cfg: cfg, log: cfg.logger(), pages: make([]*imagePage, len(pages))}
	for i, pg := range pages {
		if len(pg.Image) == 0 {
			return nil, fmt.Errorf("image %d is empty", i+1)
		}
		imageType, err := detectImageType(pg.Image)
		if err != nil {
			return nil, fmt.Errorf("image %d has invalid format: %w", i+1, err)
		}
		src, _, err := image.Decode(bytes.NewReader(pg.Image))
		if err != nil {
			return nil, fmt.Errorf("failed to decode image %d: %w", i+1, err)
		}
		b := src.Bounds()
		canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(canvas, canvas.Bounds(), src, b.Min, draw.Src)

		doc.pages[i] = &imagePage{
			num:     i + 1,
			img:     canvas,
			layout:  fitLayout(pg.Layout, float64(b.Dx()), float64(b.Dy())),
			painter: p,
		}
		doc.log.Debug("loaded page image", "page", i+1, "type", imageType, "width", b.Dx(), "height", b.Dy())
	}
	return doc, nil
}

// PageCount implements redact.Document.
func (d *Images) PageCount() int { return len(d.pages) }

// Page implements redact.Document.
func (d *Images) Page(i int) (redact.Page, error) {
	if i < 0 || i >= len(d.pages) {
		return nil, fmt.Errorf("page %d out of range (1-%d)", i+1, len(d.pages))
	}
	return d.pages[i], nil
}

// Save assembles the page images into a PDF at path.
func (d *Images) Save(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("document is closed")
	}

	out, err := createPDFFromImages(d.pages, d.cfg)
	if err != nil {
		return fmt.Errorf("error creating PDF from images: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}

// Close releases the page images. It is safe to call more than once.
func (d *Images) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		for _, p := range d.pages {
			p.release()
		}
	}
	return nil
}

// imagePage is one page image with its layout in pixels.
type imagePage struct {
	num     int
	painter *painter

	mu      sync.RWMutex
	img     *image.RGBA
	layout  *layout.Page
	pending []redact.Region
}

func (p *imagePage) Text() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.layout.Text()
}

func (p *imagePage) Search(s string) []layout.Rect {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.layout.Search(s)
}

func (p *imagePage) AddRedaction(r redact.Region) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, r)
}

// ApplyRedactions paints the buffered regions into the image and drops
// every covered word from the page text.
func (p *imagePage) ApplyRedactions() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.img == nil {
		return fmt.Errorf("page %d is closed", p.num)
	}
	for _, r := range p.pending {
		if err := p.painter.paint(p.img, r); err != nil {
			return fmt.Errorf("page %d: %w", p.num, err)
		}
	}
	p.layout = p.layout.Without(regionRects(p.pending))
	p.pending = nil
	return nil
}

func (p *imagePage) pixels() *image.RGBA {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.img
}

func (p *imagePage) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.img = nil
}

// painter draws filled regions and their labels into images.
type painter struct {
	cfg  Config
	font *opentype.Font

	mu    sync.Mutex
	faces map[int]font.Face
}

func newPainter(cfg Config) (*painter, error) {
	f, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse label font: %w", err)
	}
	return &painter{cfg: cfg, font: f, faces: make(map[int]font.Face)}, nil
}

func (p *painter) face(size int) (font.Face, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if f, ok := p.faces[size]; ok {
		return f, nil
	}
	f, err := opentype.NewFace(p.font, &opentype.FaceOptions{Size: float64(size), DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("failed to create %dpx label face: %w", size, err)
	}
	p.faces[size] = f
	return f, nil
}

// paint fills r with the overlay color and draws its label centered and
// clipped to the rectangle.
func (p *painter) paint(img *image.RGBA, r redact.Region) error {
	rect := image.Rect(
		int(math.Floor(r.Rect.X0)), int(math.Floor(r.Rect.Y0)),
		int(math.Ceil(r.Rect.X1)), int(math.Ceil(r.Rect.Y1)),
	).Intersect(img.Bounds())
	if rect.Empty() {
		return nil
	}

	fill, ink := p.cfg.Fill, p.cfg.Ink
	draw.Draw(img, rect, image.NewUniform(rgba(fill)), image.Point{}, draw.Src)

	face, err := p.face(max(r.FontSize, 1))
	if err != nil {
		return err
	}
	dst := img.SubImage(rect).(*image.RGBA)
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(rgba(ink)), Face: face}

	m := face.Metrics()
	x := rect.Min.X + max((rect.Dx()-d.MeasureString(r.Label).Ceil())/2, 0)
	y := rect.Min.Y + (rect.Dy()+m.Ascent.Ceil()-m.Descent.Ceil())/2
	d.Dot = fixed.P(x, y)
	d.DrawString(r.Label)

	if p.cfg.Debug {
		outline(img, rect, rgba(Color{255, 0, 0}))
	}
	return nil
}

func outline(img *image.RGBA, r image.Rectangle, c color.Color) {
	u := image.NewUniform(c)
	for _, edge := range []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1),
		image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y),
		image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y),
	} {
		draw.Draw(img, edge.Intersect(img.Bounds()), u, image.Point{}, draw.Src)
	}
}

func rgba(c Color) color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
}
