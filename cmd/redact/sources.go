package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/gardar/redactor/pkg/config"
	"github.com/gardar/redactor/pkg/gdocai"
	"github.com/gardar/redactor/pkg/layout"
	"github.com/gardar/redactor/pkg/ocr"
	"github.com/gardar/redactor/pkg/pdfdoc"
	"github.com/gardar/redactor/pkg/raster"
	"github.com/gardar/redactor/pkg/redact"
)

// ocrSource renders the PDF and recognizes every page with Tesseract.
type ocrSource struct {
	rast          *raster.Rasterizer
	rec           ocr.Recognizer
	minConfidence float64
}

func (s *ocrSource) Layouts(ctx context.Context, path string) ([]*layout.Page, error) {
	images, err := s.rast.Pages(ctx, path)
	if err != nil {
		return nil, err
	}
	return ocr.Layouts(ctx, s.rec, images, s.minConfidence)
}

// buildOpener returns the opener for the configured layout source and
// output mode, and a cleanup func releasing the OCR engine.
func buildOpener(cfg *config.Config, rast *raster.Rasterizer, isImage bool, log *slog.Logger) (redact.Opener, func(), error) {
	cleanup := func() {}
	pc, err := cfg.PDF(log)
	if err != nil {
		return nil, cleanup, err
	}

	var rec ocr.Recognizer
	if cfg.Layout.Source == config.LayoutOCR {
		client, err := ocr.New(cfg.Layout.OCRLang)
		if err != nil {
			return nil, cleanup, err
		}
		rec = client
		cleanup = func() { client.Close() }
	}

	src, err := layoutSource(cfg, rast, rec, log)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}

	switch {
	case isImage:
		return imageOpener(src, pc), cleanup, nil
	case cfg.Flatten:
		return flattenOpener(src, rast, pc), cleanup, nil
	default:
		return pdfdoc.Opener(src, pc), cleanup, nil
	}
}

func layoutSource(cfg *config.Config, rast *raster.Rasterizer, rec ocr.Recognizer, log *slog.Logger) (pdfdoc.LayoutSource, error) {
	switch cfg.Layout.Source {
	case config.LayoutText:
		return pdfdoc.TextLayer{}, nil
	case config.LayoutHOCR:
		return pdfdoc.LoadHOCR(cfg.Layout.HOCRPath, cfg.Layout.MinConfidence)
	case config.LayoutGDocAI:
		docai := cfg.Layout.DocumentAI
		return &gdocai.Source{
			Config:        &docai,
			MinConfidence: cfg.Layout.MinConfidence / 100,
			DumpPath:      cfg.Layout.DumpPath,
			Logger:        log,
		}, nil
	case config.LayoutOCR:
		return &ocrSource{rast: rast, rec: rec, minConfidence: cfg.Layout.MinConfidence}, nil
	default:
		return nil, fmt.Errorf("%w: unknown layout source %q", redact.ErrInvalidInput, cfg.Layout.Source)
	}
}

// flattenOpener renders every page to an image and opens the images, so
// redactions are painted into the pixels of the output.
func flattenOpener(src pdfdoc.LayoutSource, rast *raster.Rasterizer, pc pdfdoc.Config) redact.Opener {
	return func(ctx context.Context, path string) (redact.Document, error) {
		images, err := rast.Pages(ctx, path)
		if err != nil {
			return nil, err
		}
		var layouts []*layout.Page
		if s, ok := src.(*ocrSource); ok {
			layouts, err = ocr.Layouts(ctx, s.rec, images, s.minConfidence)
		} else {
			layouts, err = src.Layouts(ctx, path)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load page layouts: %w", err)
		}
		return pdfdoc.OpenImages(imagePages(images, layouts), pc)
	}
}

// imageOpener opens a single page image.
func imageOpener(src pdfdoc.LayoutSource, pc pdfdoc.Config) redact.Opener {
	return func(ctx context.Context, path string) (redact.Document, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var layouts []*layout.Page
		if s, ok := src.(*ocrSource); ok {
			layouts, err = ocr.Layouts(ctx, s.rec, [][]byte{data}, s.minConfidence)
		} else {
			layouts, err = src.Layouts(ctx, path)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load page layout: %w", err)
		}
		return pdfdoc.OpenImages(imagePages([][]byte{data}, layouts), pc)
	}
}

// imagePages pairs images with layouts by page index. Pages without a
// layout get an empty one.
func imagePages(images [][]byte, layouts []*layout.Page) []pdfdoc.ImagePage {
	pages := make([]pdfdoc.ImagePage, len(images))
	for i, img := range images {
		pages[i].Image = img
		if i < len(layouts) {
			pages[i].Layout = layouts[i]
		}
	}
	return pages
}
