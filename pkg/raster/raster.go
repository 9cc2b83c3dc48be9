// Package raster renders PDF pages to PNG images with poppler's pdftoppm.
package raster

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DefaultDPI is the resolution pages are rendered at.
const DefaultDPI = 150

// Rasterizer renders PDFs page by page.
type Rasterizer struct {
	Pdftoppm string // Path or name of the pdftoppm binary
	DPI      int
	Runner   Runner
	Logger   *slog.Logger
}

// New returns a Rasterizer using pdftoppm from PATH.
func New(dpi int, log *slog.Logger) *Rasterizer {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	if log == nil {
		log = slog.Default()
	}
	return &Rasterizer{Pdftoppm: "pdftoppm", DPI: dpi, Runner: ExecRunner(log), Logger: log}
}

// Pages renders every page of the PDF at path and returns the PNG data in
// page order.
func (r *Rasterizer) Pages(ctx context.Context, path string) ([][]byte, error) {
	tmpDir, err := os.MkdirTemp("", "redact-pp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			r.logger().Warn("failed to remove temp dir", "dir", tmpDir, "error", err)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 150 -png <in.pdf> <tmp/page>
	_, errb, err := r.Runner.Run(ctx, r.Pdftoppm, "-r", fmt.Sprintf("%d", r.DPI), "-png", path, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w: %s", err, strings.TrimSpace(string(errb)))
	}

	// collect generated pngs (page-1.png ... or zero padded page-01.png ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no images for %s", path)
	}
	sort.Slice(matches, func(i, j int) bool {
		return pageNumber(matches[i]) < pageNumber(matches[j])
	})

	pages := make([][]byte, len(matches))
	for i, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			return nil, fmt.Errorf("failed to read rendered page %d: %w", i+1, err)
		}
		pages[i] = data
	}
	r.logger().Debug("rendered PDF", "path", path, "pages", len(pages), "dpi", r.DPI)
	return pages, nil
}

// pageNumber extracts N from ".../page-N.png".
func pageNumber(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".png")
	n, _ := strconv.Atoi(base[strings.LastIndex(base, "-")+1:])
	return n
}

func (r *Rasterizer) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}
