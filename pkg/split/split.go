// Package split repackages rendered pages into grouped images: pages are
// batched in fixed-size groups and each group is stacked vertically into a
// single PNG.
package split

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // register JPEG decoder
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
)

// DefaultPagesPerGroup is the group size used when none is given.
const DefaultPagesPerGroup = 5

// Groups splits items into consecutive batches of size. The last batch may
// be shorter. A size below 1 uses DefaultPagesPerGroup.
func Groups[T any](items []T, size int) [][]T {
	if size < 1 {
		size = DefaultPagesPerGroup
	}
	var groups [][]T
	for start := 0; start < len(items); start += size {
		groups = append(groups, items[start:min(start+size, len(items))])
	}
	return groups
}

// Stack draws imgs top to bottom on a white canvas as wide as the widest
// image and as tall as all images together.
func Stack(imgs []image.Image) *image.RGBA {
	width, height := 0, 0
	for _, img := range imgs {
		b := img.Bounds()
		width = max(width, b.Dx())
		height += b.Dy()
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	y := 0
	for _, img := range imgs {
		b := img.Bounds()
		draw.Draw(canvas, image.Rect(0, y, b.Dx(), y+b.Dy()), img, b.Min, draw.Over)
		y += b.Dy()
	}
	return canvas
}

// WriteGroups decodes the page images, stacks them in groups of perGroup
// and writes dir/group_<n>.png for n = 1, 2, ... It returns the paths
// written. dir is created if needed.
func WriteGroups(ctx context.Context, pages [][]byte, perGroup int, dir string, log *slog.Logger) ([]string, error) {
	if log == nil {
		log = slog.Default()
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages to group")
	}
	if perGroup < 1 {
		perGroup = DefaultPagesPerGroup
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var written []string
	for i, group := range Groups(pages, perGroup) {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		imgs := make([]image.Image, len(group))
		for j, data := range group {
			img, _, err := image.Decode(bytes.NewReader(data))
			if err != nil {
				return written, fmt.Errorf("failed to decode page %d: %w", i*perGroup+j+1, err)
			}
			imgs[j] = img
		}

		path := filepath.Join(dir, fmt.Sprintf("group_%d.png", i+1))
		if err := writePNG(path, Stack(imgs)); err != nil {
			return written, err
		}
		written = append(written, path)
		log.Info("saved page group", "path", path, "pages", len(group))
	}
	return written, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}
