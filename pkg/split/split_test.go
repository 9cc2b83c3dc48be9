package split

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestGroups(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	tests := []struct {
		size int
		want []int // group lengths
	}{
		{5, []int{5, 5, 1}},
		{0, []int{5, 5, 1}},
		{11, []int{11}},
		{20, []int{11}},
		{1, []int{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}},
	}
	for _, tt := range tests {
		got := Groups(items, tt.size)
		if len(got) != len(tt.want) {
			t.Errorf("size %d: %d groups, want %d", tt.size, len(got), len(tt.want))
			continue
		}
		for i := range got {
			if len(got[i]) != tt.want[i] {
				t.Errorf("size %d: group %d has %d items, want %d", tt.size, i, len(got[i]), tt.want[i])
			}
		}
	}
	if Groups([]int{}, 5) != nil {
		t.Error("empty input should give no groups")
	}
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestStack(t *testing.T) {
	red := color.RGBA{255, 0, 0, 255}
	blue := color.RGBA{0, 0, 255, 255}
	out := Stack([]image.Image{solid(10, 5, red), solid(20, 3, blue)})

	if b := out.Bounds(); b.Dx() != 20 || b.Dy() != 8 {
		t.Fatalf("bounds = %v, want 20x8", b)
	}
	if got := out.RGBAAt(0, 0); got != red {
		t.Errorf("top = %v", got)
	}
	if got := out.RGBAAt(15, 2); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("padding = %v, want white", got)
	}
	if got := out.RGBAAt(15, 6); got != blue {
		t.Errorf("bottom = %v", got)
	}
}

func encode(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestWriteGroups(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "processed")
	page := encode(t, solid(4, 2, color.Black))
	pages := [][]byte{page, page, page, page, page, page, page}

	paths, err := WriteGroups(context.Background(), pages, 5, dir, nil)
	if err != nil {
		t.Fatalf("WriteGroups: %v", err)
	}
	want := []string{filepath.Join(dir, "group_1.png"), filepath.Join(dir, "group_2.png")}
	if len(paths) != 2 || paths[0] != want[0] || paths[1] != want[1] {
		t.Fatalf("paths = %v, want %v", paths, want)
	}

	f, err := os.Open(paths[1])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 4 || cfg.Height != 4 {
		t.Errorf("group 2 is %dx%d, want 4x4", cfg.Width, cfg.Height)
	}

	if _, err := WriteGroups(context.Background(), [][]byte{[]byte("junk")}, 5, dir, nil); err == nil {
		t.Error("expected decode error")
	}
	if _, err := WriteGroups(context.Background(), nil, 5, dir, nil); err == nil {
		t.Error("expected error for no pages")
	}
}
