package raster

import (
	"context"
	"errors"
	"os"
	"testing"
)

// fakePdftoppm writes one file per page name under the output prefix.
type fakePdftoppm struct {
	pages []string
	err   error
	args  []string
}

func (f *fakePdftoppm) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.args = args
	if f.err != nil {
		return nil, []byte("Syntax Error: Couldn't read xref table"), f.err
	}
	prefix := args[len(args)-1]
	for _, p := range f.pages {
		if err := os.WriteFile(prefix+"-"+p+".png", []byte("png "+p), 0o644); err != nil {
			return nil, nil, err
		}
	}
	return nil, nil, nil
}

func TestPagesOrdersNumerically(t *testing.T) {
	fake := &fakePdftoppm{pages: []string{"10", "2", "1"}}
	r := &Rasterizer{Pdftoppm: "pdftoppm", DPI: 200, Runner: fake}

	pages, err := r.Pages(context.Background(), "in.pdf")
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	want := []string{"png 1", "png 2", "png 10"}
	if len(pages) != len(want) {
		t.Fatalf("got %d pages", len(pages))
	}
	for i := range want {
		if string(pages[i]) != want[i] {
			t.Errorf("page %d = %q, want %q", i+1, pages[i], want[i])
		}
	}
	if fake.args[0] != "-r" || fake.args[1] != "200" || fake.args[2] != "-png" || fake.args[3] != "in.pdf" {
		t.Errorf("args = %v", fake.args)
	}
}

func TestPagesErrors(t *testing.T) {
	r := &Rasterizer{Pdftoppm: "pdftoppm", DPI: 150, Runner: &fakePdftoppm{err: errors.New("exit status 1")}}
	if _, err := r.Pages(context.Background(), "in.pdf"); err == nil {
		t.Error("expected error when pdftoppm fails")
	}

	r.Runner = &fakePdftoppm{}
	if _, err := r.Pages(context.Background(), "in.pdf"); err == nil {
		t.Error("expected error when no pages are rendered")
	}
}

func TestPageNumber(t *testing.T) {
	for path, want := range map[string]int{"/tmp/x/page-1.png": 1, "page-012.png": 12, "page.png": 0} {
		if got := pageNumber(path); got != want {
			t.Errorf("pageNumber(%q) = %d, want %d", path, got, want)
		}
	}
}
