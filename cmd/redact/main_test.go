package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codeberg.org/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/gardar/redactor/pkg/config"
	"github.com/gardar/redactor/pkg/layout"
	"github.com/gardar/redactor/pkg/pdfdoc"
	"github.com/gardar/redactor/pkg/pii"
	"github.com/gardar/redactor/pkg/raster"
	"github.com/gardar/redactor/pkg/redact"
)

// sampleHOCR describes the sample PDF page at twice its point size, with
// word boxes matching 12pt Helvetica.
const sampleHOCR = `<html><body>
<div class="ocr_page" id="page_1" title="bbox 0 0 1200 1600">
 <span class="ocr_line" id="line_1_1" title="bbox 100 76 530 100">
  <span class="ocrx_word" title="bbox 100 76 190 100; x_wconf 95">Contact:</span>
  <span class="ocrx_word" title="bbox 196 76 306 100; x_wconf 95">a@b.com,</span>
  <span class="ocrx_word" title="bbox 312 76 349 100; x_wconf 95">call</span>
  <span class="ocrx_word" title="bbox 355 76 383 100; x_wconf 95">+1</span>
  <span class="ocrx_word" title="bbox 389 76 430 100; x_wconf 95">415</span>
  <span class="ocrx_word" title="bbox 436 76 530 100; x_wconf 95">5551234</span>
 </span>
</div>
</body></html>`

func writeSample(t *testing.T, dir string) (pdfPath, hocrPath string) {
	t.Helper()
	pdfPath = filepath.Join(dir, "statement.pdf")
	p := fpdf.New("P", "pt", "", "")
	p.AddPageFormat("P", fpdf.SizeType{Wd: 600, Ht: 800})
	p.SetFont("Helvetica", "", 12)
	p.Text(50, 50, "Contact: a@b.com, call +1 415 5551234")
	if err := p.OutputFileAndClose(pdfPath); err != nil {
		t.Fatal(err)
	}
	hocrPath = filepath.Join(dir, "statement.hocr")
	if err := os.WriteFile(hocrPath, []byte(sampleHOCR), 0o644); err != nil {
		t.Fatal(err)
	}
	return pdfPath, hocrPath
}

func TestRunRedactsWithHOCR(t *testing.T) {
	dir := t.TempDir()
	in, hocrPath := writeSample(t, dir)
	out := filepath.Join(dir, "out", "clean.pdf")
	report := filepath.Join(dir, "run.yml")

	var stderr bytes.Buffer
	err := run(context.Background(), []string{"-hocr", hocrPath, "-output", out, "-report", report, in}, &stderr)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, stderr.String())
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Error("output is not a PDF")
	}

	rep, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	for _, want := range []string{"email: 1", "phone_international: 1", "regions: 2"} {
		if !strings.Contains(string(rep), want) {
			t.Errorf("report missing %q:\n%s", want, rep)
		}
	}
	if strings.Contains(string(rep), "a@b.com") {
		t.Error("report leaks redacted text")
	}
	assertScrubbed(t, out)

	// The redacted copy carries a redaction layer now.
	err = run(context.Background(), []string{"-hocr", hocrPath, "-output", filepath.Join(dir, "again.pdf"), out}, io.Discard)
	if !errors.Is(err, pdfdoc.ErrAlreadyRedacted) || !errors.Is(err, redact.ErrOpen) {
		t.Errorf("second pass err = %v, want ErrAlreadyRedacted", err)
	}
}

func TestRunRedactsTextLayer(t *testing.T) {
	dir := t.TempDir()
	in, _ := writeSample(t, dir)
	out := filepath.Join(dir, "clean.pdf")
	report := filepath.Join(dir, "run.yml")

	var stderr bytes.Buffer
	if err := run(context.Background(), []string{"-output", out, "-report", report, in}, &stderr); err != nil {
		t.Fatalf("run: %v\n%s", err, stderr.String())
	}
	rep, err := os.ReadFile(report)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(rep), "regions: 2") || strings.Contains(string(rep), "missed") {
		t.Errorf("report:\n%s", rep)
	}
	assertScrubbed(t, out)
}

// assertScrubbed fails if the redacted address or phone number is still in
// any stream of the PDF at path.
func assertScrubbed(t *testing.T, path string) {
	t.Helper()
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var b strings.Builder
	for _, e := range ctx.Table {
		if e == nil || e.Free {
			continue
		}
		if sd, ok := e.Object.(types.StreamDict); ok && sd.Decode() == nil {
			b.Write(sd.Content)
		}
	}
	streams := b.String()
	for _, leak := range []string{"a@b.com", "6140622e636f6d", "5551234", "35353531323334"} {
		if strings.Contains(streams, leak) {
			t.Errorf("%s still contains %q", filepath.Base(path), leak)
		}
	}
}

func TestRunInputErrors(t *testing.T) {
	dir := t.TempDir()
	in, _ := writeSample(t, dir)
	img := filepath.Join(dir, "scan.png")
	if err := os.WriteFile(img, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	txt := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txt, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
	}{
		{"no input", nil},
		{"missing", []string{filepath.Join(dir, "missing.pdf")}},
		{"directory", []string{dir}},
		{"extension", []string{txt}},
		{"two inputs", []string{in, in}},
		{"image without ocr", []string{img}},
		{"bad policy", []string{"-policy", "shortest", in}},
		{"hocr layout without file", []string{"-layout", "hocr", in}},
		{"same output", []string{"-output", in, in}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(context.Background(), tt.args, io.Discard)
			if !errors.Is(err, redact.ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestOptionsApply(t *testing.T) {
	o, input, set, err := parseFlags([]string{"-hocr", "a.hocr", "-workers", "3", "-flatten", "-keep-text", "-ner-url", "http://ner:8001", "in.pdf"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if input != "in.pdf" {
		t.Errorf("input = %q", input)
	}

	cfg := config.Default()
	cfg.Report = "keep.yml"
	o.apply(cfg, set)
	if cfg.Layout.Source != config.LayoutHOCR || cfg.Layout.HOCRPath != "a.hocr" {
		t.Errorf("layout = %+v", cfg.Layout)
	}
	if cfg.Workers != 3 || !cfg.Flatten || !cfg.NER.Enabled || !cfg.Overlay.KeepText {
		t.Errorf("cfg = %+v", cfg)
	}
	// Flags that were not given leave the config alone.
	if cfg.Report != "keep.yml" || cfg.Policy != "longest" {
		t.Errorf("unset flags changed cfg: %q %q", cfg.Report, cfg.Policy)
	}
}

func TestLayoutSource(t *testing.T) {
	rast := raster.New(0, nil)

	cfg := config.Default()
	src, err := layoutSource(cfg, rast, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := src.(pdfdoc.TextLayer); !ok {
		t.Errorf("default source = %T", src)
	}

	cfg.Layout.Source = config.LayoutHOCR
	cfg.Layout.HOCRPath = filepath.Join(t.TempDir(), "missing.hocr")
	if _, err := layoutSource(cfg, rast, nil, nil); err == nil {
		t.Error("expected error for missing hOCR file")
	}

	cfg.Layout.Source = "magic"
	if _, err := layoutSource(cfg, rast, nil, nil); !errors.Is(err, redact.ErrInvalidInput) {
		t.Errorf("err = %v", err)
	}
}

func TestImagePages(t *testing.T) {
	lp := layout.NewPage(10, 10, nil)
	pages := imagePages([][]byte{[]byte("a"), []byte("b")}, []*layout.Page{lp})
	if len(pages) != 2 || pages[0].Layout != lp || pages[1].Layout != nil {
		t.Errorf("pages = %+v", pages)
	}
}

func TestBuildDetectors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok","model":"en_core_web_sm","loaded":false}`)
	}))
	defer srv.Close()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Default()
	dets, err := buildDetectors(context.Background(), cfg, log)
	if err != nil || len(dets) != 1 || dets[0].Name() != "patterns" {
		t.Fatalf("detectors = %v, %v", dets, err)
	}

	cfg.NER.Enabled = true
	cfg.NER.URL = srv.URL
	if _, err := buildDetectors(context.Background(), cfg, log); !errors.Is(err, pii.ErrEngineUnavailable) {
		t.Errorf("err = %v, want ErrEngineUnavailable", err)
	}
}
