package redact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gardar/redactor/pkg/layout"
	"github.com/gardar/redactor/pkg/pii"
)

// fakeDoc is an in-memory Document whose pages are layout pages.
type fakeDoc struct {
	pages   []*fakePage
	saved   string
	closed  int
	saveErr error
}

type fakePage struct {
	mu      sync.Mutex
	lp      *layout.Page
	pending []Region
	applied [][]Region
}

func (d *fakeDoc) PageCount() int { return len(d.pages) }

func (d *fakeDoc) Page(i int) (Page, error) { return d.pages[i], nil }

func (d *fakeDoc) Save(path string) error {
	if d.saveErr != nil {
		return d.saveErr
	}
	d.saved = path
	return nil
}

func (d *fakeDoc) Close() error {
	d.closed++
	return nil
}

func (p *fakePage) Text() string                  { return p.lp.Text() }
func (p *fakePage) Search(s string) []layout.Rect { return p.lp.Search(s) }

func (p *fakePage) AddRedaction(r Region) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, r)
}

func (p *fakePage) ApplyRedactions() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applied = append(p.applied, p.pending)
	p.pending = nil
	return nil
}

// textPage lays out each line of text on a 10 units per rune grid.
func textPage(text string) *fakePage {
	var lines []layout.Line
	for y, ln := range strings.Split(text, "\n") {
		var words []layout.Word
		x := 0.0
		for _, w := range strings.Fields(ln) {
			width := 10 * float64(len([]rune(w)))
			words = append(words, layout.Word{Text: w, Box: layout.Rect{X0: x, Y0: float64(y * 20), X1: x + width, Y1: float64(y*20 + 12)}})
			x += width + 10
		}
		lines = append(lines, layout.Line{Words: words})
	}
	return &fakePage{lp: layout.NewPage(600, 800, lines)}
}

func newDoc(texts ...string) *fakeDoc {
	d := &fakeDoc{}
	for _, t := range texts {
		d.pages = append(d.pages, textPage(t))
	}
	return d
}

func patternEngine(t *testing.T, extra ...pii.Detector) *Engine {
	t.Helper()
	rs, err := pii.NewRuleset(pii.DefaultRules())
	if err != nil {
		t.Fatal(err)
	}
	e, err := NewEngine(append([]pii.Detector{rs}, extra...), Options{Workers: 4})
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestFitFontSize(t *testing.T) {
	tests := []struct {
		name  string
		rect  layout.Rect
		label string
		want  int
	}{
		{"tiny rect long label", layout.Rect{X1: 2, Y1: 2}, strings.Repeat("x", 20), 1},
		{"width bound", layout.Rect{X1: 70, Y1: 100}, "[email]", 14},
		{"height bound", layout.Rect{X1: 1000, Y1: 10}, "[email]", 9},
		{"empty rect", layout.Rect{}, "[email]", 1},
		{"inverted rect", layout.Rect{X0: 10, Y0: 10}, "[email]", 1},
		{"empty label", layout.Rect{X1: 100, Y1: 10}, "", 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FitFontSize(tt.rect, tt.label); got != tt.want {
				t.Errorf("FitFontSize = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestProcessEndToEnd(t *testing.T) {
	doc := newDoc("Contact: a@b.com, call +1 415 5551234")
	rep, err := patternEngine(t).Process(context.Background(), doc)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	applied := doc.pages[0].applied
	if len(applied) != 1 {
		t.Fatalf("ApplyRedactions called %d times, want 1", len(applied))
	}
	regions := applied[0]
	if len(regions) != 2 {
		t.Fatalf("got %d regions, want 2: %+v", len(regions), regions)
	}
	if regions[0].Label != "[email]" || regions[1].Label != "[phone_international]" {
		t.Errorf("labels = %q, %q", regions[0].Label, regions[1].Label)
	}
	if regions[0].Rect.X1 > regions[1].Rect.X0 {
		t.Errorf("regions overlap: %+v %+v", regions[0].Rect, regions[1].Rect)
	}
	for _, r := range regions {
		if r.FontSize < 1 {
			t.Errorf("font size %d for %s", r.FontSize, r.Label)
		}
	}

	pr := rep.Pages[0]
	if pr.Spans != 2 || pr.Categories["email"] != 1 || pr.Categories["phone_international"] != 1 {
		t.Errorf("page report = %+v", pr)
	}
	if rep.RunID == "" || rep.Policy != "longest" {
		t.Errorf("report = %+v", rep)
	}
}

func TestProcessNoPII(t *testing.T) {
	doc := newDoc("Nothing to see here", "")
	e := patternEngine(t)

	dir := t.TempDir()
	in := filepath.Join(dir, "in.pdf")
	out := filepath.Join(dir, "out.pdf")
	open := func(ctx context.Context, path string) (Document, error) { return doc, nil }

	rep, err := e.RedactFile(context.Background(), open, in, out)
	if err != nil {
		t.Fatalf("RedactFile: %v", err)
	}
	for i, p := range doc.pages {
		if len(p.applied) != 0 || len(p.pending) != 0 {
			t.Errorf("page %d was modified", i)
		}
	}
	if spans, regions, _ := rep.Totals(); spans != 0 || regions != 0 {
		t.Errorf("totals = %d spans, %d regions", spans, regions)
	}
	if doc.saved != out || doc.closed != 1 {
		t.Errorf("saved=%q closed=%d", doc.saved, doc.closed)
	}
}

func TestProcessRedactsEveryOccurrence(t *testing.T) {
	doc := newDoc("a@b.com\nreply to a@b.com")
	if _, err := patternEngine(t).Process(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
	// Two spans with the same text find the same two rectangles; each is applied once.
	if got := len(doc.pages[0].applied[0]); got != 2 {
		t.Errorf("got %d regions, want 2", got)
	}
}

type slowDetector struct{}

func (slowDetector) Name() string { return "entities" }

func (slowDetector) Detect(ctx context.Context, text string) ([]pii.Span, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type brokenDetector struct{}

func (brokenDetector) Name() string { return "broken" }

func (brokenDetector) Detect(ctx context.Context, text string) ([]pii.Span, error) {
	return nil, errors.New("model crashed")
}

func TestProcessDegradesOnDetectorFailure(t *testing.T) {
	rs, err := pii.NewRuleset(pii.DefaultRules())
	if err != nil {
		t.Fatal(err)
	}
	e, err := NewEngine([]pii.Detector{rs, slowDetector{}, brokenDetector{}}, Options{DetectTimeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}

	doc := newDoc("mail a@b.com")
	rep, err := e.Process(context.Background(), doc)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	pr := rep.Pages[0]
	if pr.Spans != 1 || pr.Regions != 1 {
		t.Errorf("pattern spans lost: %+v", pr)
	}
	if len(pr.Degraded) != 2 || pr.Degraded[0] != "entities" || pr.Degraded[1] != "broken" {
		t.Errorf("degraded = %v", pr.Degraded)
	}
	if _, _, degraded := rep.Totals(); degraded != 1 {
		t.Errorf("degraded pages = %d", degraded)
	}
}

func TestProcessCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := patternEngine(t).Process(ctx, newDoc("a@b.com")); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestProcessMissedSpan(t *testing.T) {
	// Layout text differs from what the detector reports: the span is kept
	// in the plan as missed and nothing is applied.
	page := textPage("mail a@b.com")
	e, err := NewEngine([]pii.Detector{fixedDetector{{Start: 0, End: 4, Category: "x"}}}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	plan, err := e.Plan(context.Background(), 0, &missPage{page})
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Missed) != 1 || len(plan.Regions) != 0 {
		t.Errorf("plan = %+v", plan)
	}
}

func TestProcessZeroWidthRects(t *testing.T) {
	// A layout without glyph widths yields rectangles with no area. They
	// cannot cover anything, so the span counts as missed.
	page := textPage("mail a@b.com")
	e, err := NewEngine([]pii.Detector{fixedDetector{{Start: 0, End: 4, Category: "x"}}}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	plan, err := e.Plan(context.Background(), 0, &flatPage{page})
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Missed) != 1 || len(plan.Regions) != 0 {
		t.Errorf("plan = %+v", plan)
	}
}

type fixedDetector []pii.Span

func (fixedDetector) Name() string { return "fixed" }

func (f fixedDetector) Detect(ctx context.Context, text string) ([]pii.Span, error) {
	return f, nil
}

type missPage struct{ *fakePage }

func (missPage) Search(string) []layout.Rect { return nil }

type flatPage struct{ *fakePage }

func (flatPage) Search(string) []layout.Rect {
	return []layout.Rect{{X0: 50, Y0: 40, X1: 50, Y1: 52}, {X0: 10, Y0: 60, X1: 30, Y1: 60}}
}

func TestRedactFileClosesOnFailure(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.pdf")
	e := patternEngine(t)

	doc := newDoc("a@b.com")
	doc.saveErr = errors.New("disk full")
	open := func(ctx context.Context, path string) (Document, error) { return doc, nil }

	_, err := e.RedactFile(context.Background(), open, in, filepath.Join(dir, "out.pdf"))
	if !errors.Is(err, ErrSave) {
		t.Errorf("err = %v, want ErrSave", err)
	}
	if doc.closed != 1 {
		t.Errorf("closed %d times, want 1", doc.closed)
	}

	failOpen := func(ctx context.Context, path string) (Document, error) { return nil, errors.New("bad xref") }
	if _, err := e.RedactFile(context.Background(), failOpen, in, filepath.Join(dir, "out.pdf")); !errors.Is(err, ErrOpen) {
		t.Errorf("err = %v, want ErrOpen", err)
	}

	if _, err := e.RedactFile(context.Background(), open, in, in); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestCheckInput(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "doc.PDF")
	if err := os.WriteFile(pdf, []byte("%PDF-1.7"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CheckInput(pdf, ".pdf"); err != nil {
		t.Errorf("CheckInput(%s) = %v", pdf, err)
	}
	for _, path := range []string{"", filepath.Join(dir, "missing.pdf"), dir} {
		if err := CheckInput(path, ".pdf"); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("CheckInput(%q) = %v, want ErrInvalidInput", path, err)
		}
	}
	if err := CheckInput(pdf, ".png"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("wrong extension accepted: %v", err)
	}
}

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		input, output, want string
	}{
		{"/data/ticket.pdf", "", "/data/ticket_redacted.pdf"},
		{"/data/ticket.pdf", "/out/clean.pdf", "/out/clean.pdf"},
		{"/data/ticket.pdf", "/out/", "/out/ticket_redacted.pdf"},
		{"/data/ticket.pdf", dir, filepath.Join(dir, "ticket_redacted.pdf")},
	}
	for _, tt := range tests {
		if got := OutputPath(tt.input, tt.output); got != tt.want {
			t.Errorf("OutputPath(%q, %q) = %q, want %q", tt.input, tt.output, got, tt.want)
		}
	}
}

func TestReportWriteFile(t *testing.T) {
	rep := &Report{RunID: "run", Policy: "longest", Pages: []PageReport{{Page: 1, Spans: 1, Regions: 1, Categories: map[string]int{"email": 1}}}}
	path := filepath.Join(t.TempDir(), "report.yaml")
	if err := rep.WriteFile(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"run_id: run", "merge_policy: longest", "email: 1"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("report missing %q:\n%s", want, data)
		}
	}
}

func TestNewEngineRequiresDetectors(t *testing.T) {
	if _, err := NewEngine(nil, Options{}); err == nil {
		t.Error("expected error without detectors")
	}
	if _, err := NewEngine([]pii.Detector{nil}, Options{}); err == nil {
		t.Error("expected error for nil detector")
	}
}
