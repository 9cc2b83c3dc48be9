package redact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gardar/redactor/pkg/layout"
	"github.com/gardar/redactor/pkg/pii"
)

// DefaultDetectTimeout bounds a single detector call on one page.
const DefaultDetectTimeout = 30 * time.Second

// Options holds user options for an Engine
type Options struct {
	Policy        pii.MergePolicy // How overlapping spans are merged
	Workers       int             // Pages planned concurrently (< 1 = 1)
	DetectTimeout time.Duration   // Per page, per detector limit (0 = DefaultDetectTimeout, < 0 = none)
	Logger        *slog.Logger    // nil = slog.Default()
}

// DefaultOptions returns options with sensible defaults
func DefaultOptions() Options {
	return Options{
		Policy:        pii.MergeLongest,
		Workers:       1,
		DetectTimeout: DefaultDetectTimeout,
	}
}

// Engine runs the detect, merge, plan and apply sequence over documents.
// An Engine is safe for concurrent use; each Process call owns its document.
type Engine struct {
	detectors []pii.Detector
	opts      Options
	log       *slog.Logger
}

// NewEngine creates an engine from the given detectors. At least one
// detector is required.
func NewEngine(detectors []pii.Detector, opts Options) (*Engine, error) {
	if len(detectors) == 0 {
		return nil, fmt.Errorf("no detectors configured")
	}
	for i, d := range detectors {
		if d == nil {
			return nil, fmt.Errorf("detector %d is nil", i)
		}
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.DetectTimeout == 0 {
		opts.DetectTimeout = DefaultDetectTimeout
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{detectors: detectors, opts: opts, log: log}, nil
}

// PagePlan is the read-only outcome of detection on one page: the merged
// spans and the regions that will be applied.
type PagePlan struct {
	Page     int        // 0-based page index
	Spans    []pii.Span // merged, non-overlapping, sorted by start
	Regions  []Region   // deduplicated regions for all spans
	Missed   []pii.Span // merged spans with no rectangle on the page
	Degraded []string   // detectors that failed or timed out on this page
}

// Process redacts every page of doc. It does not save or close doc.
// Planning runs on up to Options.Workers pages at once; applying is
// serialized so only one page mutates doc at any time.
func (e *Engine) Process(ctx context.Context, doc Document) (*Report, error) {
	start := time.Now()
	n := doc.PageCount()
	rep := &Report{
		RunID:   uuid.NewString(),
		Policy:  e.opts.Policy.String(),
		Started: start,
		Pages:   make([]PageReport, n),
	}
	log := e.log.With("run_id", rep.RunID)
	log.Debug("processing document", "pages", n, "workers", e.opts.Workers, "policy", rep.Policy)

	var applyMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)

	for i := range n {
		g.Go(func() error {
			page, err := doc.Page(i)
			if err != nil {
				return fmt.Errorf("page %d: %w", i+1, err)
			}
			plan, err := e.Plan(gctx, i, page)
			if err != nil {
				return fmt.Errorf("page %d: %w", i+1, err)
			}

			applyMu.Lock()
			defer applyMu.Unlock()
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := apply(page, plan); err != nil {
				return fmt.Errorf("apply redactions on page %d: %w", i+1, err)
			}

			rep.Pages[i] = summarize(plan)
			log.Info("page redacted",
				"page", i+1,
				"spans", len(plan.Spans),
				"regions", len(plan.Regions),
				"missed", len(plan.Missed),
				"degraded", len(plan.Degraded) > 0)
			return nil
		})
	}

	err := g.Wait()
	rep.Elapsed = time.Since(start).Round(time.Millisecond).String()
	if err != nil {
		return rep, err
	}
	return rep, nil
}

// Plan runs detection on one page and computes its regions without
// modifying the page. A failing detector degrades the page to the spans of
// the remaining detectors; only cancellation of ctx is returned as an error.
func (e *Engine) Plan(ctx context.Context, index int, page Page) (PagePlan, error) {
	plan := PagePlan{Page: index}
	text := page.Text()
	if text == "" {
		return plan, nil
	}

	spans, degraded, err := e.detect(ctx, index, text)
	if err != nil {
		return plan, err
	}
	plan.Degraded = degraded
	plan.Spans = pii.Resolve(pii.ValidSpans(text, spans), e.opts.Policy)

	seen := make(map[layout.Rect]bool)
	for _, sp := range plan.Spans {
		rects := slices.DeleteFunc(page.Search(text[sp.Start:sp.End]), layout.Rect.IsEmpty)
		if len(rects) == 0 {
			// Extraction and layout disagree on this substring, or the
			// layout has no extent for it; nothing to cover.
			e.log.Warn("no rectangle found for span",
				"page", index+1, "category", sp.Category, "bytes", sp.Len())
			plan.Missed = append(plan.Missed, sp)
			continue
		}
		label := Label(sp.Category)
		for _, r := range rects {
			if seen[r] {
				continue
			}
			seen[r] = true
			plan.Regions = append(plan.Regions, Region{Rect: r, Label: label, FontSize: FitFontSize(r, label)})
		}
	}
	return plan, nil
}

// detect runs all detectors concurrently, each under its own time limit.
func (e *Engine) detect(ctx context.Context, index int, text string) ([]pii.Span, []string, error) {
	results := make([][]pii.Span, len(e.detectors))
	failed := make([]error, len(e.detectors))

	var wg sync.WaitGroup
	for i, d := range e.detectors {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dctx, cancel := ctx, context.CancelFunc(func() {})
			if e.opts.DetectTimeout > 0 {
				dctx, cancel = context.WithTimeout(ctx, e.opts.DetectTimeout)
			}
			defer cancel()
			results[i], failed[i] = d.Detect(dctx, text)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var (
		spans    []pii.Span
		degraded []string
	)
	for i, d := range e.detectors {
		if err := failed[i]; err != nil {
			reason := "error"
			if errors.Is(err, context.DeadlineExceeded) {
				reason = "timeout"
			}
			e.log.Warn("detector failed, continuing without it",
				"page", index+1, "detector", d.Name(), "reason", reason, "error", err)
			degraded = append(degraded, d.Name())
			continue
		}
		spans = append(spans, results[i]...)
	}
	return spans, degraded, nil
}

// apply buffers the plan's regions and applies them in one mutation.
// Pages without regions are left untouched.
func apply(page Page, plan PagePlan) error {
	if len(plan.Regions) == 0 {
		return nil
	}
	for _, r := range plan.Regions {
		page.AddRedaction(r)
	}
	return page.ApplyRedactions()
}
