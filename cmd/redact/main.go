// redact is a command-line tool for removing personal data from PDFs.
//
// Every page's text is scanned by the pattern rules (and optionally a named
// entity sidecar), overlapping findings are merged, and each finding is
// covered with an opaque box labelled with its category, e.g. "[email]".
// The redacted copy is written next to the input unless -output says
// otherwise. The redacted pages can then be grouped into stacked PNG images.
//
// Usage:
//
//	redact [options] input.pdf
//
// Output options:
//
//	-output string          Output PDF path or directory (default <input>_redacted.pdf)
//	-report string          Path to save a YAML run report
//	-split-dir string       Directory to save grouped page images of the redacted PDF
//	-pages-per-group int    Pages stacked into each group image (default 5)
//
// Detection options:
//
//	-config string   Path to a YAML configuration file
//	-ner-url string  Named entity sidecar URL (enables entity detection)
//	-policy string   How overlapping findings are merged: longest or concat
//	-workers int     Pages scanned concurrently
//
// Layout options:
//
//	-layout string   Where page text comes from: text, hocr, gdocai or ocr (default text)
//	-hocr string     hOCR file for -layout hocr
//	-dpi int         Resolution used to render pages (default 150)
//
// Processing options:
//
//	-flatten     Redact rendered page images, which also covers pictures of text
//	-force       Redact again even if a redaction layer is already present
//	-keep-text   Leave the covered text in the PDF under the boxes
//	-debug       Enable debug logging and outline every redaction in red
//
// Settings can also be given as REDACT_* environment variables or in a .env
// file. Flags win over the environment, which wins over the config file.
//
// Examples:
//
//	redact statement.pdf
//	redact -output out/ -split-dir processed statement.pdf
//	redact -layout ocr -flatten -report run.yml scan.pdf
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gardar/redactor/pkg/config"
	"github.com/gardar/redactor/pkg/ner"
	"github.com/gardar/redactor/pkg/pii"
	"github.com/gardar/redactor/pkg/raster"
	"github.com/gardar/redactor/pkg/redact"
	"github.com/gardar/redactor/pkg/split"
)

var (
	pdfExts   = []string{".pdf"}
	imageExts = []string{".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp"}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		switch {
		case errors.Is(err, redact.ErrInvalidInput):
			fmt.Fprintln(os.Stderr, "Run 'redact -h' for usage.")
		case errors.Is(err, pii.ErrEngineUnavailable):
			fmt.Fprintln(os.Stderr, "Check that the NER sidecar is running, or drop -ner-url.")
		}
		os.Exit(1)
	}
}

// options are the command line flags. Only flags that were set override
// the loaded configuration.
type options struct {
	output        string
	configPath    string
	layout        string
	hocrPath      string
	nerURL        string
	splitDir      string
	pagesPerGroup int
	report        string
	policy        string
	workers       int
	dpi           int
	debug         bool
	force         bool
	keepText      bool
	flatten       bool
}

func parseFlags(args []string, stderr io.Writer) (*options, string, map[string]bool, error) {
	fs := flag.NewFlagSet("redact", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	fs.StringVar(&o.output, "output", "", "Output PDF path or directory (default <input>_redacted.pdf)")
	fs.StringVar(&o.configPath, "config", "", "Path to a YAML configuration file")
	fs.StringVar(&o.layout, "layout", config.LayoutText, "Page text source: text, hocr, gdocai or ocr")
	fs.StringVar(&o.hocrPath, "hocr", "", "hOCR file for -layout hocr")
	fs.StringVar(&o.nerURL, "ner-url", "", "Named entity sidecar URL (enables entity detection)")
	fs.StringVar(&o.splitDir, "split-dir", "", "Directory to save grouped page images of the redacted PDF")
	fs.IntVar(&o.pagesPerGroup, "pages-per-group", split.DefaultPagesPerGroup, "Pages stacked into each group image")
	fs.StringVar(&o.report, "report", "", "Path to save a YAML run report")
	fs.StringVar(&o.policy, "policy", pii.MergeLongest.String(), "Merge policy for overlapping findings: longest or concat")
	fs.IntVar(&o.workers, "workers", 1, "Pages scanned concurrently")
	fs.IntVar(&o.dpi, "dpi", raster.DefaultDPI, "Resolution used to render pages")
	fs.BoolVar(&o.debug, "debug", false, "Enable debug logging and outline redactions")
	fs.BoolVar(&o.force, "force", false, "Redact again even if a redaction layer already exists")
	fs.BoolVar(&o.keepText, "keep-text", false, "Leave covered text in the PDF under the redaction boxes")
	fs.BoolVar(&o.flatten, "flatten", false, "Redact rendered page images instead of overlaying the PDF")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: redact [options] input.pdf")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, "", nil, err
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if fs.NArg() > 1 {
		return nil, "", nil, fmt.Errorf("%w: expected one input file, got %d", redact.ErrInvalidInput, fs.NArg())
	}
	return &o, fs.Arg(0), set, nil
}

// apply overlays the flags that were given on cfg.
func (o *options) apply(cfg *config.Config, set map[string]bool) {
	if set["layout"] {
		cfg.Layout.Source = o.layout
	}
	if set["hocr"] {
		cfg.Layout.HOCRPath = o.hocrPath
		if !set["layout"] {
			cfg.Layout.Source = config.LayoutHOCR
		}
	}
	if set["ner-url"] {
		cfg.NER.URL = o.nerURL
		cfg.NER.Enabled = o.nerURL != ""
	}
	if set["split-dir"] {
		cfg.Group.Dir = o.splitDir
	}
	if set["pages-per-group"] {
		cfg.Group.PagesPerGroup = o.pagesPerGroup
	}
	if set["report"] {
		cfg.Report = o.report
	}
	if set["policy"] {
		cfg.Policy = o.policy
	}
	if set["workers"] {
		cfg.Workers = o.workers
	}
	if set["dpi"] {
		cfg.Raster.DPI = o.dpi
	}
	if set["debug"] {
		cfg.Debug = o.debug
	}
	if set["force"] {
		cfg.Overlay.Force = o.force
	}
	if set["keep-text"] {
		cfg.Overlay.KeepText = o.keepText
	}
	if set["flatten"] {
		cfg.Flatten = o.flatten
	}
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	o, input, set, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	// The input is checked before anything else is set up.
	if err := redact.CheckInput(input, slices.Concat(pdfExts, imageExts)...); err != nil {
		return err
	}
	isImage := slices.Contains(imageExts, strings.ToLower(filepath.Ext(input)))

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	o.apply(cfg, set)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", redact.ErrInvalidInput, err)
	}
	if isImage && cfg.Layout.Source == config.LayoutText {
		return fmt.Errorf("%w: %s is an image and has no text layer, use -layout ocr, hocr or gdocai", redact.ErrInvalidInput, input)
	}

	log := newLogger(stderr, cfg.Debug)
	slog.SetDefault(log)

	detectors, err := buildDetectors(ctx, cfg, log)
	if err != nil {
		return err
	}
	opts, err := cfg.EngineOptions(log)
	if err != nil {
		return err
	}
	engine, err := redact.NewEngine(detectors, opts)
	if err != nil {
		return err
	}

	rast := raster.New(cfg.Raster.DPI, log)
	rast.Pdftoppm = cfg.Raster.Pdftoppm

	open, cleanup, err := buildOpener(cfg, rast, isImage, log)
	if err != nil {
		return err
	}
	defer cleanup()

	output := redact.OutputPath(input, o.output)
	if dir := filepath.Dir(output); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	rep, err := engine.RedactFile(ctx, open, input, output)
	if rep != nil && cfg.Report != "" {
		if werr := rep.WriteFile(cfg.Report); werr != nil {
			log.Error("failed to write report", "path", cfg.Report, "error", werr)
		} else {
			log.Info("report saved", "path", cfg.Report)
		}
	}
	if err != nil {
		return err
	}

	if cfg.Group.Dir != "" {
		pages, err := rast.Pages(ctx, output)
		if err != nil {
			return fmt.Errorf("failed to render redacted pages: %w", err)
		}
		files, err := split.WriteGroups(ctx, pages, cfg.Group.PagesPerGroup, cfg.Group.Dir, log)
		if err != nil {
			return err
		}
		log.Info("page groups saved", "dir", cfg.Group.Dir, "groups", len(files))
	}
	return nil
}

// buildDetectors returns the pattern rules plus, when configured, the
// entity detector. An unreachable sidecar is fatal.
func buildDetectors(ctx context.Context, cfg *config.Config, log *slog.Logger) ([]pii.Detector, error) {
	rules, err := cfg.Ruleset()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", redact.ErrInvalidInput, err)
	}
	detectors := []pii.Detector{rules}
	log.Debug("pattern rules", "rules", rules.Names())

	if !cfg.NER.Enabled {
		return detectors, nil
	}
	client, err := ner.New(ctx, cfg.NER.URL,
		ner.WithHTTPClient(&http.Client{Timeout: cfg.NER.Timeout}),
		ner.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	entities, err := pii.NewEntityDetector(client)
	if err != nil {
		return nil, err
	}
	return append(detectors, entities), nil
}
