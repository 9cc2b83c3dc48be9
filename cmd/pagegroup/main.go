// pagegroup is a command-line tool for splitting a PDF into grouped page images.
//
// Every page is rendered with pdftoppm and consecutive pages are stacked
// vertically on a white canvas, pages-per-group at a time. The images are
// written as group_1.png, group_2.png, ... to the output directory.
//
// Usage:
//
//	pagegroup [options] input.pdf
//
// Options:
//
//	-output-dir string     Directory for the group images (default "processed")
//	-pages-per-group int   Pages stacked into each image (default 5)
//	-dpi int               Rendering resolution (default 150)
//	-pdftoppm string       pdftoppm binary (default "pdftoppm")
//	-debug                 Enable debug logging
//
// Example:
//
//	pagegroup -output-dir processed statement_redacted.pdf
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/gardar/redactor/pkg/raster"
	"github.com/gardar/redactor/pkg/redact"
	"github.com/gardar/redactor/pkg/split"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("pagegroup", flag.ContinueOnError)
	fs.SetOutput(stderr)
	outputDir := fs.String("output-dir", "processed", "Directory for the group images")
	perGroup := fs.Int("pages-per-group", split.DefaultPagesPerGroup, "Pages stacked into each image")
	dpi := fs.Int("dpi", raster.DefaultDPI, "Rendering resolution")
	pdftoppm := fs.String("pdftoppm", "pdftoppm", "pdftoppm binary")
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: pagegroup [options] input.pdf")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: expected one input PDF, got %d", redact.ErrInvalidInput, fs.NArg())
	}
	input := fs.Arg(0)
	if err := redact.CheckInput(input, ".pdf"); err != nil {
		return err
	}
	if *perGroup < 1 {
		return fmt.Errorf("%w: -pages-per-group must be positive, got %d", redact.ErrInvalidInput, *perGroup)
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	rast := raster.New(*dpi, log)
	rast.Pdftoppm = *pdftoppm
	pages, err := rast.Pages(ctx, input)
	if err != nil {
		return err
	}
	files, err := split.WriteGroups(ctx, pages, *perGroup, *outputDir, log)
	if err != nil {
		return err
	}
	log.Info("created group images", "count", len(files), "dir", *outputDir)
	return nil
}
