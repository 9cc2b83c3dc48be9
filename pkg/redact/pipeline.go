package redact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CheckInput verifies that path is an existing regular file. When exts is
// not empty the file name must end in one of them (case-insensitive).
func CheckInput(path string, exts ...string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: input path is required", ErrInvalidInput)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: input file does not exist: %s", ErrInvalidInput, path)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: input is a directory: %s", ErrInvalidInput, path)
	}
	if len(exts) == 0 {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s must be one of %s", ErrInvalidInput, path, strings.Join(exts, ", "))
}

// OutputPath derives the destination for input. An empty output puts
// "<name>_redacted.pdf" next to the input; an existing directory or a path
// ending in a separator receives that file name inside it.
func OutputPath(input, output string) string {
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + "_redacted.pdf"
	if output == "" {
		return filepath.Join(filepath.Dir(input), name)
	}
	if strings.HasSuffix(output, string(filepath.Separator)) || strings.HasSuffix(output, "/") {
		return filepath.Join(output, name)
	}
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return filepath.Join(output, name)
	}
	return output
}

// RedactFile opens input, redacts every page and saves the result to
// output. The document is closed on every path. The input file is never
// written to.
func (e *Engine) RedactFile(ctx context.Context, open Opener, input, output string) (rep *Report, err error) {
	if samePath(input, output) {
		return nil, fmt.Errorf("%w: output %s would overwrite the input", ErrInvalidInput, output)
	}

	doc, err := open(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrOpen, input, err)
	}
	defer func() {
		if cerr := doc.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", input, cerr)
		}
	}()

	rep, err = e.Process(ctx, doc)
	if rep != nil {
		rep.Input, rep.Output = input, output
	}
	if err != nil {
		return rep, fmt.Errorf("redacting %s: %w", input, err)
	}

	if err := doc.Save(output); err != nil {
		return rep, fmt.Errorf("%w to %s: %w", ErrSave, output, err)
	}

	spans, regions, degraded := rep.Totals()
	e.log.Info("redacted document saved",
		"run_id", rep.RunID,
		"output", output,
		"pages", len(rep.Pages),
		"spans", spans,
		"regions", regions,
		"degraded_pages", degraded,
		"elapsed", rep.Elapsed)
	return rep, nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA == nil && errB == nil && absA == absB {
		return true
	}
	ia, errA := os.Stat(a)
	ib, errB := os.Stat(b)
	return errA == nil && errB == nil && os.SameFile(ia, ib)
}
