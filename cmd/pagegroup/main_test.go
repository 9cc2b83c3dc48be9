package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/gardar/redactor/pkg/redact"
)

func TestRunInputErrors(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(pdf, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
	}{
		{"no input", nil},
		{"missing", []string{filepath.Join(dir, "missing.pdf")}},
		{"not a pdf", []string{dir}},
		{"bad group size", []string{"-pages-per-group", "0", pdf}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := run(context.Background(), tt.args, io.Discard); !errors.Is(err, redact.ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestRunMissingRenderer(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(pdf, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := run(context.Background(), []string{"-pdftoppm", filepath.Join(dir, "no-such-binary"), "-output-dir", dir, pdf}, io.Discard)
	if err == nil {
		t.Fatal("expected error when pdftoppm cannot be run")
	}
}
