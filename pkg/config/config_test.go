package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gardar/redactor/pkg/pdfdoc"
	"github.com/gardar/redactor/pkg/pii"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Group.PagesPerGroup != 5 || cfg.Layout.Source != LayoutText || cfg.Policy != "longest" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "redact.yml")
	data := `
merge_policy: concat
workers: 4
detect_timeout: 5s
rules:
  disable: [seat]
  extra:
    - name: employee_id
      pattern: 'EMP-\d{5}'
ner:
  enabled: true
  url: http://ner:8001
layout:
  source: gdocai
  document_ai:
    project_id: p
    location: eu
    processor_id: abc
overlay:
  fill: "10,20,30"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Policy != "concat" || cfg.Workers != 4 || cfg.DetectTimeout != 5*time.Second {
		t.Errorf("engine settings = %q %d %v", cfg.Policy, cfg.Workers, cfg.DetectTimeout)
	}
	if cfg.Layout.DocumentAI.ProcessorID != "abc" || !cfg.NER.Enabled {
		t.Errorf("layout/ner = %+v %+v", cfg.Layout, cfg.NER)
	}
	// Untouched keys keep their defaults.
	if cfg.Overlay.Ink != "#ffffff" || cfg.Group.PagesPerGroup != 5 {
		t.Errorf("defaults lost: %+v %+v", cfg.Overlay, cfg.Group)
	}

	rs, err := cfg.Ruleset()
	if err != nil {
		t.Fatalf("Ruleset: %v", err)
	}
	names := rs.Names()
	if slices.Contains(names, pii.CategorySeat) || !slices.Contains(names, "employee_id") {
		t.Errorf("rule names = %v", names)
	}

	opts, err := cfg.EngineOptions(nil)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Policy != pii.MergeConcat || opts.Workers != 4 {
		t.Errorf("engine options = %+v", opts)
	}

	pc, err := cfg.PDF(nil)
	if err != nil {
		t.Fatal(err)
	}
	if pc.Fill != (pdfdoc.Color{R: 10, G: 20, B: 30}) || pc.Ink != (pdfdoc.Color{R: 255, G: 255, B: 255}) {
		t.Errorf("colors = %+v %+v", pc.Fill, pc.Ink)
	}

	if err := cfg.LoadFile(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	dotenv := filepath.Join(dir, ".env")
	if err := os.WriteFile(dotenv, []byte("REDACT_WORKERS=3\nREDACT_LAYOUT=hocr\nREDACT_HOCR=from-dotenv.hocr\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("REDACT_HOCR", "scan.hocr")
	t.Setenv("REDACT_DISABLE_RULES", "seat, booking_code")
	t.Setenv("REDACT_NER", "true")
	t.Setenv("REDACT_NER_URL", "http://localhost:8001")
	t.Setenv("REDACT_FLATTEN", "1")
	t.Setenv("REDACT_KEEP_TEXT", "true")

	cfg := Default()
	if err := cfg.LoadEnv(dotenv, filepath.Join(dir, "absent.env")); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if cfg.Workers != 3 || cfg.Layout.Source != LayoutHOCR {
		t.Errorf("dotenv values not applied: %d %q", cfg.Workers, cfg.Layout.Source)
	}
	if cfg.Layout.HOCRPath != "scan.hocr" {
		t.Errorf("process env should win over dotenv, got %q", cfg.Layout.HOCRPath)
	}
	if !slices.Equal(cfg.Rules.Disable, []string{"seat", "booking_code"}) {
		t.Errorf("disable = %q", cfg.Rules.Disable)
	}
	if !cfg.NER.Enabled || !cfg.Flatten || !cfg.Overlay.KeepText {
		t.Errorf("booleans = %v %v %v", cfg.NER.Enabled, cfg.Flatten, cfg.Overlay.KeepText)
	}
	if pc, err := cfg.PDF(nil); err != nil || !pc.KeepText {
		t.Errorf("PDF() keep text = %v, %v", pc.KeepText, err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestApplyEnvErrors(t *testing.T) {
	env := map[string]string{
		"REDACT_WORKERS":        "many",
		"REDACT_DEBUG":          "perhaps",
		"REDACT_NER_TIMEOUT":    "soon",
		"REDACT_MIN_CONFIDENCE": "high",
	}
	cfg := Default()
	err := cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if err == nil {
		t.Fatal("expected errors")
	}
	for key := range env {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error does not mention %s: %v", key, err)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"policy", func(c *Config) { c.Policy = "shortest" }, "merge policy"},
		{"layout", func(c *Config) { c.Layout.Source = "magic" }, "unknown layout source"},
		{"hocr path", func(c *Config) { c.Layout.Source = LayoutHOCR }, "hOCR file"},
		{"document ai", func(c *Config) { c.Layout.Source = LayoutGDocAI }, "project_id"},
		{"ner url", func(c *Config) { c.NER.Enabled = true }, "no url"},
		{"fill", func(c *Config) { c.Overlay.Fill = "black" }, "fill"},
		{"group", func(c *Config) { c.Group.PagesPerGroup = 0 }, "pages_per_group"},
		{"dpi", func(c *Config) { c.Raster.DPI = -1 }, "dpi"},
		{"confidence", func(c *Config) { c.Layout.MinConfidence = 101 }, "min_confidence"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestRulesetErrors(t *testing.T) {
	cfg := Default()
	cfg.Rules.Disable = []string{"no_such_rule"}
	if _, err := cfg.Ruleset(); err == nil {
		t.Error("expected error for unknown disabled rule")
	}

	cfg = Default()
	cfg.Rules.Extra = []RuleConfig{{Name: "broken", Pattern: "("}}
	if _, err := cfg.Ruleset(); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    pdfdoc.Color
		wantErr bool
	}{
		{"#000000", pdfdoc.Color{}, false},
		{"#FF8000", pdfdoc.Color{R: 255, G: 128}, false},
		{" 1, 2 ,3 ", pdfdoc.Color{R: 1, G: 2, B: 3}, false},
		{"#fff", pdfdoc.Color{}, true},
		{"#gggggg", pdfdoc.Color{}, true},
		{"256,0,0", pdfdoc.Color{}, true},
		{"red", pdfdoc.Color{}, true},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseColor(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseColor(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
