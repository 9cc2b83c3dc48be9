// Package config assembles the runtime configuration of the redaction tools.
//
// Settings are layered, later layers winning: built-in defaults, a YAML
// file, a .env file, REDACT_* environment variables and finally command
// line flags (applied by the commands themselves).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gardar/redactor/pkg/gdocai"
	"github.com/gardar/redactor/pkg/pdfdoc"
	"github.com/gardar/redactor/pkg/pii"
	"github.com/gardar/redactor/pkg/raster"
	"github.com/gardar/redactor/pkg/redact"
	"github.com/gardar/redactor/pkg/split"
)

// Layout sources.
const (
	LayoutText   = "text"   // the PDF's own text layer
	LayoutHOCR   = "hocr"   // an hOCR file produced elsewhere
	LayoutGDocAI = "gdocai" // Google Document AI
	LayoutOCR    = "ocr"    // local Tesseract on rendered pages
)

// Config holds every setting of a redaction run.
type Config struct {
	Rules         RulesConfig   `yaml:"rules"`
	Policy        string        `yaml:"merge_policy"`
	Workers       int           `yaml:"workers"`
	DetectTimeout time.Duration `yaml:"detect_timeout"`
	NER           NERConfig     `yaml:"ner"`
	Layout        LayoutConfig  `yaml:"layout"`
	Overlay       OverlayConfig `yaml:"overlay"`
	Raster        RasterConfig  `yaml:"raster"`
	Group         GroupConfig   `yaml:"group"`
	Flatten       bool          `yaml:"flatten"` // redact rendered page images instead of overlaying the PDF
	Report        string        `yaml:"report"`
	Debug         bool          `yaml:"debug"`
}

// RulesConfig adjusts the built-in pattern registry.
type RulesConfig struct {
	Disable []string     `yaml:"disable"`
	Extra   []RuleConfig `yaml:"extra"`
}

// RuleConfig is a user supplied pattern.
type RuleConfig struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
}

// NERConfig points at the named-entity sidecar.
type NERConfig struct {
	Enabled bool          `yaml:"enabled"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// LayoutConfig selects where page text and geometry come from.
type LayoutConfig struct {
	Source        string        `yaml:"source"`
	HOCRPath      string        `yaml:"hocr"`
	MinConfidence float64       `yaml:"min_confidence"` // 0-100, as in hOCR
	OCRLang       string        `yaml:"ocr_lang"`
	DocumentAI    gdocai.Config `yaml:"document_ai"`
	DumpPath      string        `yaml:"dump"` // raw Document AI response
}

// OverlayConfig controls how regions are drawn.
type OverlayConfig struct {
	LayerName string `yaml:"layer_name"`
	Font      string `yaml:"font"`
	FontStyle string `yaml:"font_style"`
	Fill      string `yaml:"fill"`
	Ink       string `yaml:"ink"`
	Force     bool   `yaml:"force"`
	KeepText  bool   `yaml:"keep_text"` // Leave covered text in the PDF content
}

// RasterConfig controls page rendering.
type RasterConfig struct {
	DPI      int    `yaml:"dpi"`
	Pdftoppm string `yaml:"pdftoppm"`
}

// GroupConfig controls page grouping of the redacted output.
type GroupConfig struct {
	Dir           string `yaml:"dir"`
	PagesPerGroup int    `yaml:"pages_per_group"`
}

// Default returns a config with sensible defaults
func Default() *Config {
	return &Config{
		Policy:        pii.MergeLongest.String(),
		Workers:       1,
		DetectTimeout: redact.DefaultDetectTimeout,
		NER: NERConfig{
			Timeout: 30 * time.Second,
		},
		Layout: LayoutConfig{
			Source:  LayoutText,
			OCRLang: "eng",
		},
		Overlay: OverlayConfig{
			LayerName: "Redactions",
			Font:      pdfdoc.DefaultFont.Name,
			FontStyle: pdfdoc.DefaultFont.Style,
			Fill:      "#000000",
			Ink:       "#ffffff",
		},
		Raster: RasterConfig{
			DPI:      raster.DefaultDPI,
			Pdftoppm: "pdftoppm",
		},
		Group: GroupConfig{
			PagesPerGroup: split.DefaultPagesPerGroup,
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path (if any)
// and then with the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadEnv(".env"); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path. Keys missing from the file keep
// their current value.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// LoadEnv overlays REDACT_* variables. Values from the process environment
// win over the given dotenv files; missing files are skipped.
func (c *Config) LoadEnv(dotenv ...string) error {
	vars := make(map[string]string)
	for _, f := range dotenv {
		m, err := godotenv.Read(f)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", f, err)
		}
		for k, v := range m {
			if _, ok := vars[k]; !ok {
				vars[k] = v
			}
		}
	}
	return c.applyEnv(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := vars[key]
		return v, ok
	})
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	e := envReader{lookup: lookup}

	e.str("REDACT_POLICY", &c.Policy)
	e.integer("REDACT_WORKERS", &c.Workers)
	e.duration("REDACT_DETECT_TIMEOUT", &c.DetectTimeout)
	e.list("REDACT_DISABLE_RULES", &c.Rules.Disable)

	e.boolean("REDACT_NER", &c.NER.Enabled)
	e.str("REDACT_NER_URL", &c.NER.URL)
	e.duration("REDACT_NER_TIMEOUT", &c.NER.Timeout)

	e.str("REDACT_LAYOUT", &c.Layout.Source)
	e.str("REDACT_HOCR", &c.Layout.HOCRPath)
	e.float("REDACT_MIN_CONFIDENCE", &c.Layout.MinConfidence)
	e.str("REDACT_OCR_LANG", &c.Layout.OCRLang)
	e.str("REDACT_DOCAI_PROJECT", &c.Layout.DocumentAI.ProjectID)
	e.str("REDACT_DOCAI_LOCATION", &c.Layout.DocumentAI.Location)
	e.str("REDACT_DOCAI_PROCESSOR", &c.Layout.DocumentAI.ProcessorID)

	e.str("REDACT_LAYER_NAME", &c.Overlay.LayerName)
	e.str("REDACT_FILL", &c.Overlay.Fill)
	e.str("REDACT_INK", &c.Overlay.Ink)
	e.boolean("REDACT_FORCE", &c.Overlay.Force)
	e.boolean("REDACT_KEEP_TEXT", &c.Overlay.KeepText)

	e.integer("REDACT_DPI", &c.Raster.DPI)
	e.str("REDACT_PDFTOPPM", &c.Raster.Pdftoppm)
	e.str("REDACT_SPLIT_DIR", &c.Group.Dir)
	e.integer("REDACT_PAGES_PER_GROUP", &c.Group.PagesPerGroup)

	e.boolean("REDACT_FLATTEN", &c.Flatten)
	e.str("REDACT_REPORT", &c.Report)
	e.boolean("REDACT_DEBUG", &c.Debug)

	return errors.Join(e.errs...)
}

// envReader parses variables into fields, collecting every bad value.
type envReader struct {
	lookup lookupFunc
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) list(key string, dst *[]string) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func (e *envReader) boolean(key string, dst *bool) {
	v, ok := e.get(key)
	if !ok || v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = b
}

func (e *envReader) integer(key string, dst *int) {
	v, ok := e.get(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = n
}

func (e *envReader) float(key string, dst *float64) {
	v, ok := e.get(key)
	if !ok || v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = f
}

func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok || v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = d
}

// Validate checks the settings that cannot be checked by the packages
// they are handed to.
func (c *Config) Validate() error {
	var errs []error
	if _, err := pii.ParseMergePolicy(c.Policy); err != nil {
		errs = append(errs, err)
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	switch c.Layout.Source {
	case LayoutText, LayoutOCR:
	case LayoutHOCR:
		if c.Layout.HOCRPath == "" {
			errs = append(errs, fmt.Errorf("layout source %q needs an hOCR file", LayoutHOCR))
		}
	case LayoutGDocAI:
		if err := c.Layout.DocumentAI.Validate(); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, fmt.Errorf("unknown layout source %q (want %s, %s, %s or %s)",
			c.Layout.Source, LayoutText, LayoutHOCR, LayoutGDocAI, LayoutOCR))
	}
	if c.Layout.MinConfidence < 0 || c.Layout.MinConfidence > 100 {
		errs = append(errs, fmt.Errorf("min_confidence must be within 0-100, got %v", c.Layout.MinConfidence))
	}
	if c.NER.Enabled && c.NER.URL == "" {
		errs = append(errs, fmt.Errorf("ner is enabled but has no url"))
	}
	if _, err := ParseColor(c.Overlay.Fill); err != nil {
		errs = append(errs, fmt.Errorf("fill: %w", err))
	}
	if _, err := ParseColor(c.Overlay.Ink); err != nil {
		errs = append(errs, fmt.Errorf("ink: %w", err))
	}
	if c.Raster.DPI <= 0 {
		errs = append(errs, fmt.Errorf("dpi must be positive, got %d", c.Raster.DPI))
	}
	if c.Group.PagesPerGroup <= 0 {
		errs = append(errs, fmt.Errorf("pages_per_group must be positive, got %d", c.Group.PagesPerGroup))
	}
	return errors.Join(errs...)
}

// Ruleset builds the pattern detector: the built-in rules minus the
// disabled ones, plus the extra rules.
func (c *Config) Ruleset() (*pii.Ruleset, error) {
	rs, err := pii.NewRuleset(pii.DefaultRules())
	if err != nil {
		return nil, err
	}
	if len(c.Rules.Disable) > 0 {
		if rs, err = rs.Without(c.Rules.Disable...); err != nil {
			return nil, err
		}
	}
	extra := make([]pii.Rule, 0, len(c.Rules.Extra))
	for _, rc := range c.Rules.Extra {
		r, err := pii.NewRule(rc.Name, rc.Pattern)
		if err != nil {
			return nil, err
		}
		extra = append(extra, r)
	}
	return rs.With(extra...), nil
}

// EngineOptions returns the options for redact.NewEngine.
func (c *Config) EngineOptions(log *slog.Logger) (redact.Options, error) {
	policy, err := pii.ParseMergePolicy(c.Policy)
	if err != nil {
		return redact.Options{}, err
	}
	opts := redact.DefaultOptions()
	opts.Policy = policy
	opts.Workers = c.Workers
	opts.DetectTimeout = c.DetectTimeout
	opts.Logger = log
	return opts, nil
}

// PDF returns the document options for pdfdoc.
func (c *Config) PDF(log *slog.Logger) (pdfdoc.Config, error) {
	fill, err := ParseColor(c.Overlay.Fill)
	if err != nil {
		return pdfdoc.Config{}, fmt.Errorf("fill: %w", err)
	}
	ink, err := ParseColor(c.Overlay.Ink)
	if err != nil {
		return pdfdoc.Config{}, fmt.Errorf("ink: %w", err)
	}
	pc := pdfdoc.DefaultConfig()
	pc.Debug = c.Debug
	pc.Force = c.Overlay.Force
	pc.KeepText = c.Overlay.KeepText
	if c.Overlay.LayerName != "" {
		pc.LayerName = c.Overlay.LayerName
	}
	if c.Overlay.Font != "" {
		pc.Font.Name = c.Overlay.Font
		pc.Font.Style = c.Overlay.FontStyle
	}
	pc.Fill = fill
	pc.Ink = ink
	pc.DPI = float64(c.Raster.DPI)
	pc.Logger = log
	return pc, nil
}

// ParseColor reads a color written as "#rrggbb" or "r,g,b".
func ParseColor(s string) (pdfdoc.Color, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		if len(s) != 7 {
			return pdfdoc.Color{}, fmt.Errorf("invalid color %q", s)
		}
		v, err := strconv.ParseUint(s[1:], 16, 32)
		if err != nil {
			return pdfdoc.Color{}, fmt.Errorf("invalid color %q", s)
		}
		return pdfdoc.Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return pdfdoc.Color{}, fmt.Errorf("invalid color %q", s)
	}
	var rgb [3]uint8
	for i, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return pdfdoc.Color{}, fmt.Errorf("invalid color %q", s)
		}
		rgb[i] = uint8(n)
	}
	return pdfdoc.Color{R: rgb[0], G: rgb[1], B: rgb[2]}, nil
}
