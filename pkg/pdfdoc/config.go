package pdfdoc

import "log/slog"

// Config holds user options for redacting documents
type Config struct {
	Debug     bool         // Outline every redaction rectangle in red
	Force     bool         // Redact even if a redaction layer already exists
	KeepText  bool         // Leave covered text in the page content (overlay only)
	LayerName string       // Base name of the redaction layer (page number will be appended)
	DPI       float64      // Resolution of page images; sizes image pages in points
	Font      FontConfig   // Label font
	Fill      Color        // Overlay color
	Ink       Color        // Label color
	Logger    *slog.Logger // nil = slog.Default()
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Debug:     false,
		Force:     false,
		LayerName: "Redactions", // Will be formatted as "Redactions (Page X)" in the final PDF
		DPI:       72,
		Font:      DefaultFont,
		Fill:      Color{0, 0, 0},
		Ink:       Color{255, 255, 255},
	}
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// FontConfig contains font settings for label rendering
type FontConfig struct {
	Name        string  // Core font name (e.g., "Helvetica")
	Style       string  // Font style ("", "B", "I", "BI")
	AscentRatio float64 // Share of the font size above the baseline
}

// DefaultFont is Helvetica, available in every PDF viewer without embedding
var DefaultFont = FontConfig{
	Name:        "Helvetica",
	Style:       "B",
	AscentRatio: 0.718,
}

// Color is an 8-bit RGB color.
type Color struct {
	R, G, B uint8
}
