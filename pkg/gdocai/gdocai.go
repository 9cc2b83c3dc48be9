// Package gdocai reads page layouts from Google Document AI.
//
// A document is sent to an OCR processor and the response is converted into
// one layout.Page per page: every recognized token becomes a positioned word
// and tokens are grouped into the lines Document AI reports. Coordinates are
// in the pixel space of the page image Document AI rendered, which is also
// returned for image based redaction.
//
// Main Functions:
//
// - ProcessDocument: Sends a document to Google Document AI for processing
// - DocumentFromProto: Converts the Document AI response into layouts and page images
// - Source: A layout source backed by Document AI
//
// Usage Requirements:
//
// - Google Cloud project with Document AI API enabled
// - Document AI processor configured for OCR
// - Authentication via GOOGLE_APPLICATION_CREDENTIALS environment variable
package gdocai

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/gardar/redactor/pkg/layout"
)

// Config identifies the Document AI processor to use.
type Config struct {
	ProjectID   string `yaml:"project_id"`
	Location    string `yaml:"location"`
	ProcessorID string `yaml:"processor_id"`
}

// Validate reports a missing processor setting.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("document ai: no configuration")
	}
	switch {
	case c.ProjectID == "":
		return fmt.Errorf("document ai: project_id is required")
	case c.Location == "":
		return fmt.Errorf("document ai: location is required")
	case c.ProcessorID == "":
		return fmt.Errorf("document ai: processor_id is required")
	}
	return nil
}

// Source loads page layouts for a PDF or image file from Document AI.
type Source struct {
	Config        *Config
	MinConfidence float64 // tokens below this confidence (0-1) are skipped
	DumpPath      string  // when set, the raw response is written here as JSON
	Logger        *slog.Logger
}

// Process sends the file at path to Document AI and converts the response.
func (s *Source) Process(ctx context.Context, path string) (*Document, error) {
	if err := s.Config.Validate(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	raw, err := ProcessDocument(ctx, data, MimeType(path), s.Config)
	if err != nil {
		return nil, err
	}
	if s.DumpPath != "" {
		js, err := ToJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to convert API response to JSON: %w", err)
		}
		if err := os.WriteFile(s.DumpPath, []byte(js), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write API response JSON: %w", err)
		}
	}

	doc := DocumentFromProto(raw, s.MinConfidence)
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Debug("document ai response", "path", path, "pages", len(doc.Pages), "chars", len(doc.Text))
	return doc, nil
}

// Layouts returns one layout per page, in Document AI pixel units.
func (s *Source) Layouts(ctx context.Context, path string) ([]*layout.Page, error) {
	doc, err := s.Process(ctx, path)
	if err != nil {
		return nil, err
	}
	return doc.Layouts(), nil
}
