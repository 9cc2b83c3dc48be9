package pdfdoc

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrAlreadyRedacted is returned when the input already carries a redaction
// layer and Config.Force is not set.
var ErrAlreadyRedacted = errors.New("document already has a redaction layer")

// Layer name patterns as written by common PDF producers.
var ocgPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/Type\s*/OCG\s*/Name\s*\(([^)]+)\)`),
	regexp.MustCompile(`/OCG\s*<<[^>]*?/Name\s*\(([^)]+)\)`),
	regexp.MustCompile(`<</Type/OCG/Name\(([^)]+)\)`),
	regexp.MustCompile(`/Name\s*\(([^)]+)\)[\s\S]{1,50}/Type\s*/OCG`),
}

// detectPDFLayers attempts to find layer names in the raw PDF data.
func detectPDFLayers(pdfData []byte) ([]string, error) {
	if len(pdfData) == 0 {
		return nil, fmt.Errorf("empty PDF data")
	}

	content := string(pdfData)
	var layers []string
	for _, re := range ocgPatterns {
		for _, match := range re.FindAllStringSubmatch(content, -1) {
			if len(match) >= 2 {
				layers = append(layers, unescapePDFString(match[1]))
			}
		}
	}

	// Check if any are UTF-16 BOM
	for i, layer := range layers {
		if len(layer) >= 2 && layer[0] == '\xfe' && layer[1] == '\xff' {
			if decoded, err := decodeUTF16BE([]byte(layer)); err == nil {
				layers[i] = decoded
			}
		}
	}

	// Deduplicate
	unique := make([]string, 0, len(layers))
	seen := make(map[string]bool)
	for _, l := range layers {
		if !seen[l] {
			seen[l] = true
			unique = append(unique, l)
		}
	}
	return unique, nil
}

// LayerCheckResult contains the results of checking for redaction layers
type LayerCheckResult struct {
	Layers    []string // All detected layers
	HasLayer  bool     // True if the redaction layer exists
	LayerName string   // Name of the detected redaction layer (if any)
	Warnings  []string // Layers that look like redactions under another name
}

// CheckExistingLayers checks for an existing redaction layer in a PDF
func CheckExistingLayers(pdfData []byte, layerName string) (LayerCheckResult, error) {
	result := LayerCheckResult{}

	layers, err := detectPDFLayers(pdfData)
	if err != nil {
		return result, fmt.Errorf("cannot analyze layers: %w", err)
	}
	result.Layers = layers

	// Lenient: producers may reformat the page suffix
	pageLayerPattern := regexp.MustCompile(fmt.Sprintf(`^%s\s*\(Page\s*\d+.*`, regexp.QuoteMeta(layerName)))

	for _, layer := range layers {
		if layer == layerName || pageLayerPattern.MatchString(layer) {
			result.HasLayer = true
			result.LayerName = layer
			break
		}
		if strings.Contains(strings.ToLower(layer), "redact") {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("existing layer might contain redactions: %s", layer))
		}
	}

	return result, nil
}
