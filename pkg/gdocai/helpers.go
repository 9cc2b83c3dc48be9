package gdocai

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// ToJSON converts various types to a pretty-printed JSON string
// It handles both protocol buffer messages and regular Go structs
func ToJSON(data any) (string, error) {
	switch v := data.(type) {
	case proto.Message:
		jsonData, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(jsonData), nil

	default:
		jsonData, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", err
		}
		return string(jsonData), nil
	}
}

// ExtractImageFromPage returns the page image Document AI rendered.
func ExtractImageFromPage(page *Page) ([]byte, error) {
	if page == nil {
		return nil, fmt.Errorf("no documentai page provided")
	}
	if len(page.Image) == 0 {
		return nil, fmt.Errorf("no image found in documentai page %d", page.Number)
	}
	return page.Image, nil
}

// MimeType returns the Document AI input type for a file name.
func MimeType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".bmp":
		return "image/bmp"
	default:
		return "application/pdf"
	}
}
