package gdocai

import (
	"cloud.google.com/go/documentai/apiv1/documentaipb"

	"github.com/gardar/redactor/pkg/layout"
)

// Document is a processed Document AI response.
type Document struct {
	Raw   *documentaipb.Document `json:"-"` // Original Document AI response
	Text  string                 `json:"text"`
	Pages []*Page                `json:"pages"`
}

// Page is one page of a processed document.
type Page struct {
	Number    int          `json:"number"` // 1-based
	Width     float64      `json:"width"`
	Height    float64      `json:"height"`
	Language  string       `json:"language,omitempty"`
	Layout    *layout.Page `json:"-"`
	Image     []byte       `json:"-"` // page image rendered by Document AI, if returned
	ImageType string       `json:"image_type,omitempty"`
}

// Layouts returns the page layouts in page order.
func (d *Document) Layouts() []*layout.Page {
	out := make([]*layout.Page, len(d.Pages))
	for i, p := range d.Pages {
		out[i] = p.Layout
	}
	return out
}
