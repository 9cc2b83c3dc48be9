//go:build !ocr

package ocr

import "context"

// Client is the stub used when the "ocr" build tag is not set. Every method
// returns ErrOCRNotEnabled.
type Client struct{}

// New returns ErrOCRNotEnabled. Rebuild with -tags ocr to enable OCR.
func New(lang string) (*Client, error) {
	return nil, ErrOCRNotEnabled
}

// Close does nothing.
func (c *Client) Close() error { return nil }

// HOCR returns ErrOCRNotEnabled.
func (c *Client) HOCR(ctx context.Context, imageData []byte) ([]byte, error) {
	return nil, ErrOCRNotEnabled
}
