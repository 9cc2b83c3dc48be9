//go:build ocr

package ocr

import (
	"context"
	"fmt"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// Client wraps Tesseract for OCR operations. It is safe for concurrent use;
// calls are serialized on the underlying engine.
type Client struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// New creates a new OCR client for the given languages ("eng", "eng+fra").
// The client should be closed when no longer needed to release resources.
func New(lang string) (*Client, error) {
	client := gosseract.NewClient()
	if lang != "" {
		if err := client.SetLanguage(lang); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set OCR language %q: %w", lang, err)
		}
	}
	return &Client{client: client}, nil
}

// Close releases OCR resources.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		err := c.client.Close()
		c.client = nil
		return err
	}
	return nil
}

// HOCR performs OCR on image data (PNG, TIFF, JPEG, etc.) and returns the
// result as hOCR.
func (c *Client) HOCR(ctx context.Context, imageData []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil, fmt.Errorf("OCR client is closed")
	}
	if err := c.client.SetImageFromBytes(imageData); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	out, err := c.client.HOCRText()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}
	return []byte(out), nil
}
