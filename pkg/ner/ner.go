// Package ner provides a pii.Recognizer that calls a named-entity recognition
// sidecar over HTTP. The sidecar wraps a spaCy pipeline and exposes:
//
//	GET  /health  -> {"status":"ok","model":"en_core_web_trf","loaded":true}
//	POST /entities {"text":"..."} -> {"model":"...","entities":[{"start":0,"end":4,"label":"PERSON"}]}
//
// Entity offsets from the sidecar are Unicode code point indices; they are
// converted to UTF-8 byte offsets before being returned.
package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gardar/redactor/pkg/pii"
)

// DefaultTimeout bounds a single HTTP round trip to the sidecar.
const DefaultTimeout = 30 * time.Second

// Client calls the NER sidecar. It is safe for concurrent use.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
	logger  *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

type healthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
	Loaded bool   `json:"loaded"`
}

type entitiesRequest struct {
	Text string `json:"text"`
}

type entitiesResponse struct {
	Model    string      `json:"model"`
	Entities []nerEntity `json:"entities"`
}

type nerEntity struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Label string `json:"label"`
}

// New creates a Client pointing at baseURL (e.g. "http://ner:8001") and
// verifies that the sidecar is reachable and has its model loaded. Any
// failure is reported as pii.ErrEngineUnavailable so callers can abort
// before touching a document.
func New(ctx context.Context, baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("ner: empty base URL: %w", pii.ErrEngineUnavailable)
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}

	health, err := c.health(ctx)
	if err != nil {
		return nil, fmt.Errorf("ner: %v: %w", err, pii.ErrEngineUnavailable)
	}
	if !health.Loaded {
		return nil, fmt.Errorf("ner: model %q not loaded: %w", health.Model, pii.ErrEngineUnavailable)
	}
	c.model = health.Model
	c.logger.Info("ner: sidecar ready", "url", c.baseURL, "model", c.model)
	return c, nil
}

// Model returns the model name reported by the sidecar at startup.
func (c *Client) Model() string { return c.model }

func (c *Client) health(ctx context.Context) (healthResponse, error) {
	var hr healthResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return hr, fmt.Errorf("health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return hr, fmt.Errorf("sidecar unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return hr, fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&hr); err != nil {
		return hr, fmt.Errorf("decode health: %w", err)
	}
	return hr, nil
}

// Recognize sends text to the sidecar and returns its entities with byte
// offsets. Entities whose offsets fall outside the text are dropped.
func (c *Client) Recognize(ctx context.Context, text string) ([]pii.Entity, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	body, err := json.Marshal(entitiesRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("ner: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/entities", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ner: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ner: call sidecar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ner: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var result entitiesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ner: decode: %w", err)
	}
	if result.Model != "" && c.model != "" && result.Model != c.model {
		c.logger.Warn("ner: model changed since startup", "was", c.model, "now", result.Model)
	}

	offsets := runeToByteOffsets(text)
	ents := make([]pii.Entity, 0, len(result.Entities))
	for _, e := range result.Entities {
		if e.Start < 0 || e.End <= e.Start || e.End >= len(offsets) {
			continue
		}
		ents = append(ents, pii.Entity{
			Start: offsets[e.Start],
			End:   offsets[e.End],
			Kind:  pii.EntityKind(strings.ToUpper(e.Label)),
		})
	}
	return ents, nil
}

// runeToByteOffsets maps every code point index of s (plus the end position)
// to its byte offset.
func runeToByteOffsets(s string) []int {
	offsets := make([]int, 0, len(s)+1)
	for i := range s {
		offsets = append(offsets, i)
	}
	return append(offsets, len(s))
}
