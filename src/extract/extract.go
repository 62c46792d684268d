// Package extract is the client side of the external OCR/PDF text extraction
// service. The service itself is a black box: bytes go in, plain text comes out.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"rapport-agent/src/logger"
)

// Document is an uploaded screenshot, PDF or text file.
type Document struct {
	Name string
	// MIME type; guessed from Name when empty.
	ContentType string
	Data        []byte
}

// Extractor recovers conversation text from a document.
type Extractor interface {
	Extract(ctx context.Context, doc Document) (string, error)
}

var textTypes = map[string]bool{
	"text/plain": true,
	"text/csv":   true,
}

var extractableTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/heic":      true,
	"image/webp":      true,
	"application/pdf": true,
}

var extensionTypes = map[string]string{
	".txt":  "text/plain",
	".csv":  "text/csv",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".heic": "image/heic",
	".webp": "image/webp",
	".pdf":  "application/pdf",
}

// DetectContentType returns the document's MIME type, consulting the
// explicit type, the file extension and finally the content itself.
func DetectContentType(doc Document) string {
	if doc.ContentType != "" {
		ct, _, _ := strings.Cut(doc.ContentType, ";")
		return strings.TrimSpace(strings.ToLower(ct))
	}
	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(doc.Name))]; ok {
		return t
	}
	ct, _, _ := strings.Cut(http.DetectContentType(doc.Data), ";")
	return ct
}

// Passthrough handles plain-text uploads locally and refuses everything else.
type Passthrough struct{}

func (Passthrough) Extract(ctx context.Context, doc Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ct := DetectContentType(doc)
	if !textTypes[ct] {
		if extractableTypes[ct] {
			return "", &ExtractionError{Document: doc.Name, Err: ErrNotAvailable}
		}
		return "", &ExtractionError{Document: doc.Name, Err: fmt.Errorf("%w: %s", ErrUnsupported, ct)}
	}
	text := string(doc.Data)
	if strings.TrimSpace(text) == "" {
		return "", &ExtractionError{Document: doc.Name, Err: ErrNoText}
	}
	return text, nil
}

// Client posts documents to an HTTP extraction endpoint.
//
// The endpoint receives the raw bytes with the document's Content-Type and
// answers {"text": "..."}. 415 means the type is unsupported and 422 that no
// text was found.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     logger.Logger
}

// NewClient creates an extraction client.
func NewClient(endpoint string, timeout time.Duration, log logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = logger.NewSilentLogger()
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}
}

type extractResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Extract sends the document and returns the recovered text. Plain-text
// documents are returned as-is without a round trip.
func (c *Client) Extract(ctx context.Context, doc Document) (string, error) {
	ct := DetectContentType(doc)
	if textTypes[ct] {
		return Passthrough{}.Extract(ctx, doc)
	}
	if !extractableTypes[ct] {
		return "", &ExtractionError{Document: doc.Name, Err: fmt.Errorf("%w: %s", ErrUnsupported, ct)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(doc.Data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Accept", "application/json")
	if doc.Name != "" {
		req.Header.Set("X-Filename", filepath.Base(doc.Name))
	}

	c.logger.Debug("[Extract] Sending %s (%d bytes) to %s", ct, len(doc.Data), c.endpoint)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &ExtractionError{Document: doc.Name, Err: fmt.Errorf("%w: %v", ErrUnavailable, err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnsupportedMediaType:
		return "", &ExtractionError{Document: doc.Name, Err: fmt.Errorf("%w: %s", ErrUnsupported, ct)}
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return "", &ExtractionError{Document: doc.Name, Err: ErrNoText}
	case resp.StatusCode >= 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &ExtractionError{Document: doc.Name, Err: fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, body)}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &ExtractionError{Document: doc.Name, Err: fmt.Errorf("status %d: %s", resp.StatusCode, body)}
	}

	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &ExtractionError{Document: doc.Name, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if strings.TrimSpace(out.Text) == "" {
		return "", &ExtractionError{Document: doc.Name, Err: ErrNoText}
	}
	c.logger.Info("[Extract] Recovered %d characters from %s", len(out.Text), doc.Name)
	return out.Text, nil
}
