package telemetry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxErrorBody = 4096

// HTTPSink POSTs each sample to a telemetry ingestion endpoint.
type HTTPSink struct {
	url        string
	format     string
	httpClient *http.Client
}

// NewHTTPSink creates a sink posting to url in the given format (text or json).
// A zero timeout means five seconds.
func NewHTTPSink(url, format string, timeout time.Duration) (*HTTPSink, error) {
	if url == "" {
		return nil, fmt.Errorf("http sink requires a url")
	}
	switch format {
	case "":
		format = FormatText
	case FormatText, FormatJSON:
	default:
		return nil, fmt.Errorf("unknown sink format %q", format)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPSink{
		url:        strings.TrimRight(url, "/"),
		format:     format,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Send delivers one sample. Any 2xx status is success.
func (c *HTTPSink) Send(ctx context.Context, s Sample) error {
	var (
		body        []byte
		contentType string
	)
	if c.format == FormatJSON {
		b, err := EncodeJSON(s)
		if err != nil {
			return fmt.Errorf("encoding sample: %w", err)
		}
		body, contentType = b, "application/json"
	} else {
		body, contentType = []byte(EncodeText(s)), "text/plain"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &DeliveryError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Close releases idle connections.
func (c *HTTPSink) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
