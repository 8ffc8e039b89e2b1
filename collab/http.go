package collab

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// DefaultMaxResponseBytes caps response bodies read by HTTPHandler.
const DefaultMaxResponseBytes = 64 << 20

// RequestBuilder turns a payload into an outgoing request.
type RequestBuilder func(ctx context.Context, payload []byte) (*http.Request, error)

// HTTPOption configures HTTPHandler.
type HTTPOption func(*httpConfig)

type httpConfig struct {
	maxBody int64
}

// WithMaxResponseBytes caps the response body size.
func WithMaxResponseBytes(n int64) HTTPOption {
	return func(c *httpConfig) { c.maxBody = n }
}

// HTTPHandler returns a Handler that sends the request built from the
// payload and returns the response body. Non-2xx responses become
// *StatusError carrying the first KiB of the body.
func HTTPHandler(client *http.Client, build RequestBuilder, opts ...HTTPOption) Handler {
	if client == nil {
		client = http.DefaultClient
	}
	cfg := httpConfig{maxBody: DefaultMaxResponseBytes}
	for _, o := range opts {
		o(&cfg)
	}

	return func(ctx context.Context, payload []byte) ([]byte, error) {
		req, err := build(ctx, payload)
		if err != nil {
			return nil, fmt.Errorf("collab: build request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("collab: %s %s: %w", req.Method, redactURL(req), err)
		}
		defer resp.Body.Close()

		body, err := LimitedReadAll(resp.Body, cfg.maxBody)
		if err != nil {
			return nil, fmt.Errorf("collab: read %s: %w", redactURL(req), err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			snippet := body
			if len(snippet) > 1024 {
				snippet = snippet[:1024]
			}
			return nil, &StatusError{
				Method: req.Method,
				URL:    redactURL(req),
				Code:   resp.StatusCode,
				Body:   string(snippet),
			}
		}
		return body, nil
	}
}

// LimitedReadAll reads at most max bytes and fails if r holds more.
func LimitedReadAll(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("response exceeds %d bytes", max)
	}
	return data, nil
}

func redactURL(req *http.Request) string {
	u := *req.URL
	u.RawQuery = ""
	return u.String()
}
