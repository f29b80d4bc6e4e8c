package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// DefaultMaxBodySize caps how much of a response HTTPPort reads.
const DefaultMaxBodySize = 5 * 1024 * 1024

// HTTPPort downloads pages with an HTTP client. It is meant to be used with
// a client from tor.Client.NewHTTPClient so that every request goes through Tor.
//
// Pages are not rendered, so content produced by scripts is missing. 4xx
// responses are returned as pages; 5xx responses are errors and get retried.
type HTTPPort struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
}

// HTTPPortOption configures an HTTPPort.
type HTTPPortOption func(*HTTPPort)

// WithUserAgent sets the User-Agent header of every request.
func WithUserAgent(ua string) HTTPPortOption {
	return func(p *HTTPPort) {
		p.userAgent = ua
	}
}

// WithMaxBodySize caps the number of body bytes read per page.
func WithMaxBodySize(n int64) HTTPPortOption {
	return func(p *HTTPPort) {
		if n > 0 {
			p.maxBodySize = n
		}
	}
}

// NewHTTPPort creates an HTTPPort using client.
func NewHTTPPort(client *http.Client, opts ...HTTPPortOption) *HTTPPort {
	p := &HTTPPort{
		client:      client,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Render implements Port.
func (p *HTTPPort) Render(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return "", fmt.Errorf("%w: %s", ErrServerError, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBodySize))
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	return string(body), nil
}

// Screenshot implements Port. HTTPPort cannot capture pages.
func (p *HTTPPort) Screenshot(context.Context, string, string) error {
	return ErrScreenshotUnsupported
}

// Close implements Port.
func (p *HTTPPort) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
