package checkers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPChecker probes an HTTP endpoint. Only transport errors and 5xx
// responses count as failures.
type HTTPChecker struct {
	url    string
	name   string
	client *http.Client
}

// NewHTTPChecker creates a checker with a 10s client timeout. An empty name
// defaults to the URL.
func NewHTTPChecker(url, name string) *HTTPChecker {
	return NewHTTPCheckerWithClient(url, name, &http.Client{Timeout: 10 * time.Second})
}

// NewHTTPCheckerWithClient creates a checker using client.
func NewHTTPCheckerWithClient(url, name string, client *http.Client) *HTTPChecker {
	if name == "" {
		name = url
	}
	return &HTTPChecker{url: url, name: name, client: client}
}

// Name returns the check name.
func (h *HTTPChecker) Name() string { return h.name }

// Check issues a GET against the endpoint.
func (h *HTTPChecker) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("unhealthy status code: %d", resp.StatusCode)
	}
	return nil
}
