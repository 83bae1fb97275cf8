// Package health checks whether an application endpoint answers.
package health

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"integctl/pkg/logging"
)

// Checker checks one endpoint.
type Checker interface {
	CheckHealth(ctx context.Context) error
}

// HTTPChecker considers an endpoint healthy as soon as it answers with any
// HTTP response. Applications are not required to expose a 2xx root.
type HTTPChecker struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client
}

// NewHTTPChecker creates a checker with a short per-request timeout.
func NewHTTPChecker(url string) *HTTPChecker {
	return &HTTPChecker{URL: url, Timeout: 3 * time.Second}
}

// CheckHealth performs one GET request against the URL.
func (h *HTTPChecker) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: h.Timeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", h.URL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	logging.Debug("Health", "%s answered with status %d", h.URL, resp.StatusCode)
	return nil
}

// TCPChecker considers an endpoint healthy when a TCP connection succeeds.
type TCPChecker struct {
	Address string
	Timeout time.Duration
}

// CheckHealth dials the address once.
func (t *TCPChecker) CheckHealth(ctx context.Context) error {
	timeout := t.Timeout
	if timeout == 0 {
		timeout = 3 * time.Second
	}
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.Address)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", t.Address, err)
	}
	defer conn.Close()
	return nil
}

// Responds turns a checker into a boolean probe.
func Responds(ctx context.Context, c Checker) bool {
	return c.CheckHealth(ctx) == nil
}
