package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

// maxResponseBytes caps how much of an API response is read.
const maxResponseBytes = 4 << 20

// apiClient wraps POST-JSON calls to a provider API with bounded retry.
// Rate limits, 5xx responses, and transport errors are retried; everything
// else fails immediately.
type apiClient struct {
	base   string
	client *http.Client
	logger *slog.Logger
}

func newAPIClient(base string, timeout time.Duration, logger *slog.Logger) *apiClient {
	return &apiClient{
		base:   base,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// postJSON sends payload to path and decodes the response into out.
func (c *apiClient) postJSON(ctx context.Context, path string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			c.logger.Debug("api request failed", "path", path, "error", err)
			return retry.RetryableError(err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return retry.RetryableError(fmt.Errorf("failed to read response: %w", err))
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			c.logger.Debug("retryable api status", "path", path, "status", resp.StatusCode)
			return retry.RetryableError(fmt.Errorf("api returned status %d: %s", resp.StatusCode, snippet(data)))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("api returned status %d: %s", resp.StatusCode, snippet(data))
		}

		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	})
}

// snippet truncates an error body for messages.
func snippet(data []byte) string {
	const max = 200
	s := string(bytes.TrimSpace(data))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
