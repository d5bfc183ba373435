package util

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Soumil-07/bkmgr/internal/logger"
)

const (
	// DefaultRetryDelay is the initial delay between retries, doubled on every attempt
	DefaultRetryDelay = 500 * time.Millisecond
)

// HTTPError is returned for responses that are not retried
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.StatusCode, e.Body)
}

// JSONClient issues GET requests against a JSON API. With MaxRetries above
// zero, transport failures, 5xx responses and 429 responses are retried with
// exponential backoff; the zero value sends each request once.
type JSONClient struct {
	HTTP       *http.Client
	Limiter    *RateLimiter
	Header     http.Header
	MaxRetries int
	RetryDelay time.Duration
	Log        *logger.Logger
}

// GetJSON fetches url and decodes the body into out
func (c *JSONClient) GetJSON(ctx context.Context, url string, out interface{}) error {
	log := c.Log
	if log == nil {
		log = logger.Get()
	}
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	delay := c.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := delay * time.Duration(1<<uint(attempt-1))
			log.Debug("Retrying request", map[string]interface{}{
				"attempt":    attempt + 1,
				"url":        url,
				"backoff_ms": backoff.Milliseconds(),
				"error":      lastErr.Error(),
			})
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limiter error: %w", err)
			}
		}

		retry, err := c.do(ctx, httpClient, url, out)
		if err == nil {
			if attempt > 0 {
				log.Info("Request succeeded after retries", map[string]interface{}{
					"url":      url,
					"attempts": attempt + 1,
				})
			}
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}

	log.Error("Exhausted all retries", map[string]interface{}{
		"url":         url,
		"max_retries": c.MaxRetries,
		"error":       lastErr.Error(),
	})
	return fmt.Errorf("failed after %d retries: %w", c.MaxRetries, lastErr)
}

// do performs a single attempt and reports whether a failure is retryable
func (c *JSONClient) do(ctx context.Context, httpClient *http.Client, url string, out interface{}) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.Header {
		req.Header[k] = v
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		wait := ParseRetryAfter(resp.Header.Get("Retry-After"))
		if c.Limiter != nil {
			wait = c.Limiter.OnRateLimit(wait)
		}
		return true, fmt.Errorf("%w: retry after %s", ErrRateLimited, wait)
	case resp.StatusCode >= 500:
		return true, &HTTPError{StatusCode: resp.StatusCode, Body: readSnippet(resp.Body)}
	case resp.StatusCode != http.StatusOK:
		return false, &HTTPError{StatusCode: resp.StatusCode, Body: readSnippet(resp.Body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	return false, nil
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return string(b)
}
