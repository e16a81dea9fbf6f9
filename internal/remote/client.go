package remote

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"golang.org/x/oauth2"
)

// DefaultBaseURL is the production storage API endpoint.
const DefaultBaseURL = "https://api.osf.io/v2"

// Backoff policy: base 1s, factor 2x, max 30s, ±25% jitter, max 5 retries —
// same shape as the teacher's graph.Client, scaled down since this API
// has no documented SLA requiring the teacher's 60s ceiling.
const (
	maxRetries     = 5
	baseBackoff    = 1 * time.Second
	maxBackoff     = 30 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25
	userAgent      = "nodesync/0.1"
)

// httpClient is the low-level HTTP core shared by Client: request
// construction via oauth2.TokenSource, retry with exponential backoff,
// and error classification. Ported near-verbatim from the teacher's
// graph.Client.doRetry/doOnce.
type httpClient struct {
	baseURL    string
	http       *http.Client
	tokens     oauth2.TokenSource
	logger     *slog.Logger
	sleepFunc  func(ctx context.Context, d time.Duration) error
}

func newHTTPClient(baseURL string, hc *http.Client, tokens oauth2.TokenSource, logger *slog.Logger) *httpClient {
	if hc == nil {
		hc = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &httpClient{baseURL: baseURL, http: hc, tokens: tokens, logger: logger, sleepFunc: timeSleep}
}

func (c *httpClient) do(ctx context.Context, method, path string, body io.Reader, extra http.Header) (*http.Response, error) {
	url := c.baseURL + path

	var attempt int

	for {
		if err := rewindBody(body); err != nil {
			return nil, err
		}

		resp, err := c.doOnce(ctx, method, url, body, extra)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("remote: request canceled: %w", ctx.Err())
			}

			if attempt < maxRetries {
				backoff := c.calcBackoff(attempt)
				c.logger.Warn("retrying after network error", "method", method, "path", path,
					"attempt", attempt+1, "backoff", backoff, "error", err)

				if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
					return nil, fmt.Errorf("remote: request canceled: %w", sleepErr)
				}

				attempt++

				continue
			}

			return nil, fmt.Errorf("remote: %s %s failed after %d retries: %w", method, path, maxRetries, err)
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			return resp, nil
		}

		errBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		reqID := resp.Header.Get("X-Request-Id")

		if isRetryable(resp.StatusCode) && attempt < maxRetries {
			backoff := c.retryBackoff(resp, attempt)
			c.logger.Warn("retrying after HTTP error", "method", method, "path", path,
				"status", resp.StatusCode, "attempt", attempt+1, "backoff", backoff)

			if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
				return nil, fmt.Errorf("remote: request canceled: %w", sleepErr)
			}

			attempt++

			continue
		}

		return nil, &APIError{StatusCode: resp.StatusCode, RequestID: reqID, Message: string(errBody), Err: classifyStatus(resp.StatusCode)}
	}
}

func (c *httpClient) doOnce(ctx context.Context, method, url string, body io.Reader, extra http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	tok, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("obtaining token: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("User-Agent", userAgent)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for key, vals := range extra {
		for _, v := range vals {
			req.Header.Add(key, v)
		}
	}

	return c.http.Do(req)
}

func (c *httpClient) retryBackoff(resp *http.Response, attempt int) time.Duration {
	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	return c.calcBackoff(attempt)
}

func (c *httpClient) calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1)
	backoff += jitter

	return time.Duration(backoff)
}

func rewindBody(body io.Reader) error {
	if body == nil {
		return nil
	}

	if seeker, ok := body.(io.Seeker); ok {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("remote: rewinding request body for retry: %w", err)
		}
	}

	return nil
}

func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
