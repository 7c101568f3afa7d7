// Package httpx provides the outbound HTTP client used to talk to the
// upstream price and tariff endpoints: plain GETs with a small bounded
// retry for transient failures.
package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultAttempts is the total number of tries, first call included.
	DefaultAttempts = 3
	// backoffStep is multiplied by the attempt number: 250ms, 500ms, ...
	backoffStep = 250 * time.Millisecond
)

// Client performs GET requests with linear-backoff retries on transport
// errors and 5xx responses. 4xx responses are returned as-is on the first
// attempt: there is no point retrying a request the server understood and
// rejected. No jitter and no circuit breaker; call volume is low.
type Client struct {
	http     *http.Client
	attempts int
	sleep    func(context.Context, time.Duration) error
	log      zerolog.Logger
}

// NewClient builds a retrying client. attempts <= 0 selects DefaultAttempts.
func NewClient(attempts int, log zerolog.Logger) *Client {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	return &Client{
		http:     &http.Client{Timeout: 30 * time.Second},
		attempts: attempts,
		sleep:    sleepCtx,
		log:      log,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Get fetches url, retrying transport errors and 5xx responses with a
// 250ms × attempt backoff. It returns the last response even when its
// status is not 2xx; only exhausted transport failures produce an error.
// The caller owns the response body.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt == c.attempts-1 {
				break
			}
			c.log.Warn().Err(err).Str("url", url).Int("attempt", attempt+1).Msg("request failed, retrying")
			if serr := c.sleep(ctx, backoffStep*time.Duration(attempt+1)); serr != nil {
				return nil, serr
			}
			continue
		}

		if resp.StatusCode >= http.StatusInternalServerError && attempt < c.attempts-1 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			c.log.Warn().Int("status", resp.StatusCode).Str("url", url).Int("attempt", attempt+1).Msg("server error, retrying")
			if serr := c.sleep(ctx, backoffStep*time.Duration(attempt+1)); serr != nil {
				return nil, serr
			}
			continue
		}

		return resp, nil
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.attempts, lastErr)
}
