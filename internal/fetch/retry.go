package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// httpError wraps a failed fetch with the HTTP status when one was seen.
type httpError struct {
	url    string
	status int
	cause  error
}

func (e *httpError) Error() string {
	if e.status > 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.url, e.status, e.cause)
	}
	return fmt.Sprintf("fetch %s: %v", e.url, e.cause)
}

func (e *httpError) Unwrap() error { return e.cause }

// withRetry runs op under exponential backoff. Context cancellation and
// client-side HTTP statuses are permanent; timeouts, connection failures,
// 429 and 5xx are retried.
func (c *Client) withRetry(ctx context.Context, rawURL string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	if c.cfg.BackoffInitial > 0 {
		b.InitialInterval = c.cfg.BackoffInitial
	}
	if c.cfg.BackoffMax > 0 {
		b.MaxInterval = c.cfg.BackoffMax
	}
	retries := uint64(0)
	if c.cfg.MaxRetries > 0 {
		retries = uint64(c.cfg.MaxRetries)
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		if c.logger != nil {
			c.logger.Warn("Fetch attempt failed; will retry",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		return err
	}, bo)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var he *httpError
	if errors.As(err, &he) && he.status > 0 {
		return he.status == http.StatusTooManyRequests || he.status >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return true
}
