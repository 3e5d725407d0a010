package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mudler/xlog"
	"github.com/sashabaranov/go-openai"
)

// RetryPolicy is the single retry value shared by both backends: transient
// failures get exactly MaxAttempts-1 retries with a fixed delay between
// attempts.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy retries 5xx responses once after two seconds.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 2, Delay: 2 * time.Second}

// Do runs fn, retrying transient errors per the policy. Permanent errors
// and context cancellation return immediately.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil || !IsTransient(lastErr) {
			return lastErr
		}

		if attempt < attempts {
			xlog.Warn("Transient backend error, retrying", "attempt", attempt, "delay", p.Delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Delay):
			}
		}
	}
	return lastErr
}

// APIError is a non-success HTTP response from the structured backend.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("API call failed: HTTP %d - %s", e.StatusCode, body)
}

// IsTransient reports whether err is a 5xx-class backend failure, from
// either wire protocol.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	var oaiErr *openai.APIError
	if errors.As(err, &oaiErr) {
		return oaiErr.HTTPStatusCode >= 500
	}
	return false
}
