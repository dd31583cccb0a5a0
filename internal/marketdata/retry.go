package marketdata

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"
)

// RetryConfig controls WithRetry's backoff schedule.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig scales down a broker-style retry client's defaults
// for market-data calls (no order placement at stake here).
var DefaultRetryConfig = RetryConfig{
	MaxRetries:     2,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
}

// WithRetry runs fn, retrying on transient errors with exponential backoff
// and jitter. Used by the scanner worker's per-symbol candle fetches so one
// slow provider response doesn't immediately sink that symbol for the cycle.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultRetryConfig.MaxRetries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultRetryConfig.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultRetryConfig.MaxBackoff
	}

	backoff := cfg.InitialBackoff
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) || attempt == cfg.MaxRetries {
			return lastErr
		}

		select {
		case <-time.After(jitter(backoff)):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = nextBackoff(backoff, cfg.MaxBackoff)
	}
	return lastErr
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := time.Duration(float64(current) * 1.5)
	if next > max {
		next = max
	}
	return next
}

func jitter(d time.Duration) time.Duration {
	maxJitter := int64(d / 4)
	if maxJitter <= 0 {
		return d
	}
	j, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
	if err != nil {
		return d
	}
	return d + time.Duration(j.Int64())
}

// IsTransient classifies network/rate-limit errors as retriable using the
// same pattern-based classification a broker retry client would.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case 429, 500, 502, 503, 504:
			return true
		}
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"timeout", "i/o timeout", "connection refused", "connection reset",
		"temporary failure", "temporarily unavailable", "rate limit",
		"network", "no such host", "deadline exceeded", "eof",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
