package woocommerce

import (
	"context"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// RetryConfig defines retry behavior for remote calls
type RetryConfig struct {
	MaxRetries      int           // Retries after the first attempt
	InitialBackoff  time.Duration // Delay before the first retry
	MaxBackoff      time.Duration // Upper bound for any delay
	BackoffFactor   float64       // Multiplier per attempt, 1 for a fixed delay
	Jitter          float64       // Random jitter factor (0-1)
	RetryableErrors []int         // HTTP status codes to retry
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         0.1,
		RetryableErrors: []int{
			http.StatusTooManyRequests,     // 429
			http.StatusInternalServerError, // 500
			http.StatusBadGateway,          // 502
			http.StatusServiceUnavailable,  // 503
			http.StatusGatewayTimeout,      // 504
		},
	}
}

type retrier struct {
	config RetryConfig
	sleep  func(ctx context.Context, d time.Duration) error
}

func newRetrier(config RetryConfig) *retrier {
	if config.BackoffFactor <= 0 {
		config.BackoffFactor = 1
	}
	return &retrier{config: config, sleep: sleepContext}
}

// statusNotSent marks an attempt that failed before the request went out,
// such as a request that could not be built. Repeating it cannot help.
const statusNotSent = -1

// shouldRetry reports whether a failed attempt is worth repeating. Network
// errors (status 0) always are.
func (r *retrier) shouldRetry(statusCode int, err error) bool {
	if statusCode == statusNotSent {
		return false
	}
	if err != nil && statusCode == 0 {
		return true
	}
	for _, code := range r.config.RetryableErrors {
		if statusCode == code {
			return true
		}
	}
	return false
}

func (r *retrier) backoff(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		if r.config.MaxBackoff > 0 && retryAfter > r.config.MaxBackoff {
			return r.config.MaxBackoff
		}
		return retryAfter
	}

	backoff := float64(r.config.InitialBackoff) * math.Pow(r.config.BackoffFactor, float64(attempt))
	if r.config.Jitter > 0 {
		backoff += backoff * r.config.Jitter * (rand.Float64()*2 - 1)
	}
	if r.config.MaxBackoff > 0 && backoff > float64(r.config.MaxBackoff) {
		backoff = float64(r.config.MaxBackoff)
	}
	return time.Duration(backoff)
}

// do calls fn until it succeeds, fails permanently or retries run out. fn
// returns the status code it saw (0 for transport errors, statusNotSent when
// nothing was sent), the Retry-After hint if any, and an error.
func (r *retrier) do(ctx context.Context, fn func(ctx context.Context) (int, time.Duration, error)) (int, error) {
	var (
		status int
		err    error
		hint   time.Duration
	)
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		status, hint, err = fn(ctx)
		if err == nil {
			return status, nil
		}
		if ctx.Err() != nil {
			return status, ctx.Err()
		}
		if !r.shouldRetry(status, err) || attempt == r.config.MaxRetries {
			return status, err
		}
		if sleepErr := r.sleep(ctx, r.backoff(attempt, hint)); sleepErr != nil {
			return status, sleepErr
		}
	}
	return status, err
}

// parseRetryAfter extracts the Retry-After duration from an HTTP response
func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(retryAfter); err == nil {
		return time.Until(t)
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
