package llm

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// RetryPolicy is the transport-level backoff applied to retryable provider
// failures. It is separate from the agent's turn retries, which react to bad
// completions rather than failed calls.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first call.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	// Jitter spreads each delay over [0.5, 1.5) of its nominal value.
	Jitter bool
	// OnRetry observes each retry before its delay starts. attempt is 1-based.
	OnRetry func(err error, attempt int, delay time.Duration)
}

// DefaultRetryPolicy returns two retries starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		MaxDelay:   time.Minute,
		Multiplier: 2,
		Jitter:     true,
	}
}

// Delay is the backoff before retry n (0-based), capped at MaxDelay.
func (p RetryPolicy) Delay(n int) time.Duration {
	delay := float64(p.BaseDelay)
	for i := 0; i < n && (p.MaxDelay <= 0 || delay < float64(p.MaxDelay)); i++ {
		delay *= p.Multiplier
	}
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter {
		delay *= 0.5 + rand.Float64()
	}
	return time.Duration(delay)
}

// next decides whether err earns retry n and how long to wait first. A
// Retry-After hint longer than MaxDelay gives up.
func (p RetryPolicy) next(err error, n int) (time.Duration, bool) {
	if n >= p.MaxRetries || !IsRetryable(err) {
		return 0, false
	}
	var rl *RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		if p.MaxDelay > 0 && rl.RetryAfter > p.MaxDelay {
			return 0, false
		}
		return rl.RetryAfter, true
	}
	return p.Delay(n), true
}

// Retry calls fn until it succeeds, returns a non-retryable error, or the
// policy runs out. A cancelled wait returns an *AbortError.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	for n := 0; ; n++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		delay, ok := policy.next(err, n)
		if !ok {
			var zero T
			return zero, err
		}
		if policy.OnRetry != nil {
			policy.OnRetry(err, n+1, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, &AbortError{SDKError: SDKError{Message: "request cancelled during retry", Cause: ctx.Err()}}
		case <-timer.C:
		}
	}
}

// RetryMiddleware retries retryable provider failures with policy.
func RetryMiddleware(policy RetryPolicy) Middleware {
	return func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error) {
		return Retry(ctx, policy, func(ctx context.Context) (*Response, error) {
			return next(ctx, req)
		})
	}
}
