package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimit returns middleware that waits for a token from limiter before
// every provider call. A cancelled wait is reported as an *AbortError.
func RateLimit(limiter *rate.Limiter) Middleware {
	return func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error) {
		if err := limiter.Wait(ctx); err != nil {
			return nil, &AbortError{SDKError: SDKError{Message: "rate limiter wait", Cause: err}}
		}
		return next(ctx, req)
	}
}
