package llm

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/time/rate"
)

func TestRateLimitPassesThrough(t *testing.T) {
	mock := newMockAdapter("test", "ok")
	client := NewClient(WithProvider("test", mock), WithMiddleware(RateLimit(rate.NewLimiter(rate.Inf, 1))))

	for i := 0; i < 3; i++ {
		if _, err := client.Complete(context.Background(), Request{Prompt: "Hi"}); err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
	}
	if mock.calls != 3 {
		t.Errorf("expected 3 calls, got %d", mock.calls)
	}
}

func TestRateLimitCancelledWait(t *testing.T) {
	mock := newMockAdapter("test", "ok")
	limiter := rate.NewLimiter(rate.Limit(0.001), 1)
	limiter.Allow() // drain the only token
	client := NewClient(WithProvider("test", mock), WithMiddleware(RateLimit(limiter)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Complete(ctx, Request{Prompt: "Hi"})

	var abortErr *AbortError
	if !errors.As(err, &abortErr) {
		t.Fatalf("expected AbortError, got %v", err)
	}
	if IsRetryable(err) {
		t.Error("a cancelled wait must not be retried")
	}
	if mock.calls != 0 {
		t.Errorf("adapter must not be called, got %d calls", mock.calls)
	}
}
