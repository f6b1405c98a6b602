package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// SDKError is the base of every error the llm package returns.
type SDKError struct {
	Message string
	Cause   error
}

func (e *SDKError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *SDKError) Unwrap() error { return e.Cause }

// ProviderError is a failure reported by a provider. RetryAfter carries the
// provider's back-off hint when it sent one.
type ProviderError struct {
	SDKError
	Provider   string
	StatusCode int
	Retryable  bool
	RetryAfter time.Duration
}

func (e *ProviderError) Error() string {
	s := fmt.Sprintf("%s: %s", e.Provider, e.Message)
	if e.StatusCode != 0 {
		s += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	return s
}

func (e *ProviderError) temporary() bool { return e.Retryable }

// Provider failures that never succeed on a second try.
type (
	AuthenticationError struct{ ProviderError }
	AccessDeniedError   struct{ ProviderError }
	NotFoundError       struct{ ProviderError }
	InvalidRequestError struct{ ProviderError }
	ContentFilterError  struct{ ProviderError }
	ContextLengthError  struct{ ProviderError }
	QuotaExceededError  struct{ ProviderError }
)

func (*AuthenticationError) temporary() bool { return false }
func (*AccessDeniedError) temporary() bool   { return false }
func (*NotFoundError) temporary() bool       { return false }
func (*InvalidRequestError) temporary() bool { return false }
func (*ContentFilterError) temporary() bool  { return false }
func (*ContextLengthError) temporary() bool  { return false }
func (*QuotaExceededError) temporary() bool  { return false }

// Provider failures worth another attempt.
type (
	RateLimitError struct{ ProviderError }
	ServerError    struct{ ProviderError }
)

func (*RateLimitError) temporary() bool { return true }
func (*ServerError) temporary() bool    { return true }

// Failures raised on this side of the wire.
type (
	RequestTimeoutError struct{ SDKError }
	NetworkError        struct{ SDKError }
	AbortError          struct{ SDKError }
	ConfigurationError  struct{ SDKError }
)

func (*RequestTimeoutError) temporary() bool { return true }
func (*NetworkError) temporary() bool        { return true }
func (*AbortError) temporary() bool          { return false }
func (*ConfigurationError) temporary() bool  { return false }

// ErrorForStatus builds the error matching an HTTP status returned by
// provider. Statuses without a dedicated type become a retryable
// *ProviderError.
func ErrorForStatus(status int, provider, message string, cause error) error {
	pe := ProviderError{
		SDKError:   SDKError{Message: message, Cause: cause},
		Provider:   provider,
		StatusCode: status,
	}
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &InvalidRequestError{pe}
	case http.StatusUnauthorized:
		return &AuthenticationError{pe}
	case http.StatusPaymentRequired:
		return &QuotaExceededError{pe}
	case http.StatusForbidden:
		return &AccessDeniedError{pe}
	case http.StatusNotFound:
		return &NotFoundError{pe}
	case http.StatusRequestEntityTooLarge:
		return &ContextLengthError{pe}
	case http.StatusRequestTimeout:
		return &RequestTimeoutError{pe.SDKError}
	case http.StatusTooManyRequests:
		pe.Retryable = true
		return &RateLimitError{pe}
	}
	pe.Retryable = true
	if status >= 500 {
		return &ServerError{pe}
	}
	return &pe
}

// IsRetryable reports whether err is a transient failure. The first
// classified error in the chain decides; unclassified errors count as
// transient, context cancellation never does.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var c interface{ temporary() bool }
	if errors.As(err, &c) {
		return c.temporary()
	}
	return true
}
