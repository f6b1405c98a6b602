package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/martinemde/reactor/activity"
)

// Precondition failures reported by Invoke before any turn runs.
var (
	ErrEmptyHistory          = errors.New("agent: history is empty")
	ErrHistoryNotObservation = errors.New("agent: history must start and end with an observation")
	ErrBusy                  = errors.New("agent: invoke already in progress")
)

// TurnError is the base for failures recorded within a turn and retried.
type TurnError struct {
	Message string
	Cause   error
}

func (e *TurnError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *TurnError) Unwrap() error {
	return e.Cause
}

// MissingActionError reports a completion that ended in a Thought.
type MissingActionError struct {
	TurnError
	Thought activity.Activity
}

// LengthError reports a completion truncated by the token limit.
type LengthError struct {
	TurnError
	FinishReason string
}

// ExecutionError reports a failed action dispatch.
type ExecutionError struct {
	TurnError
	Action string
}

// CompletionError reports a failed LLM call.
type CompletionError struct {
	TurnError
	Retryable bool
}

// PipelineError reports a history transformer failure.
type PipelineError struct{ TurnError }

func newMissingActionError(thought activity.Activity) *MissingActionError {
	return &MissingActionError{
		TurnError: TurnError{Message: "completion ended with a thought and no action"},
		Thought:   thought,
	}
}

func newLengthError(reason string) *LengthError {
	return &LengthError{
		TurnError:    TurnError{Message: fmt.Sprintf("completion truncated (finish reason %q)", reason)},
		FinishReason: reason,
	}
}

func newExecutionError(action string, cause error) *ExecutionError {
	return &ExecutionError{
		TurnError: TurnError{Message: fmt.Sprintf("action %q failed", action), Cause: cause},
		Action:    action,
	}
}

func newCompletionError(cause error, retryable bool) *CompletionError {
	return &CompletionError{
		TurnError: TurnError{Message: "completion failed", Cause: cause},
		Retryable: retryable,
	}
}

// RetryExhaustedError is returned when a turn fails. Causes holds every
// recorded failure in order.
type RetryExhaustedError struct {
	Turn   int
	Causes []error
}

func (e *RetryExhaustedError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "turn %d failed after %d attempts", e.Turn, len(e.Causes))
	for i, cause := range e.Causes {
		fmt.Fprintf(&sb, "; [%d] %v", i+1, cause)
	}
	return sb.String()
}

func (e *RetryExhaustedError) Unwrap() []error {
	return e.Causes
}

// IterationExhaustedError is returned when no terminal action ran within
// the iteration budget.
type IterationExhaustedError struct {
	Iterations int
}

func (e *IterationExhaustedError) Error() string {
	return fmt.Sprintf("no terminal action after %d iterations", e.Iterations)
}

// CancelledError is returned when the context is done at a turn boundary.
type CancelledError struct {
	Turn  int
	Cause error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("cancelled before turn %d: %v", e.Turn, e.Cause)
}

func (e *CancelledError) Unwrap() error {
	return e.Cause
}

// failureKind labels a recorded cause for metrics and events.
func failureKind(err error) string {
	switch err.(type) {
	case *activity.DecodeError:
		return "decode"
	case *activity.SequenceError:
		return "sequence"
	case *MissingActionError:
		return "missing_action"
	case *LengthError:
		return "length"
	case *ExecutionError:
		return "execution"
	case *CompletionError:
		return "completion"
	case *PipelineError:
		return "pipeline"
	default:
		return "unknown"
	}
}
