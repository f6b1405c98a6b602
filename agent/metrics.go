package agent

import (
	"time"

	"github.com/martinemde/reactor/llm"
)

// Metrics receives measurements from a Controller.
type Metrics interface {
	InvokeFinished(outcome string, d time.Duration)
	TurnFinished(outcome string, attempts int, d time.Duration)
	AttemptFailed(kind string)
	ActionExecuted(name, outcome string, d time.Duration)
	CompletionFinished(provider string, usage llm.Usage, d time.Duration)
	LoopDetected()
}

type nopMetrics struct{}

func (nopMetrics) InvokeFinished(string, time.Duration)                {}
func (nopMetrics) TurnFinished(string, int, time.Duration)             {}
func (nopMetrics) AttemptFailed(string)                                {}
func (nopMetrics) ActionExecuted(string, string, time.Duration)        {}
func (nopMetrics) CompletionFinished(string, llm.Usage, time.Duration) {}
func (nopMetrics) LoopDetected()                                       {}

// invokeOutcome labels the result of Invoke.
func invokeOutcome(err error) string {
	switch err.(type) {
	case nil:
		return "terminal"
	case *RetryExhaustedError:
		return "retry_exhausted"
	case *IterationExhaustedError:
		return "iteration_exhausted"
	case *CancelledError:
		return "cancelled"
	default:
		return "error"
	}
}
