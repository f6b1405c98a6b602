package activity

import (
	"fmt"
	"unicode/utf8"
)

const maxFragment = 200

// DecodeError reports model output that could not be turned into activities.
type DecodeError struct {
	Message  string
	Fragment string
	Cause    error
}

func (e *DecodeError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Fragment != "" {
		msg = fmt.Sprintf("%s in %q", msg, clip(e.Fragment))
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// SequenceError reports an adjacent pair that breaks the
// Observation → Thought → Action → Observation grammar. Index is the
// position of the offending activity.
type SequenceError struct {
	Index int
	Prev  Kind
	Got   Kind
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("activity %d: %s must be followed by %s, got %s", e.Index, e.Prev, e.Prev.Next(), e.Got)
}

// Want returns the kind that was required at Index.
func (e *SequenceError) Want() Kind { return e.Prev.Next() }

// clip shortens s to maxFragment runes around a " ... " gap.
func clip(s string) string {
	if utf8.RuneCountInString(s) <= maxFragment {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxFragment/2]) + " ... " + string(runes[len(runes)-maxFragment/2:])
}
