package history

import (
	"context"

	"github.com/martinemde/reactor/activity"
)

// SequencePolicy enforces the Observation → Thought → Action grammar, both
// over a whole history and over a batch appended after the last accepted
// activity.
type SequencePolicy interface {
	Transformer
	// Continue returns the part of batch that may follow an activity of kind
	// last, or an error when the batch is rejected.
	Continue(last activity.Kind, batch []activity.Activity) ([]activity.Activity, error)
}

// StrictSequence fails fast with an *activity.SequenceError on the first
// violation.
type StrictSequence struct{}

func (StrictSequence) Transform(_ context.Context, acts []activity.Activity) ([]activity.Activity, error) {
	if err := activity.ValidateSequence(acts); err != nil {
		return nil, err
	}
	return acts, nil
}

func (StrictSequence) Continue(last activity.Kind, batch []activity.Activity) ([]activity.Activity, error) {
	if err := activity.ValidateContinuation(last, batch); err != nil {
		return nil, err
	}
	return batch, nil
}

// LenientSequence never fails; it truncates at the first violation.
type LenientSequence struct{}

func (LenientSequence) Transform(_ context.Context, acts []activity.Activity) ([]activity.Activity, error) {
	return activity.LegalPrefix(acts), nil
}

func (LenientSequence) Continue(last activity.Kind, batch []activity.Activity) ([]activity.Activity, error) {
	return activity.LegalContinuation(last, batch), nil
}

// ActionObservationSequence only requires that every Action is followed by
// an Observation. It suits models that do not emit a separate reasoning
// step.
type ActionObservationSequence struct{}

func (ActionObservationSequence) Transform(_ context.Context, acts []activity.Activity) ([]activity.Activity, error) {
	for i := 1; i < len(acts); i++ {
		if acts[i-1].Kind() == activity.KindAction && acts[i].Kind() != activity.KindObservation {
			return nil, &activity.SequenceError{Index: i, Prev: activity.KindAction, Got: acts[i].Kind()}
		}
	}
	return acts, nil
}
