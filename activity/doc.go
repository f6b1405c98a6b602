// Package activity defines the steps of a reason/act/observe transcript and
// the textual wire formats a language model reads and writes them in.
//
// An Activity is one of three kinds. Observations carry results fed back to
// the model, Thoughts carry its reasoning, and Actions request an external
// capability by name:
//
//	history := []activity.Activity{
//	    activity.NewObservation("What is 2 + 3?"),
//	    activity.NewThought("I should add the numbers."),
//	    activity.NewAction("add", `{"left": 2, "right": 3}`),
//	    activity.NewObservation("5"),
//	}
//
// A valid transcript follows the cyclic grammar
// Observation → Thought → Action → Observation. ValidateSequence enforces it
// strictly; LegalPrefix and LegalContinuation return the longest legal part
// instead of failing.
//
// A Codec owns the wire grammar. TagCodec uses `<BEGIN KIND>`/`<END KIND>`
// marker pairs, LineCodec uses `//Kind N//` line markers. Both strip a single
// outer code fence on decode and re-apply it on encode, so
// Decode(Encode(a)) reproduces a's kind, input and attributes.
package activity
