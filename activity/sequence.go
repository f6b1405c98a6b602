package activity

import "slices"

// Follows reports whether next may directly follow prev.
func Follows(prev, next Kind) bool {
	return prev.Valid() && prev.Next() == next
}

// ValidateSequence checks every adjacent pair of acts and returns a
// *SequenceError for the first violation.
func ValidateSequence(acts []Activity) error {
	for i := 1; i < len(acts); i++ {
		if !Follows(acts[i-1].kind, acts[i].kind) {
			return &SequenceError{Index: i, Prev: acts[i-1].kind, Got: acts[i].kind}
		}
	}
	return nil
}

// ValidateContinuation checks that batch legally continues a sequence whose
// last accepted activity has kind last. Indexes in the returned error are
// relative to batch.
func ValidateContinuation(last Kind, batch []Activity) error {
	prev := last
	for i, a := range batch {
		if !Follows(prev, a.kind) {
			return &SequenceError{Index: i, Prev: prev, Got: a.kind}
		}
		prev = a.kind
	}
	return nil
}

// LegalPrefix returns the longest prefix of acts that satisfies the grammar.
func LegalPrefix(acts []Activity) []Activity {
	if err := ValidateSequence(acts); err != nil {
		return acts[:err.(*SequenceError).Index]
	}
	return acts
}

// LegalContinuation returns the longest prefix of batch that legally
// continues after an activity of kind last.
func LegalContinuation(last Kind, batch []Activity) []Activity {
	if err := ValidateContinuation(last, batch); err != nil {
		return batch[:err.(*SequenceError).Index]
	}
	return batch
}

// LeadingTurn applies the completion truncation policy: when a single
// completion decodes into more than two activities, only the first Thought
// and the first Action after it are kept, in that order. An Action is
// taken from anywhere in the batch when none follows the Thought, and a
// batch without a Thought keeps its first Action alone. Shorter batches are
// returned as is.
func LeadingTurn(acts []Activity) []Activity {
	if len(acts) <= 2 {
		return acts
	}
	ti := slices.IndexFunc(acts, func(a Activity) bool { return a.kind == KindThought })
	isAction := func(a Activity) bool { return a.kind == KindAction }
	if ti < 0 {
		if ai := slices.IndexFunc(acts, isAction); ai >= 0 {
			return []Activity{acts[ai]}
		}
		return acts[:1]
	}
	ai := slices.IndexFunc(acts[ti+1:], isAction)
	if ai >= 0 {
		return []Activity{acts[ti], acts[ti+1+ai]}
	}
	if ai = slices.IndexFunc(acts, isAction); ai >= 0 {
		return []Activity{acts[ti], acts[ai]}
	}
	return []Activity{acts[ti]}
}
