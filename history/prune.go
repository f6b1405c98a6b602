package history

import (
	"context"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/martinemde/reactor/activity"
)

// ErrorPruner forgets interactions that ended in an error. Every Observation
// reporting an error is removed together with the Thought and Action that
// produced it; an error Observation at the very start of the history is
// removed with the Thought that follows it.
type ErrorPruner struct {
	// IsError overrides the detection of failed observations. The default is
	// HasErrors applied to the observation input.
	IsError func(activity.Activity) bool
}

func (p ErrorPruner) Transform(_ context.Context, acts []activity.Activity) ([]activity.Activity, error) {
	isError := p.IsError
	if isError == nil {
		isError = func(a activity.Activity) bool { return HasErrors(a.Input()) }
	}

	out := slices.Clone(acts)
	for {
		idx := slices.IndexFunc(out, func(a activity.Activity) bool {
			return a.Kind() == activity.KindObservation && isError(a)
		})
		switch {
		case idx < 0:
			return out, nil
		case idx == 0:
			out = slices.Delete(out, 0, min(2, len(out)))
		default:
			out = slices.Delete(out, max(0, idx-2), idx+1)
		}
	}
}

// HasErrors reports whether input is a YAML mapping whose errors field is
// set to anything other than null, false, zero or an empty string.
func HasErrors(input string) bool {
	var doc map[string]any
	if err := yaml.Unmarshal([]byte(input), &doc); err != nil {
		return false
	}
	v, ok := doc["errors"]
	if !ok {
		return false
	}
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case float64:
		return t != 0
	}
	return true
}
