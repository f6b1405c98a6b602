package history

import (
	"context"
	"slices"

	"github.com/martinemde/reactor/activity"
)

// LengthWindow keeps the last N activities. N <= 0 disables the window.
type LengthWindow struct {
	N int
}

func (w LengthWindow) Transform(_ context.Context, acts []activity.Activity) ([]activity.Activity, error) {
	if w.N <= 0 || len(acts) <= w.N {
		return acts, nil
	}
	return slices.Clone(acts[len(acts)-w.N:]), nil
}
