package agent

import (
	"crypto/sha256"
	"fmt"

	"github.com/martinemde/reactor/activity"
)

// actionSignature identifies an action by name and a hash of its body.
func actionSignature(a activity.Activity) string {
	h := sha256.Sum256([]byte(a.Input()))
	return fmt.Sprintf("%s:%x", a.Name(), h[:8])
}

// recentActionSignatures returns up to count signatures of the latest
// actions in chronological order.
func recentActionSignatures(history []activity.Activity, count int) []string {
	var sigs []string
	for i := len(history) - 1; i >= 0 && len(sigs) < count; i-- {
		if history[i].Kind() == activity.KindAction {
			sigs = append(sigs, actionSignature(history[i]))
		}
	}
	for i, j := 0, len(sigs)-1; i < j; i, j = i+1, j-1 {
		sigs[i], sigs[j] = sigs[j], sigs[i]
	}
	return sigs
}

// DetectLoop reports whether the last window actions repeat a pattern of
// length 1, 2 or 3.
func DetectLoop(history []activity.Activity, window int) bool {
	if window < 2 {
		return false
	}
	sigs := recentActionSignatures(history, window)
	if len(sigs) < window {
		return false
	}

	for patternLen := 1; patternLen <= 3 && patternLen < window; patternLen++ {
		if window%patternLen != 0 {
			continue
		}
		match := true
		for i := patternLen; i < window && match; i++ {
			match = sigs[i] == sigs[i%patternLen]
		}
		if match {
			return true
		}
	}
	return false
}

func loopNotice(window int) string {
	return fmt.Sprintf("Loop detected: the last %d actions follow a repeating pattern. Try a different approach or finish.", window)
}
