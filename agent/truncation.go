package agent

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// TruncateObservation keeps the head and tail of output within maxChars
// runes. A non-positive limit disables truncation.
func TruncateObservation(output string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(output) <= maxChars {
		return output
	}
	runes := []rune(output)
	half := maxChars / 2
	removed := len(runes) - 2*half
	return string(runes[:half]) +
		fmt.Sprintf("\n\n[WARNING: action result was truncated. %d characters were removed from the middle.]\n\n", removed) +
		string(runes[len(runes)-half:])
}

// TruncateLines keeps the head and tail of output within maxLines.
func TruncateLines(output string, maxLines int) string {
	if maxLines <= 0 {
		return output
	}
	lines := strings.Split(output, "\n")
	if len(lines) <= maxLines {
		return output
	}

	headCount := maxLines / 2
	tailCount := maxLines - headCount
	omitted := len(lines) - headCount - tailCount

	return strings.Join(lines[:headCount], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tailCount:], "\n")
}
