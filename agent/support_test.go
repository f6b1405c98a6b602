package agent

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/martinemde/reactor/activity"
)

func actions(names ...string) []activity.Activity {
	h := []activity.Activity{activity.NewObservation("start")}
	for _, n := range names {
		h = append(h, activity.NewThought("t"), activity.NewAction(n, "{}"), activity.NewObservation("ok"))
	}
	return h
}

func TestDetectLoop(t *testing.T) {
	tests := []struct {
		name   string
		hist   []activity.Activity
		window int
		want   bool
	}{
		{"too few actions", actions("a", "a"), 4, false},
		{"same action", actions("a", "a", "a", "a"), 4, true},
		{"alternating", actions("a", "b", "a", "b"), 4, true},
		{"period three", actions("a", "b", "c", "a", "b", "c"), 6, true},
		{"no pattern", actions("a", "b", "c", "d"), 4, false},
		{"only the tail counts", actions("x", "y", "a", "a"), 2, true},
		{"disabled", actions("a", "a", "a"), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLoop(tt.hist, tt.window))
		})
	}
}

func TestDetectLoopComparesBodies(t *testing.T) {
	h := []activity.Activity{
		activity.NewObservation("q"),
		activity.NewThought("t"), activity.NewAction("add", `{"left": 1}`), activity.NewObservation("1"),
		activity.NewThought("t"), activity.NewAction("add", `{"left": 2}`), activity.NewObservation("2"),
	}
	assert.False(t, DetectLoop(h, 2))
}

func TestTruncateObservation(t *testing.T) {
	assert.Equal(t, "short", TruncateObservation("short", 10))
	assert.Equal(t, strings.Repeat("x", 50), TruncateObservation(strings.Repeat("x", 50), 0))

	out := TruncateObservation(strings.Repeat("a", 50)+strings.Repeat("b", 50), 20)
	assert.True(t, strings.HasPrefix(out, strings.Repeat("a", 10)+"\n"))
	assert.True(t, strings.HasSuffix(out, "\n"+strings.Repeat("b", 10)))
	assert.Contains(t, out, "80 characters were removed")
}

func TestTruncateObservationKeepsRunesWhole(t *testing.T) {
	in := strings.Repeat("é", 30) + strings.Repeat("日", 30)
	out := TruncateObservation(in, 21)
	assert.True(t, utf8.ValidString(out))
	assert.True(t, strings.HasPrefix(out, strings.Repeat("é", 10)+"\n"))
	assert.True(t, strings.HasSuffix(out, "\n"+strings.Repeat("日", 10)))
	assert.Contains(t, out, "40 characters were removed")
	assert.Equal(t, in, TruncateObservation(in, 60), "limits count runes, not bytes")
}

func TestTruncateLines(t *testing.T) {
	in := "1\n2\n3\n4\n5\n6"
	assert.Equal(t, in, TruncateLines(in, 0))
	assert.Equal(t, in, TruncateLines(in, 6))
	assert.Equal(t, "1\n2\n[... 2 lines omitted ...]\n5\n6", TruncateLines(in, 4))
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	assert.Equal(t, DefaultMaxRetries, base.MaxRetries)
	assert.Equal(t, DefaultMaxIterations, base.MaxIterations)
	assert.Len(t, base.Examples, 3)

	assert.Equal(t, base, base.Merge(nil))

	temp := 0.2
	merged := base.Merge(&Config{MaxRetries: 3, Objective: "Count.", Temperature: &temp, LoopDetectionWindow: -1})
	assert.Equal(t, 3, merged.MaxRetries)
	assert.Equal(t, DefaultMaxIterations, merged.MaxIterations, "zero keeps the default")
	assert.Equal(t, "Count.", merged.Objective)
	assert.Equal(t, DefaultInstruction, merged.Instruction)
	assert.Equal(t, -1, merged.LoopDetectionWindow)
	assert.Equal(t, DefaultObservationLimit, merged.ObservationLimit)
	temp = 0.9
	assert.Equal(t, 0.2, *merged.Temperature, "merge copies pointers")

	cleared := base.Merge(&Config{Constraints: []string{}})
	assert.Empty(t, cleared.Constraints, "an empty non-nil slice clears the default")
}

func TestErrorMessages(t *testing.T) {
	exhausted := &RetryExhaustedError{Turn: 2, Causes: []error{
		&activity.DecodeError{Message: "no activities found"},
		newMissingActionError(activity.NewThought("t")),
	}}
	assert.Equal(t, "turn 2 failed after 2 attempts; [1] no activities found; [2] completion ended with a thought and no action", exhausted.Error())
	assert.Len(t, exhausted.Unwrap(), 2)

	assert.Equal(t, "no terminal action after 5 iterations", (&IterationExhaustedError{Iterations: 5}).Error())
	assert.Equal(t, `action "add" failed: boom`, newExecutionError("add", assertErr("boom")).Error())
	assert.Equal(t, `completion truncated (finish reason "length")`, newLengthError("length").Error())
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestFailureKind(t *testing.T) {
	assert.Equal(t, "decode", failureKind(&activity.DecodeError{}))
	assert.Equal(t, "sequence", failureKind(&activity.SequenceError{}))
	assert.Equal(t, "completion", failureKind(newCompletionError(assertErr("x"), true)))
	assert.Equal(t, "pipeline", failureKind(&PipelineError{TurnError{Message: "x", Cause: &activity.SequenceError{}}}))
	assert.Equal(t, "unknown", failureKind(assertErr("x")))
}
