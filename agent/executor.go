package agent

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/martinemde/reactor/activity"
)

// Executor dispatches an action body to the capability named by the action.
type Executor interface {
	Execute(ctx context.Context, name, body string) (any, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, name, body string) (any, error)

func (f ExecutorFunc) Execute(ctx context.Context, name, body string) (any, error) {
	return f(ctx, name, body)
}

// Terminator reports which actions end an invocation.
type Terminator interface {
	IsTerminal(name string) bool
}

// Describer renders the action catalogue shown in the prompt.
type Describer interface {
	Describe(ctx context.Context, codec activity.Codec) (string, error)
}

type errorReport struct {
	Errors []errorEntry `yaml:"errors"`
}

type errorEntry struct {
	Message string `yaml:"message"`
	Action  string `yaml:"action,omitempty"`
}

// FormatResult renders an action result as observation text. Strings pass
// through; anything else is rendered as YAML.
func FormatResult(result any) (string, error) {
	switch v := result.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	data, err := yaml.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("render action result: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// FormatError renders an execution failure as an `errors` YAML document so
// history.ErrorPruner recognises it.
func FormatError(action string, err error) string {
	data, mErr := yaml.Marshal(errorReport{Errors: []errorEntry{{Message: err.Error(), Action: action}}})
	if mErr != nil {
		return fmt.Sprintf("errors:\n  - message: %q", err.Error())
	}
	return strings.TrimRight(string(data), "\n")
}
