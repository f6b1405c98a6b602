package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/reactor/activity"
)

func TestRegistryExecute(t *testing.T) {
	reg := calculator(t)
	ctx := context.Background()

	got, err := reg.Execute(ctx, "add", `{"left": 2, "right": 3}`)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got)

	_, err = reg.Execute(ctx, "divide", `{"left": 2, "right": 0}`)
	assert.EqualError(t, err, "cannot divide by zero")

	_, err = reg.Execute(ctx, "power", `{}`)
	assert.EqualError(t, err, `action "power" is not permitted`)
}

func TestRegistryRejectsInvalidParams(t *testing.T) {
	reg := calculator(t)
	ctx := context.Background()

	tests := []struct {
		name, action, body, want string
	}{
		{"not json", "add", "left=1", "params are not valid"},
		{"unknown field", "add", `{"left": 1, "rigth": 2}`, "unknown field"},
		{"trailing data", "add", `{"left": 1} {"right": 2}`, "unexpected data"},
		{"wrong type", "add", `{"left": "one"}`, "params are not valid"},
		{"missing required", "finish", `{}`, "Answer must satisfy required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Execute(ctx, tt.action, tt.body)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRegistryEmptyBodyMeansNoParams(t *testing.T) {
	ping := NewAction("ping", "Reply pong.", func(_ context.Context, _ struct{}) (string, error) {
		return "pong", nil
	})
	reg, err := NewRegistry(ping)
	require.NoError(t, err)

	got, err := reg.Execute(context.Background(), "ping", "  ")
	require.NoError(t, err)
	assert.Equal(t, "pong", got)
}

func TestRegistryRegister(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	assert.Error(t, reg.Register(RegisteredAction{Definition: ActionDefinition{Name: "bad name"}, Handler: func(context.Context, string) (any, error) { return nil, nil }}))
	assert.Error(t, reg.Register(RegisteredAction{Definition: ActionDefinition{Name: "nohandler"}}))

	first := RegisteredAction{
		Definition: ActionDefinition{Name: "echo", Description: "v1"},
		Handler:    func(_ context.Context, body string) (any, error) { return body, nil },
	}
	second := first
	second.Definition.Description = "v2"
	other := first
	other.Definition.Name = "other"

	require.NoError(t, reg.Register(first))
	require.NoError(t, reg.Register(other))
	require.NoError(t, reg.Register(second))

	assert.Equal(t, 2, reg.Count())
	assert.Equal(t, []string{"echo", "other"}, reg.Names(), "replacing keeps registration order")
	assert.Equal(t, "v2", reg.Get("echo").Definition.Description)
	assert.Nil(t, reg.Get("missing"))
}

func TestRegistryIsTerminal(t *testing.T) {
	reg := calculator(t)
	assert.True(t, reg.IsTerminal("finish"))
	assert.False(t, reg.IsTerminal("add"))
	assert.False(t, reg.IsTerminal("missing"))
}

func TestRegistryDescribe(t *testing.T) {
	example := Example{
		Description: "adding two numbers",
		Activities: []activity.Activity{
			activity.NewThought("I need the sum."),
			activity.NewAction("add", `{"left": 1, "right": 2}`),
			activity.NewObservation("3"),
		},
	}
	add := NewAction("add", "Add two numbers.", func(_ context.Context, p operands) (float64, error) {
		return p.Left + p.Right, nil
	}, WithExamples(example))
	finish := NewAction("finish", "Give the final answer.", func(_ context.Context, p answer) (string, error) {
		return p.Answer, nil
	}, Terminal())
	reg, err := NewRegistry(add, finish)
	require.NoError(t, err)

	text, err := reg.Describe(context.Background(), activity.NewTagCodec())
	require.NoError(t, err)

	assert.Less(t, strings.Index(text, "## add"), strings.Index(text, "## finish"))
	assert.Contains(t, text, "Add two numbers.")
	assert.Contains(t, text, `"left"`)
	assert.Contains(t, text, `"type":"number"`)
	assert.NotContains(t, text, "$schema")
	assert.Contains(t, text, "Example: adding two numbers")
	assert.Contains(t, text, `<BEGIN ACTION kind="add">`)
	assert.Contains(t, text, "Taking this action ends the conversation.")

	empty, err := NewRegistry()
	require.NoError(t, err)
	_, err = empty.Describe(context.Background(), activity.NewTagCodec())
	assert.Error(t, err)
}

func TestFormatResult(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "hello", "hello"},
		{"nil", nil, ""},
		{"bytes", []byte("raw"), "raw"},
		{"number", 3.0, "3"},
		{"map", map[string]any{"sum": 3, "ok": true}, "ok: true\nsum: 3"},
		{"struct", struct {
			Name string `yaml:"name"`
		}{"x"}, "name: x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatResult(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatError(t *testing.T) {
	text := FormatError("divide", assert.AnError)
	assert.True(t, strings.HasPrefix(text, "errors:\n"))
	assert.Contains(t, text, "message: "+assert.AnError.Error())
	assert.Contains(t, text, "action: divide")
}
