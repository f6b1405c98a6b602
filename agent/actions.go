package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"

	"github.com/martinemde/reactor/activity"
)

var (
	actionNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)
	validate          = validator.New(validator.WithRequiredStructEnabled())
)

// Handler executes an action body and returns its result.
type Handler func(ctx context.Context, body string) (any, error)

// Example is a worked transcript shown with an action in the catalogue.
type Example struct {
	Description string
	Activities  []activity.Activity
}

// ActionDefinition describes an action for the model.
type ActionDefinition struct {
	Name        string
	Description string
	// Terminal actions end Invoke once they succeed.
	Terminal bool
	Params   *jsonschema.Schema
	Result   *jsonschema.Schema
	Examples []Example
}

// RegisteredAction pairs an action definition with its handler.
type RegisteredAction struct {
	Definition ActionDefinition
	Handler    Handler
}

// ActionOption configures a typed action built by NewAction.
type ActionOption func(*ActionDefinition)

// Terminal marks the action as ending the invocation.
func Terminal() ActionOption {
	return func(d *ActionDefinition) { d.Terminal = true }
}

// WithExamples attaches worked examples to the action.
func WithExamples(examples ...Example) ActionOption {
	return func(d *ActionDefinition) { d.Examples = append(d.Examples, examples...) }
}

// NewAction builds an action whose body is JSON decoded into P, validated
// with `validate` struct tags and passed to fn. Schemas for P and R are
// reflected for the catalogue.
func NewAction[P, R any](name, description string, fn func(ctx context.Context, params P) (R, error), opts ...ActionOption) RegisteredAction {
	def := ActionDefinition{
		Name:        name,
		Description: description,
		Params:      schemaFor(reflect.TypeFor[P]()),
		Result:      schemaFor(reflect.TypeFor[R]()),
	}
	for _, opt := range opts {
		opt(&def)
	}
	return RegisteredAction{
		Definition: def,
		Handler: func(ctx context.Context, body string) (any, error) {
			var params P
			if err := decodeParams(body, &params); err != nil {
				return nil, fmt.Errorf("action %q params are not valid: %w", name, err)
			}
			if err := validateParams(ctx, params); err != nil {
				return nil, fmt.Errorf("action %q params are not valid: %w", name, err)
			}
			return fn(ctx, params)
		},
	}
}

func schemaFor(t reflect.Type) *jsonschema.Schema {
	r := &jsonschema.Reflector{DoNotReference: true, Anonymous: true}
	s := r.ReflectFromType(t)
	s.Version = ""
	return s
}

func decodeParams(body string, v any) error {
	body = strings.TrimSpace(body)
	if body == "" {
		body = "{}"
	}
	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after params")
	}
	return nil
}

func validateParams(ctx context.Context, params any) error {
	v := reflect.ValueOf(params)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	err := validate.StructCtx(ctx, v.Interface())
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs[i] = fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
		} else {
			msgs[i] = fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag())
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Registry is the injected set of actions the model may request.
type Registry struct {
	actions map[string]*RegisteredAction
	order   []string
	mu      sync.RWMutex
}

// NewRegistry creates a Registry holding actions.
func NewRegistry(actions ...RegisteredAction) (*Registry, error) {
	r := &Registry{actions: make(map[string]*RegisteredAction)}
	for _, a := range actions {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds or replaces an action.
func (r *Registry) Register(action RegisteredAction) error {
	name := action.Definition.Name
	if !actionNamePattern.MatchString(name) {
		return fmt.Errorf("invalid action name %q", name)
	}
	if action.Handler == nil {
		return fmt.Errorf("action %q has no handler", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.actions[name]; !ok {
		r.order = append(r.order, name)
	}
	r.actions[name] = &action
	return nil
}

// Get returns a registered action by name, or nil if not found.
func (r *Registry) Get(name string) *RegisteredAction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.actions[name]
}

// Names returns action names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Count returns the number of registered actions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actions)
}

// Execute dispatches body to the named action.
func (r *Registry) Execute(ctx context.Context, name, body string) (any, error) {
	action := r.Get(name)
	if action == nil {
		return nil, fmt.Errorf("action %q is not permitted", name)
	}
	return action.Handler(ctx, body)
}

// IsTerminal reports whether the named action ends the invocation.
func (r *Registry) IsTerminal(name string) bool {
	action := r.Get(name)
	return action != nil && action.Definition.Terminal
}

// Describe renders the action catalogue. Examples are encoded with codec.
func (r *Registry) Describe(_ context.Context, codec activity.Codec) (string, error) {
	names := r.Names()
	if len(names) == 0 {
		return "", errors.New("no actions registered")
	}
	parts := make([]string, 0, len(names))
	for _, name := range names {
		action := r.Get(name)
		text, err := describeAction(action.Definition, codec)
		if err != nil {
			return "", fmt.Errorf("describe action %q: %w", name, err)
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n"), nil
}

func describeAction(def ActionDefinition, codec activity.Codec) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n", def.Name)
	if def.Description != "" {
		sb.WriteString(def.Description)
		sb.WriteString("\n")
	}
	if def.Terminal {
		sb.WriteString("Taking this action ends the conversation.\n")
	}
	for _, s := range []struct {
		label  string
		schema *jsonschema.Schema
	}{{"Params", def.Params}, {"Result", def.Result}} {
		if s.schema == nil {
			continue
		}
		data, err := json.Marshal(s.schema)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "%s: `%s`\n", s.label, data)
	}
	for _, ex := range def.Examples {
		sb.WriteString("\nExample")
		if ex.Description != "" {
			sb.WriteString(": ")
			sb.WriteString(ex.Description)
		}
		sb.WriteString("\n")
		sb.WriteString(codec.EncodeAll(ex.Activities))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
