package activity

import (
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"strings"
)

// Kind discriminates between the three step types of a transcript.
type Kind string

const (
	KindObservation Kind = "Observation"
	KindThought     Kind = "Thought"
	KindAction      Kind = "Action"
)

// AttrName is the attribute carrying the target action name of an Action.
const AttrName = "kind"

var attrKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// Valid reports whether k is one of the three step kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindObservation, KindThought, KindAction:
		return true
	}
	return false
}

// Tag returns the upper-case marker name used by the tagged wire format.
func (k Kind) Tag() string {
	return strings.ToUpper(string(k))
}

// Next returns the kind that must directly follow k.
func (k Kind) Next() Kind {
	switch k {
	case KindObservation:
		return KindThought
	case KindThought:
		return KindAction
	case KindAction:
		return KindObservation
	}
	return ""
}

// ParseKind maps a marker name onto a Kind, ignoring case.
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{KindObservation, KindThought, KindAction} {
		if strings.EqualFold(string(k), strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown activity kind %q", s)
}

// Activity is one immutable step of the transcript. The zero value is not a
// valid activity; use New or one of the kind-specific constructors.
type Activity struct {
	kind  Kind
	input string
	attrs map[string]string
}

// New creates an Activity after checking the kind and attribute keys.
// Attributes are only accepted on actions. Surrounding whitespace of input
// is not significant and is trimmed.
func New(kind Kind, input string, attrs map[string]string) (Activity, error) {
	if !kind.Valid() {
		return Activity{}, fmt.Errorf("invalid activity kind %q", kind)
	}
	if len(attrs) > 0 && kind != KindAction {
		return Activity{}, fmt.Errorf("%s activities carry no attributes", kind)
	}
	for key := range attrs {
		if !attrKeyPattern.MatchString(key) {
			return Activity{}, fmt.Errorf("invalid attribute name %q", key)
		}
	}
	a := Activity{kind: kind, input: strings.TrimSpace(input)}
	if len(attrs) > 0 {
		a.attrs = maps.Clone(attrs)
	}
	return a, nil
}

// NewObservation creates an Observation holding input.
func NewObservation(input string) Activity {
	return Activity{kind: KindObservation, input: strings.TrimSpace(input)}
}

// NewThought creates a Thought holding input.
func NewThought(input string) Activity {
	return Activity{kind: KindThought, input: strings.TrimSpace(input)}
}

// NewAction creates an Action that targets the named action with body.
func NewAction(name, body string) Activity {
	a := Activity{kind: KindAction, input: strings.TrimSpace(body)}
	if name != "" {
		a.attrs = map[string]string{AttrName: name}
	}
	return a
}

func (a Activity) Kind() Kind     { return a.kind }
func (a Activity) Input() string  { return a.input }
func (a Activity) IsZero() bool   { return a.kind == "" }
func (a Activity) HasAttrs() bool { return len(a.attrs) > 0 }

// Attribute returns a single attribute value.
func (a Activity) Attribute(key string) (string, bool) {
	v, ok := a.attrs[key]
	return v, ok
}

// Attributes returns a copy of the attribute map, or nil when there is none.
func (a Activity) Attributes() map[string]string {
	if len(a.attrs) == 0 {
		return nil
	}
	return maps.Clone(a.attrs)
}

// Name returns the target action name of an Action.
func (a Activity) Name() string {
	return a.attrs[AttrName]
}

// Equal reports whether a and b have the same kind, input and attributes.
func (a Activity) Equal(b Activity) bool {
	return a.kind == b.kind && a.input == b.input && maps.Equal(a.attrs, b.attrs)
}

func (a Activity) String() string {
	if name := a.Name(); name != "" {
		return fmt.Sprintf("%s(%s): %s", a.kind, name, a.input)
	}
	return fmt.Sprintf("%s: %s", a.kind, a.input)
}

type activityJSON struct {
	Kind       Kind              `json:"kind"`
	Input      string            `json:"input"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func (a Activity) MarshalJSON() ([]byte, error) {
	return json.Marshal(activityJSON{Kind: a.kind, Input: a.input, Attributes: a.attrs})
}

func (a *Activity) UnmarshalJSON(data []byte) error {
	var raw activityJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := New(raw.Kind, raw.Input, raw.Attributes)
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

// Kinds returns the kinds of acts in order.
func Kinds(acts []Activity) []Kind {
	kinds := make([]Kind, len(acts))
	for i, a := range acts {
		kinds[i] = a.kind
	}
	return kinds
}
