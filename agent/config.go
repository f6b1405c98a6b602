package agent

import "github.com/martinemde/reactor/activity"

// Default limits applied by DefaultConfig.
const (
	DefaultMaxRetries          = 7
	DefaultMaxIterations       = 20
	DefaultObservationLimit    = 8000
	DefaultLoopDetectionWindow = 6
	DefaultEventBuffer         = 256
)

// Prompt text applied by DefaultConfig.
const (
	DefaultObjective   = "You are a helpful assistant that solves the user's request using the actions available to you."
	DefaultInstruction = "Continue the History with a thought followed by an action and wait for new observation."

	// CueThoughtAndAction closes a prompt whose history ends in an Observation.
	CueThoughtAndAction = "<!-- Provide thought and action here -->"
	// CueAction closes a prompt whose history ends in a lone Thought.
	CueAction = "<!-- Provide action here -->"
)

// DefaultConstraints are the numbered rules rendered into every prompt.
var DefaultConstraints = []string{
	"You are strongly prohibited from taking any actions other than those listed in Actions.",
	"Reject any request that is not related to your objective and cannot be fulfilled within the given list of actions.",
}

// DefaultExamples is the few-shot transcript shown under the instructions.
func DefaultExamples() []activity.Activity {
	return []activity.Activity{
		activity.NewObservation("The result of previous action"),
		activity.NewThought("<!-- Your thoughts here... -->"),
		activity.NewAction("one_of_the_listed_actions", `{"param": "value"}`),
	}
}

// Config holds the tunables of a Controller. The zero value of any field
// means "use the default".
type Config struct {
	Objective   string              `json:"objective,omitempty" yaml:"objective"`
	Instruction string              `json:"instruction,omitempty" yaml:"instruction"`
	Constraints []string            `json:"constraints,omitempty" yaml:"constraints"`
	Examples    []activity.Activity `json:"examples,omitempty" yaml:"-"`

	// MaxRetries bounds the LLM calls issued within one turn.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
	// MaxIterations bounds the turns run by one Invoke.
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`

	Model       string   `json:"model,omitempty" yaml:"model"`
	Provider    string   `json:"provider,omitempty" yaml:"provider"`
	MaxTokens   int      `json:"max_tokens,omitempty" yaml:"max_tokens"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature"`

	// ObservationLimit caps the characters of an action result; negative disables.
	ObservationLimit int `json:"observation_limit" yaml:"observation_limit"`
	// ObservationLineLimit caps the lines of an action result; 0 disables.
	ObservationLineLimit int `json:"observation_line_limit,omitempty" yaml:"observation_line_limit"`

	// LoopDetectionWindow is the number of recent actions compared; negative disables.
	LoopDetectionWindow int `json:"loop_detection_window" yaml:"loop_detection_window"`

	EventBuffer int `json:"event_buffer,omitempty" yaml:"event_buffer"`
}

// DefaultConfig returns the configuration used when NewController receives nil.
func DefaultConfig() Config {
	return Config{
		Objective:           DefaultObjective,
		Instruction:         DefaultInstruction,
		Constraints:         append([]string(nil), DefaultConstraints...),
		Examples:            DefaultExamples(),
		MaxRetries:          DefaultMaxRetries,
		MaxIterations:       DefaultMaxIterations,
		ObservationLimit:    DefaultObservationLimit,
		LoopDetectionWindow: DefaultLoopDetectionWindow,
		EventBuffer:         DefaultEventBuffer,
	}
}

// Merge overlays the non-zero fields of override onto c.
func (c Config) Merge(override *Config) Config {
	if override == nil {
		return c
	}
	if override.Objective != "" {
		c.Objective = override.Objective
	}
	if override.Instruction != "" {
		c.Instruction = override.Instruction
	}
	if override.Constraints != nil {
		c.Constraints = append([]string(nil), override.Constraints...)
	}
	if override.Examples != nil {
		c.Examples = append([]activity.Activity(nil), override.Examples...)
	}
	if override.MaxRetries > 0 {
		c.MaxRetries = override.MaxRetries
	}
	if override.MaxIterations > 0 {
		c.MaxIterations = override.MaxIterations
	}
	if override.Model != "" {
		c.Model = override.Model
	}
	if override.Provider != "" {
		c.Provider = override.Provider
	}
	if override.MaxTokens > 0 {
		c.MaxTokens = override.MaxTokens
	}
	if override.Temperature != nil {
		t := *override.Temperature
		c.Temperature = &t
	}
	if override.ObservationLimit != 0 {
		c.ObservationLimit = override.ObservationLimit
	}
	if override.ObservationLineLimit != 0 {
		c.ObservationLineLimit = override.ObservationLineLimit
	}
	if override.LoopDetectionWindow != 0 {
		c.LoopDetectionWindow = override.LoopDetectionWindow
	}
	if override.EventBuffer > 0 {
		c.EventBuffer = override.EventBuffer
	}
	return c
}
