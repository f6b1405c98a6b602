// Package config loads the reactor configuration file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/martinemde/reactor/activity"
	"github.com/martinemde/reactor/agent"
	"github.com/martinemde/reactor/history"
	"github.com/martinemde/reactor/llm"
)

// Config is the top-level configuration file.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // json or console

	LLM        LLMConfig        `yaml:"llm"`
	Agent      agent.Config     `yaml:"agent"`
	History    HistoryConfig    `yaml:"history"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// LLMConfig selects the provider and shapes the transport.
type LLMConfig struct {
	Provider  string          `yaml:"provider"` // anthropic, openai, ollama, ... or "scripted"
	Model     string          `yaml:"model"`
	APIKey    string          `yaml:"api_key"`
	Retry     RetryConfig     `yaml:"retry"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RetryConfig is the transport retry policy. MaxRetries 0 disables it.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"` // e.g. 500ms
	MaxDelay   time.Duration `yaml:"max_delay"`
	Multiplier float64       `yaml:"multiplier"`
	Jitter     bool          `yaml:"jitter"`
}

// RateLimitConfig is a token bucket. RequestsPerSecond 0 disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// HistoryConfig builds the history pipeline.
type HistoryConfig struct {
	Codec       string `yaml:"codec"`  // tag or line
	Policy      string `yaml:"policy"` // strict or lenient
	PruneErrors bool   `yaml:"prune_errors"`
	Window      int    `yaml:"window"`
	TokenBudget int    `yaml:"token_budget"` // -1 derives the budget from the model catalog
	Tokenizer   string `yaml:"tokenizer"`    // tiktoken encoding, or "estimate"
}

// TranscriptConfig points at the SQLite transcript. An empty path disables it.
type TranscriptConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig exposes Prometheus metrics. An empty addr disables the endpoint.
type MetricsConfig struct {
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
}

// Default returns a configuration that runs without any external service.
func Default() *Config {
	retry := llm.DefaultRetryPolicy()
	return &Config{
		LogLevel:  "info",
		LogFormat: "console",
		LLM: LLMConfig{
			Provider: "anthropic",
			Retry: RetryConfig{
				MaxRetries: retry.MaxRetries,
				BaseDelay:  retry.BaseDelay,
				MaxDelay:   retry.MaxDelay,
				Multiplier: retry.Multiplier,
				Jitter:     retry.Jitter,
			},
		},
		Agent: agent.DefaultConfig(),
		History: HistoryConfig{
			Codec:  "tag",
			Policy: "strict",
		},
		Metrics: MetricsConfig{Namespace: "reactor"},
	}
}

// Load reads a YAML file over Default. ${VAR} references are expanded from
// the environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML over Default.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []string

	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err.Error())
	}
	switch c.LogFormat {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("log_format must be json or console, got %q", c.LogFormat))
	}

	if c.LLM.Provider == "" {
		errs = append(errs, "llm.provider is required")
	}
	if c.LLM.Retry.MaxRetries < 0 {
		errs = append(errs, "llm.retry.max_retries must not be negative")
	}
	if c.LLM.Retry.MaxRetries > 0 && c.LLM.Retry.BaseDelay <= 0 {
		errs = append(errs, "llm.retry.base_delay must be positive")
	}
	if c.LLM.RateLimit.RequestsPerSecond < 0 {
		errs = append(errs, "llm.rate_limit.requests_per_second must not be negative")
	}

	if c.Agent.MaxRetries < 0 {
		errs = append(errs, "agent.max_retries must not be negative")
	}
	if c.Agent.MaxIterations < 0 {
		errs = append(errs, "agent.max_iterations must not be negative")
	}
	if t := c.Agent.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, "agent.temperature must be between 0 and 2")
	}

	switch c.History.Codec {
	case "", "tag", "line":
	default:
		errs = append(errs, fmt.Sprintf("history.codec must be tag or line, got %q", c.History.Codec))
	}
	switch c.History.Policy {
	case "", "strict", "lenient":
	default:
		errs = append(errs, fmt.Sprintf("history.policy must be strict or lenient, got %q", c.History.Policy))
	}
	if c.History.Window < 0 {
		errs = append(errs, "history.window must not be negative")
	}
	if c.History.TokenBudget < -1 {
		errs = append(errs, "history.token_budget must be -1, 0 or positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// AgentConfig returns the controller configuration, taking the model and
// provider from the llm section when the agent section leaves them empty.
func (c *Config) AgentConfig() *agent.Config {
	cfg := c.Agent
	if cfg.Provider == "" {
		cfg.Provider = c.LLM.Provider
	}
	if cfg.Model == "" {
		cfg.Model = c.LLM.Model
	}
	return &cfg
}

// RetryPolicy converts the retry section.
func (c *Config) RetryPolicy() llm.RetryPolicy {
	r := c.LLM.Retry
	return llm.RetryPolicy{
		MaxRetries: r.MaxRetries,
		BaseDelay:  r.BaseDelay,
		MaxDelay:   r.MaxDelay,
		Multiplier: r.Multiplier,
		Jitter:     r.Jitter,
	}
}

// NewCodec returns the configured activity codec.
func (h HistoryConfig) NewCodec() activity.Codec {
	if h.Codec == "line" {
		return activity.NewLineCodec()
	}
	return activity.NewTagCodec()
}

// SequencePolicy returns the configured batch policy.
func (h HistoryConfig) SequencePolicy() history.SequencePolicy {
	if h.Policy == "lenient" {
		return history.LenientSequence{}
	}
	return history.StrictSequence{}
}

// Transformers returns the configured pipeline stages in application order:
// error pruning, then the length window, then the token budget. A derived
// budget for a model missing from the catalog is skipped.
func (h HistoryConfig) Transformers(model string, maxTokens int, codec activity.Codec) []history.Transformer {
	var stages []history.Transformer
	if h.PruneErrors {
		stages = append(stages, history.ErrorPruner{})
	}
	if h.Window > 0 {
		stages = append(stages, history.LengthWindow{N: h.Window})
	}
	limit := h.TokenBudget
	if limit < 0 {
		limit = llm.PromptBudget(model, maxTokens)
	}
	if limit > 0 {
		stages = append(stages, history.TokenBudget{
			Counter: h.counter(model),
			Limit:   limit,
			Codec:   codec,
		})
	}
	return stages
}

func (h HistoryConfig) counter(model string) history.Counter {
	switch h.Tokenizer {
	case "estimate":
		return history.EstimateCounter{}
	case "":
		return history.NewTiktokenCounterForModel(model)
	default:
		return history.NewTiktokenCounter(h.Tokenizer)
	}
}
