package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/martinemde/reactor/activity"
	"github.com/martinemde/reactor/agent"
	"github.com/martinemde/reactor/history"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, agent.DefaultMaxRetries, cfg.Agent.MaxRetries)
	assert.Equal(t, "strict", cfg.History.Policy)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("REACTOR_TEST_KEY", "secret123")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
log_level: debug
llm:
  provider: openai
  model: gpt-4o-mini
  api_key: ${REACTOR_TEST_KEY}
  rate_limit:
    requests_per_second: 2
    burst: 1
  retry:
    base_delay: 250ms
agent:
  max_retries: 3
  temperature: 0.2
  constraints:
    - Only do arithmetic.
history:
  codec: line
  window: 12
  prune_errors: true
transcript:
  path: /tmp/reactor.db
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "secret123", cfg.LLM.APIKey)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2.0, cfg.LLM.RateLimit.RequestsPerSecond)
	assert.Equal(t, 3, cfg.Agent.MaxRetries)
	assert.Equal(t, agent.DefaultMaxIterations, cfg.Agent.MaxIterations, "unset fields keep defaults")
	require.NotNil(t, cfg.Agent.Temperature)
	assert.Equal(t, 0.2, *cfg.Agent.Temperature)
	assert.Equal(t, []string{"Only do arithmetic."}, cfg.Agent.Constraints)
	assert.Equal(t, "line", cfg.History.Codec)
	assert.Equal(t, "/tmp/reactor.db", cfg.Transcript.Path)
	assert.Equal(t, 2, cfg.LLM.Retry.MaxRetries, "retry defaults survive a partial llm section")
	assert.Equal(t, 250*time.Millisecond, cfg.LLM.Retry.BaseDelay)

	ac := cfg.AgentConfig()
	assert.Equal(t, "openai", ac.Provider)
	assert.Equal(t, "gpt-4o-mini", ac.Model)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("agent: [unterminated"))
	assert.ErrorContains(t, err, "parse config")
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "loud"
	cfg.LLM.Provider = ""
	cfg.History.Codec = "xml"
	cfg.History.Window = -1
	hot := 3.0
	cfg.Agent.Temperature = &hot

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		`unknown log level "loud"`,
		"llm.provider is required",
		`history.codec must be tag or line, got "xml"`,
		"history.window must not be negative",
		"agent.temperature must be between 0 and 2",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestHistoryComponents(t *testing.T) {
	h := HistoryConfig{}
	assert.IsType(t, &activity.TagCodec{}, h.NewCodec())
	assert.IsType(t, history.StrictSequence{}, h.SequencePolicy())
	assert.Empty(t, h.Transformers("", 0, nil))

	h = HistoryConfig{Codec: "line", Policy: "lenient", PruneErrors: true, Window: 8, TokenBudget: 500, Tokenizer: "estimate"}
	assert.IsType(t, &activity.LineCodec{}, h.NewCodec())
	assert.IsType(t, history.LenientSequence{}, h.SequencePolicy())

	stages := h.Transformers("gpt-4o", 0, h.NewCodec())
	require.Len(t, stages, 3)
	assert.IsType(t, history.ErrorPruner{}, stages[0])
	assert.Equal(t, history.LengthWindow{N: 8}, stages[1])
	budget, ok := stages[2].(history.TokenBudget)
	require.True(t, ok)
	assert.Equal(t, 500, budget.Limit)
	assert.IsType(t, history.EstimateCounter{}, budget.Counter)

	derived := HistoryConfig{TokenBudget: -1, Tokenizer: "estimate"}
	stages = derived.Transformers("gpt-4o-mini", 1000, nil)
	require.Len(t, stages, 1)
	assert.Equal(t, 127000, stages[0].(history.TokenBudget).Limit)
	assert.Empty(t, derived.Transformers("unknown-model", 1000, nil))
}

func TestRetryPolicy(t *testing.T) {
	cfg := Default()
	cfg.LLM.Retry.MaxRetries = 4
	p := cfg.RetryPolicy()
	assert.Equal(t, 4, p.MaxRetries)
	assert.Equal(t, cfg.LLM.Retry.BaseDelay, p.BaseDelay)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
		err  bool
	}{
		{"", zapcore.InfoLevel, false},
		{"DEBUG", zapcore.DebugLevel, false},
		{" warning ", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"trace", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, err := NewLogger("warn", format)
		require.NoError(t, err)
		assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
	}
	_, err := NewLogger("nope", "json")
	assert.Error(t, err)
}
