package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/martinemde/reactor/agent"
	"github.com/martinemde/reactor/llm"
)

var _ agent.Metrics = (*Collector)(nil)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector("reactor", reg, zap.NewNop()), reg
}

func TestCollectorCounts(t *testing.T) {
	c, _ := newTestCollector(t)

	c.InvokeFinished("terminal", time.Second)
	c.InvokeFinished("terminal", time.Second)
	c.InvokeFinished("cancelled", time.Millisecond)
	c.TurnFinished("succeeded", 2, time.Second)
	c.AttemptFailed("decode")
	c.ActionExecuted("add", "ok", time.Millisecond)
	c.ActionExecuted("divide", "error", time.Millisecond)
	c.LoopDetected()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.invocationsTotal.WithLabelValues("terminal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.invocationsTotal.WithLabelValues("cancelled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.turnsTotal.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.attemptErrors.WithLabelValues("decode")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.actionsTotal.WithLabelValues("divide", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.loopsDetected))
}

func TestCollectorTokens(t *testing.T) {
	c, _ := newTestCollector(t)

	c.CompletionFinished("anthropic", llm.Usage{InputTokens: 100, OutputTokens: 20, TotalTokens: 120}, time.Second)
	c.CompletionFinished("anthropic", llm.Usage{InputTokens: 50}, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.llmRequestsTotal.WithLabelValues("anthropic")))
	assert.Equal(t, 150.0, testutil.ToFloat64(c.llmTokensUsed.WithLabelValues("anthropic", "input")))
	assert.Equal(t, 20.0, testutil.ToFloat64(c.llmTokensUsed.WithLabelValues("anthropic", "output")))
}

func TestCollectorExposition(t *testing.T) {
	c, reg := newTestCollector(t)
	c.AttemptFailed("length")

	expected := `
# HELP reactor_attempt_errors_total Failed turn attempts by cause
# TYPE reactor_attempt_errors_total counter
reactor_attempt_errors_total{kind="length"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "reactor_attempt_errors_total"))
}

func TestCollectorsUseSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		newTestCollector(t)
		newTestCollector(t)
	})
}
