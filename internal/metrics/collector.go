// Package metrics exports controller measurements to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/martinemde/reactor/llm"
)

// Collector implements agent.Metrics.
type Collector struct {
	invocationsTotal   *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec

	turnsTotal    *prometheus.CounterVec
	turnDuration  *prometheus.HistogramVec
	turnAttempts  *prometheus.HistogramVec
	attemptErrors *prometheus.CounterVec

	actionsTotal   *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec

	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	llmTokensUsed      *prometheus.CounterVec

	loopsDetected prometheus.Counter

	logger *zap.Logger
}

// NewCollector registers the collector's metrics with reg. A nil reg uses
// the default registerer.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)
	c := &Collector{logger: logger.With(zap.String("component", "metrics"))}

	c.invocationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Total number of agent invocations by outcome",
		},
		[]string{"outcome"},
	)
	c.invocationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invocation_duration_seconds",
			Help:      "Agent invocation duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"outcome"},
	)

	c.turnsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of turns by outcome",
		},
		[]string{"outcome"},
	)
	c.turnDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Turn duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"outcome"},
	)
	c.turnAttempts = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_attempts",
			Help:      "LLM calls issued per turn",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		},
		[]string{"outcome"},
	)
	c.attemptErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempt_errors_total",
			Help:      "Failed turn attempts by cause",
		},
		[]string{"kind"},
	)

	c.actionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Action dispatches by action and outcome",
		},
		[]string{"action", "outcome"},
	)
	c.actionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Action dispatch duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	c.llmRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Completed LLM requests",
		},
		[]string{"provider"},
	)
	c.llmRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)
	c.llmTokensUsed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Tokens consumed by direction",
		},
		[]string{"provider", "type"},
	)

	c.loopsDetected = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "loops_detected_total",
		Help:      "Repeating action patterns detected",
	})

	c.logger.Debug("metrics collector registered", zap.String("namespace", namespace))
	return c
}

func (c *Collector) InvokeFinished(outcome string, d time.Duration) {
	c.invocationsTotal.WithLabelValues(outcome).Inc()
	c.invocationDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (c *Collector) TurnFinished(outcome string, attempts int, d time.Duration) {
	c.turnsTotal.WithLabelValues(outcome).Inc()
	c.turnDuration.WithLabelValues(outcome).Observe(d.Seconds())
	c.turnAttempts.WithLabelValues(outcome).Observe(float64(attempts))
}

func (c *Collector) AttemptFailed(kind string) {
	c.attemptErrors.WithLabelValues(kind).Inc()
}

func (c *Collector) ActionExecuted(name, outcome string, d time.Duration) {
	c.actionsTotal.WithLabelValues(name, outcome).Inc()
	c.actionDuration.WithLabelValues(name).Observe(d.Seconds())
}

func (c *Collector) CompletionFinished(provider string, usage llm.Usage, d time.Duration) {
	c.llmRequestsTotal.WithLabelValues(provider).Inc()
	c.llmRequestDuration.WithLabelValues(provider).Observe(d.Seconds())
	if usage.InputTokens > 0 {
		c.llmTokensUsed.WithLabelValues(provider, "input").Add(float64(usage.InputTokens))
	}
	if usage.OutputTokens > 0 {
		c.llmTokensUsed.WithLabelValues(provider, "output").Add(float64(usage.OutputTokens))
	}
}

func (c *Collector) LoopDetected() {
	c.loopsDetected.Inc()
}
