package agent

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/martinemde/reactor/activity"
	"github.com/martinemde/reactor/history"
	"github.com/martinemde/reactor/llm"
)

const tracerName = "github.com/martinemde/reactor/agent"

// Completer is the LLM boundary. *llm.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Recorder persists committed turns and audits failed ones.
type Recorder interface {
	Commit(ctx context.Context, sessionID string, turn int, acts []activity.Activity) error
	Fail(ctx context.Context, sessionID string, turn int, attempts []activity.Activity, causes []error) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTransformers appends history transformers applied before every prompt.
func WithTransformers(transformers ...history.Transformer) Option {
	return func(c *Controller) { c.transformers = append(c.transformers, transformers...) }
}

// WithCodec sets the wire format. The default is activity.NewTagCodec().
func WithCodec(codec activity.Codec) Option {
	return func(c *Controller) {
		if codec != nil {
			c.codec = codec
		}
	}
}

// WithSequencePolicy sets how decoded batches are checked against the
// grammar. The default is history.StrictSequence.
func WithSequencePolicy(policy history.SequencePolicy) Option {
	return func(c *Controller) {
		if policy != nil {
			c.policy = policy
		}
	}
}

// WithRecorder persists turns as they are committed or fail.
func WithRecorder(recorder Recorder) Option {
	return func(c *Controller) { c.recorder = recorder }
}

// WithMetrics sets the metrics sink.
func WithMetrics(metrics Metrics) Option {
	return func(c *Controller) {
		if metrics != nil {
			c.metrics = metrics
		}
	}
}

// WithTracer sets the tracer. The default comes from the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Controller) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithCatalogue overrides the action catalogue rendered into the prompt.
func WithCatalogue(catalogue Describer) Option {
	return func(c *Controller) { c.catalogue = catalogue }
}

// WithTerminator overrides which actions end an invocation.
func WithTerminator(terminator Terminator) Option {
	return func(c *Controller) { c.terminator = terminator }
}

// WithSessionID sets the controller ID, used to resume a recorded session.
func WithSessionID(id string) Option {
	return func(c *Controller) {
		if id != "" {
			c.id = id
		}
	}
}

// WithTurnOffset continues turn numbering after n, so a resumed session
// does not reuse recorded turn numbers.
func WithTurnOffset(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.turns = n
		}
	}
}

// Controller owns a history and drives the model through turns until a
// terminal action runs.
type Controller struct {
	id           string
	cfg          Config
	llm          Completer
	executor     Executor
	terminator   Terminator
	catalogue    Describer
	codec        activity.Codec
	transformers []history.Transformer
	pipeline     *history.Pipeline
	policy       history.SequencePolicy
	prompt       *PromptAssembler
	recorder     Recorder
	metrics      Metrics
	tracer       trace.Tracer
	logger       *zap.Logger
	emitter      *EventEmitter

	mu      sync.Mutex
	history []activity.Activity
	notices []string
	turns   int
	running bool
}

// NewController creates a controller over an initial history. If executor
// also implements Terminator or Describer it is used for those roles unless
// an option overrides them. A nil cfg uses DefaultConfig.
func NewController(client Completer, executor Executor, initial []activity.Activity, cfg *Config, opts ...Option) (*Controller, error) {
	if client == nil {
		return nil, errors.New("agent: completer is required")
	}
	if executor == nil {
		return nil, errors.New("agent: executor is required")
	}

	c := &Controller{
		id:       uuid.New().String(),
		cfg:      DefaultConfig().Merge(cfg),
		llm:      client,
		executor: executor,
		codec:    activity.NewTagCodec(),
		policy:   history.StrictSequence{},
		metrics:  nopMetrics{},
		tracer:   otel.Tracer(tracerName),
		logger:   zap.NewNop(),
		history:  slices.Clone(initial),
	}
	if t, ok := executor.(Terminator); ok {
		c.terminator = t
	}
	if d, ok := executor.(Describer); ok {
		c.catalogue = d
	}
	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With(zap.String("component", "agent"), zap.String("controller_id", c.id))
	c.pipeline = history.NewPipeline(c.transformers...)
	c.prompt = &PromptAssembler{
		Objective:   c.cfg.Objective,
		Instruction: c.cfg.Instruction,
		Constraints: c.cfg.Constraints,
		Examples:    c.cfg.Examples,
		Catalogue:   c.catalogue,
		Codec:       c.codec,
	}
	c.emitter = NewEventEmitter(c.id, c.cfg.EventBuffer)
	return c, nil
}

// ID returns the controller identifier.
func (c *Controller) ID() string { return c.id }

// Config returns the effective configuration.
func (c *Controller) Config() Config { return c.cfg }

// History returns a copy of the committed history.
func (c *Controller) History() []activity.Activity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.history)
}

// Events returns the event channel for the host application.
func (c *Controller) Events() <-chan Event {
	return c.emitter.Events()
}

// Close closes the event channel.
func (c *Controller) Close() {
	c.emitter.Close()
}

// Invoke runs turns until a terminal action succeeds and returns that
// action's observation. Failures are *RetryExhaustedError,
// *IterationExhaustedError or *CancelledError; precondition failures are
// reported before any turn runs.
func (c *Controller) Invoke(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return "", ErrBusy
	}
	if err := checkHistory(c.history); err != nil {
		c.mu.Unlock()
		return "", err
	}
	c.running = true
	size := len(c.history)
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	ctx, span := c.tracer.Start(ctx, "agent.invoke", trace.WithAttributes(
		attribute.String("agent.controller_id", c.id),
		attribute.Int("agent.history_length", size),
		attribute.Int("agent.max_iterations", c.cfg.MaxIterations),
	))
	defer span.End()

	start := time.Now()
	c.logger.Info("invoke started", zap.Int("history_length", size), zap.Int("max_iterations", c.cfg.MaxIterations))
	c.emitter.Emit(EventInvokeStart, c.currentTurn(), map[string]any{"history_length": size})

	result, err := c.run(ctx)

	outcome := invokeOutcome(err)
	c.metrics.InvokeFinished(outcome, time.Since(start))
	c.emitter.Emit(EventInvokeEnd, c.currentTurn(), map[string]any{"outcome": outcome})
	span.SetAttributes(attribute.String("agent.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		c.logger.Warn("invoke failed", zap.String("outcome", outcome), zap.Error(err))
		return "", err
	}
	c.logger.Info("invoke finished", zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

func (c *Controller) run(ctx context.Context) (string, error) {
	for i := 0; i < c.cfg.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return "", &CancelledError{Turn: c.currentTurn() + 1, Cause: err}
		}
		out, err := c.runTurn(ctx, c.nextTurn())
		if err != nil {
			return "", err
		}
		if out.terminal {
			return out.result, nil
		}
	}
	return "", &IterationExhaustedError{Iterations: c.cfg.MaxIterations}
}

func (c *Controller) nextTurn() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns++
	return c.turns
}

func (c *Controller) currentTurn() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turns
}

func checkHistory(h []activity.Activity) error {
	if len(h) == 0 {
		return ErrEmptyHistory
	}
	if err := activity.ValidateSequence(h); err != nil {
		return fmt.Errorf("agent: invalid history: %w", err)
	}
	if h[0].Kind() != activity.KindObservation || h[len(h)-1].Kind() != activity.KindObservation {
		return ErrHistoryNotObservation
	}
	return nil
}

// commit appends a successful turn to history.
func (c *Controller) commit(ctx context.Context, turn int, acts []activity.Activity) {
	c.mu.Lock()
	c.history = append(c.history, acts...)
	snapshot := slices.Clone(c.history)
	c.mu.Unlock()

	for _, a := range acts {
		c.logger.Debug("activity appended",
			zap.Int("turn", turn),
			zap.String("kind", string(a.Kind())),
			zap.String("action", a.Name()),
			zap.Int("size", len(a.Input())))
		c.emitter.Emit(EventActivityAppended, turn, map[string]any{
			"kind":  string(a.Kind()),
			"name":  a.Name(),
			"input": a.Input(),
		})
	}

	if c.recorder != nil {
		if err := c.recorder.Commit(ctx, c.id, turn, acts); err != nil {
			c.logger.Warn("record turn failed", zap.Int("turn", turn), zap.Error(err))
		}
	}

	c.checkLoop(turn, snapshot)
}

func (c *Controller) checkLoop(turn int, snapshot []activity.Activity) {
	window := c.cfg.LoopDetectionWindow
	var notices []string
	if window > 0 && DetectLoop(snapshot, window) {
		notice := loopNotice(window)
		notices = []string{notice}
		c.logger.Warn("loop detected", zap.Int("turn", turn), zap.Int("window", window))
		c.emitter.Emit(EventLoopDetected, turn, map[string]any{"message": notice})
		c.metrics.LoopDetected()
	}
	c.mu.Lock()
	c.notices = notices
	c.mu.Unlock()
}

func (c *Controller) currentNotices() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.notices)
}
