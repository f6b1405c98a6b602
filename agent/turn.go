package agent

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/martinemde/reactor/activity"
	"github.com/martinemde/reactor/llm"
)

type turnOutcome struct {
	result   string
	terminal bool
}

// turnState is the per-turn buffer of failed attempts. It never reaches
// the committed history.
type turnState struct {
	number int
	local  []activity.Activity
	causes []error
}

// pending returns the trailing Thought of a completion that stopped before
// its action.
func (t *turnState) pending() (activity.Activity, bool) {
	if n := len(t.local); n > 0 && t.local[n-1].Kind() == activity.KindThought {
		return t.local[n-1], true
	}
	return activity.Activity{}, false
}

// runTurn requests completions until one yields an action that executes,
// or the retry budget runs out. LLM calls and actions run on a context
// that ignores cancellation so an in-flight attempt always completes.
func (c *Controller) runTurn(ctx context.Context, number int) (turnOutcome, error) {
	ctx, span := c.tracer.Start(ctx, "agent.turn", trace.WithAttributes(attribute.Int("agent.turn", number)))
	defer span.End()
	ctx = context.WithoutCancel(ctx)

	start := time.Now()
	c.emitter.Emit(EventTurnStart, number, nil)

	t := &turnState{number: number}
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		out, err := c.attempt(ctx, t, attempt)
		if err == nil {
			span.SetAttributes(attribute.Int("agent.attempts", attempt), attribute.Bool("agent.terminal", out.terminal))
			c.metrics.TurnFinished("succeeded", attempt, time.Since(start))
			c.emitter.Emit(EventTurnEnd, number, map[string]any{
				"outcome":  "succeeded",
				"attempts": attempt,
				"terminal": out.terminal,
			})
			return out, nil
		}

		t.causes = append(t.causes, err)
		kind := failureKind(err)
		c.metrics.AttemptFailed(kind)
		c.logger.Warn("attempt failed",
			zap.Int("turn", number),
			zap.Int("attempt", attempt),
			zap.String("kind", kind),
			zap.Error(err))
		c.emitter.Emit(EventAttemptFailed, number, map[string]any{
			"attempt": attempt,
			"kind":    kind,
			"error":   err.Error(),
		})
		if stopsTurn(err) {
			break
		}
	}

	exhausted := &RetryExhaustedError{Turn: number, Causes: slices.Clone(t.causes)}
	if c.recorder != nil {
		if err := c.recorder.Fail(ctx, c.id, number, t.local, t.causes); err != nil {
			c.logger.Warn("record failed turn", zap.Int("turn", number), zap.Error(err))
		}
	}
	c.metrics.TurnFinished("failed", len(t.causes), time.Since(start))
	c.emitter.Emit(EventTurnEnd, number, map[string]any{
		"outcome":  "failed",
		"attempts": len(t.causes),
	})
	span.RecordError(exhausted)
	span.SetStatus(codes.Error, "turn failed")
	return turnOutcome{}, exhausted
}

// stopsTurn reports failures that another attempt cannot fix.
func stopsTurn(err error) bool {
	var complErr *CompletionError
	if errors.As(err, &complErr) {
		return !complErr.Retryable
	}
	var pipelineErr *PipelineError
	return errors.As(err, &pipelineErr)
}

func (c *Controller) attempt(ctx context.Context, t *turnState, attempt int) (turnOutcome, error) {
	view, err := c.view(ctx, t.local)
	if err != nil {
		return turnOutcome{}, &PipelineError{TurnError{Message: "history pipeline failed", Cause: err}}
	}
	prompt, err := c.prompt.Render(ctx, view, c.currentNotices())
	if err != nil {
		return turnOutcome{}, &PipelineError{TurnError{Message: "render prompt", Cause: err}}
	}

	resp, err := c.complete(ctx, prompt, t.number, attempt)
	if err != nil {
		return turnOutcome{}, newCompletionError(err, llm.IsRetryable(err))
	}
	if resp.FinishReason.Truncated() {
		reason := resp.FinishReason.Raw
		if reason == "" {
			reason = resp.FinishReason.Reason
		}
		return turnOutcome{}, newLengthError(reason)
	}

	decoded, err := c.codec.Decode(resp.Text)
	if err != nil {
		return turnOutcome{}, err
	}
	decoded = activity.LeadingTurn(decoded)

	last := activity.KindObservation
	if _, ok := t.pending(); ok {
		if decoded[0].Kind() == activity.KindThought {
			// A fresh thought replaces the one still waiting for its action.
			t.local = t.local[:len(t.local)-1]
		} else {
			last = activity.KindThought
		}
	}

	batch, err := c.policy.Continue(last, decoded)
	if err != nil {
		return turnOutcome{}, err
	}
	if len(batch) == 0 {
		return turnOutcome{}, &activity.DecodeError{Message: "no activity continues the history", Fragment: resp.Text}
	}

	final := batch[len(batch)-1]
	switch final.Kind() {
	case activity.KindThought:
		t.local = append(t.local, final)
		return turnOutcome{}, newMissingActionError(final)
	case activity.KindAction:
	default:
		return turnOutcome{}, &activity.SequenceError{Index: len(batch) - 1, Prev: last, Got: final.Kind()}
	}

	name := final.Name()
	text, execErr := c.execute(ctx, t.number, name, final.Input())
	if execErr != nil {
		t.local = append(t.local, batch...)
		t.local = append(t.local, activity.NewObservation(FormatError(name, execErr)))
		return turnOutcome{}, newExecutionError(name, execErr)
	}

	var steps []activity.Activity
	if thought, ok := t.pending(); ok {
		steps = append(steps, thought)
	}
	steps = append(steps, batch...)
	steps = append(steps, activity.NewObservation(text))
	c.commit(ctx, t.number, steps)

	return turnOutcome{
		result:   text,
		terminal: c.terminator != nil && c.terminator.IsTerminal(name),
	}, nil
}

// view is the history shown to the model: the committed history after the
// transformer pipeline, followed by this turn's failed attempts. The policy
// checks the combination.
func (c *Controller) view(ctx context.Context, local []activity.Activity) ([]activity.Activity, error) {
	committed := c.History()
	view, err := c.pipeline.Transform(ctx, committed)
	if err != nil {
		return nil, err
	}
	if len(view) == 0 {
		view = committed[len(committed)-1:]
	}
	view = append(slices.Clone(view), local...)
	return c.policy.Transform(ctx, view)
}

func (c *Controller) complete(ctx context.Context, prompt string, turn, attempt int) (*llm.Response, error) {
	ctx, span := c.tracer.Start(ctx, "agent.completion", trace.WithAttributes(attribute.Int("agent.attempt", attempt)))
	defer span.End()

	req := llm.Request{
		Model:         c.cfg.Model,
		Provider:      c.cfg.Provider,
		Prompt:        prompt,
		StopSequences: []string{c.codec.StopSequence()},
		Temperature:   c.cfg.Temperature,
		Metadata: map[string]string{
			"controller_id": c.id,
			"turn":          strconv.Itoa(turn),
			"attempt":       strconv.Itoa(attempt),
		},
	}
	if c.cfg.MaxTokens > 0 {
		maxTokens := c.cfg.MaxTokens
		req.MaxTokens = &maxTokens
	}

	start := time.Now()
	resp, err := c.llm.Complete(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("llm.provider", resp.Provider),
		attribute.String("llm.model", resp.Model),
		attribute.String("llm.finish_reason", resp.FinishReason.Reason),
		attribute.Int("llm.usage.input_tokens", resp.Usage.InputTokens),
		attribute.Int("llm.usage.output_tokens", resp.Usage.OutputTokens),
	)
	c.metrics.CompletionFinished(resp.Provider, resp.Usage, time.Since(start))
	return resp, nil
}

// execute dispatches an action and renders its result as observation text.
func (c *Controller) execute(ctx context.Context, turn int, name, body string) (string, error) {
	ctx, span := c.tracer.Start(ctx, "agent.action", trace.WithAttributes(attribute.String("agent.action", name)))
	defer span.End()

	start := time.Now()
	text, err := c.dispatch(ctx, name, body)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "action failed")
		c.metrics.ActionExecuted(name, "error", elapsed)
		return "", err
	}
	c.metrics.ActionExecuted(name, "ok", elapsed)
	c.logger.Debug("action executed", zap.Int("turn", turn), zap.String("action", name), zap.Duration("elapsed", elapsed))
	return text, nil
}

func (c *Controller) dispatch(ctx context.Context, name, body string) (string, error) {
	if name == "" {
		return "", errors.New("action has no kind attribute")
	}
	result, err := c.executor.Execute(ctx, name, body)
	if err != nil {
		return "", err
	}
	text, err := FormatResult(result)
	if err != nil {
		return "", err
	}
	text = TruncateObservation(text, c.cfg.ObservationLimit)
	return TruncateLines(text, c.cfg.ObservationLineLimit), nil
}
