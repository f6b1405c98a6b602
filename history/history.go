package history

import (
	"context"
	"fmt"
	"slices"

	"github.com/martinemde/reactor/activity"
)

// Transformer maps a full activity sequence onto a new one. Implementations
// must not modify the slice they are given.
type Transformer interface {
	Transform(ctx context.Context, acts []activity.Activity) ([]activity.Activity, error)
}

// Func adapts an ordinary function to the Transformer interface.
type Func func(ctx context.Context, acts []activity.Activity) ([]activity.Activity, error)

func (f Func) Transform(ctx context.Context, acts []activity.Activity) ([]activity.Activity, error) {
	return f(ctx, acts)
}

// Pipeline applies an ordered list of transformers.
type Pipeline struct {
	stages []Transformer
}

// NewPipeline creates a pipeline running stages in the given order. Nil
// stages are skipped.
func NewPipeline(stages ...Transformer) *Pipeline {
	p := &Pipeline{}
	for _, s := range stages {
		if s != nil {
			p.stages = append(p.stages, s)
		}
	}
	return p
}

// Len returns the number of stages.
func (p *Pipeline) Len() int {
	if p == nil {
		return 0
	}
	return len(p.stages)
}

// Transform runs every stage over a copy of acts. The context is checked
// before each stage.
func (p *Pipeline) Transform(ctx context.Context, acts []activity.Activity) ([]activity.Activity, error) {
	out := slices.Clone(acts)
	if p == nil {
		return out, nil
	}
	for i, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := stage.Transform(ctx, out)
		if err != nil {
			return nil, fmt.Errorf("history stage %d (%T): %w", i, stage, err)
		}
		out = next
	}
	return out, nil
}
