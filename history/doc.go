// Package history holds the transformers applied to an agent's transcript
// before every prompt render.
//
// Transformers are stateless: they may carry configuration but never
// accumulate state across calls. A Pipeline applies them left to right,
// each one consuming the previous output:
//
//	p := history.NewPipeline(
//	    history.ErrorPruner{},
//	    history.LengthWindow{N: 30},
//	    history.StrictSequence{},
//	)
//	windowed, err := p.Transform(ctx, acts)
//
// StrictSequence and LenientSequence double as the policy the agent uses to
// accept a freshly decoded batch of activities.
package history
