// Package agent drives a language model through reason/act/observe turns.
//
// A Controller owns a history of activities that starts and ends with an
// Observation. Each turn renders a prompt, asks the model to continue with
// a Thought and an Action, dispatches the Action and appends the resulting
// Observation. Malformed completions, grammar violations, missing actions,
// truncated completions and failed actions are retried within the turn;
// the failed attempts are shown to the model on the next attempt but never
// committed. Invoke returns once a terminal action succeeds.
//
//	registry, _ := agent.NewRegistry(
//	    agent.NewAction("add", "Add two numbers.", add),
//	    agent.NewAction("finish", "Give the final answer.", finish, agent.Terminal()),
//	)
//	ctrl, _ := agent.NewController(client, registry,
//	    []activity.Activity{activity.NewObservation("What is 2 + 3?")}, nil,
//	    agent.WithLogger(logger))
//	answer, err := ctrl.Invoke(ctx)
//
// Only three failures escape Invoke: *RetryExhaustedError carries every
// cause recorded during the failed turn, *IterationExhaustedError reports
// that no terminal action ran, and *CancelledError reports a context that
// was done at a turn boundary.
package agent
