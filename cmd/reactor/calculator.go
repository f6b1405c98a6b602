package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/martinemde/reactor/activity"
	"github.com/martinemde/reactor/agent"
)

const calculatorObjective = `1. Help the user with math.
2. Use actions for calculations.
3. Order of Operations: PEMDAS. Evaluate every expression in that order so the result is never ambiguous.
4. Tell the user about every action you take.
5. Finish with the latest result once the user has what they asked for.`

type mathParams struct {
	Left  float64 `json:"left" jsonschema:"description=Left operand"`
	Right float64 `json:"right" jsonschema:"description=Right operand"`
}

type sayParams struct {
	Message string `json:"message" validate:"required" jsonschema:"description=What to tell the user"`
}

type finishParams struct {
	Answer string `json:"answer" validate:"required" jsonschema:"description=The final answer"`
}

var errDivideByZero = errors.New("cannot divide by zero")

// newCalculator builds the calculator actions. say writes to out and waits
// for the user's reply on in.
func newCalculator(in *bufio.Reader, out io.Writer) (*agent.Registry, error) {
	return agent.NewRegistry(
		agent.NewAction("add", "Add the numbers and provide you with the result.",
			func(_ context.Context, p mathParams) (float64, error) {
				return p.Left + p.Right, nil
			},
			agent.WithExamples(agent.Example{
				Description: "Adding two numbers",
				Activities: []activity.Activity{
					activity.NewThought("I need the sum of 2 and 3."),
					activity.NewAction("add", `{"left": 2, "right": 3}`),
					activity.NewObservation("5"),
				},
			})),
		agent.NewAction("subtract", "Subtract the numbers and provide you with the result.",
			func(_ context.Context, p mathParams) (float64, error) {
				return p.Left - p.Right, nil
			}),
		agent.NewAction("multiply", "Multiply the numbers and provide you with the result.",
			func(_ context.Context, p mathParams) (float64, error) {
				return p.Left * p.Right, nil
			}),
		agent.NewAction("divide", "Divide the numbers and provide you with the result.",
			func(_ context.Context, p mathParams) (float64, error) {
				if p.Right == 0 {
					return 0, errDivideByZero
				}
				return p.Left / p.Right, nil
			}),
		agent.NewAction("say", "Relay information to the user and wait for the reply. This is the only way of communicating with the user.",
			func(_ context.Context, p sayParams) (string, error) {
				return converse(in, out, p.Message)
			}),
		agent.NewAction("finish", "Give the user the final result.",
			func(_ context.Context, p finishParams) (string, error) {
				return p.Answer, nil
			},
			agent.Terminal()),
	)
}

func converse(in *bufio.Reader, out io.Writer, message string) (string, error) {
	fmt.Fprintf(out, "AI: %s\n> ", message)
	reply, err := in.ReadString('\n')
	reply = strings.TrimSpace(reply)
	if err != nil && reply == "" {
		if errors.Is(err, io.EOF) {
			return "The user has left the conversation.", nil
		}
		return "", fmt.Errorf("read reply: %w", err)
	}
	return "The user says: " + reply, nil
}
