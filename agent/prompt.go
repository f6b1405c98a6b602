package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/martinemde/reactor/activity"
)

// PromptAssembler renders the text handed to the model.
type PromptAssembler struct {
	Objective   string
	Instruction string
	Constraints []string
	Examples    []activity.Activity
	Catalogue   Describer
	Codec       activity.Codec
}

// Cue returns the closing line that asks for the next steps after last.
func Cue(last activity.Kind) string {
	if last == activity.KindThought {
		return CueAction
	}
	return CueThoughtAndAction
}

// Render builds the prompt over history. Notices are rendered in their own
// section when present.
func (p *PromptAssembler) Render(ctx context.Context, history []activity.Activity, notices []string) (string, error) {
	if len(history) == 0 {
		return "", ErrEmptyHistory
	}
	codec := p.Codec
	if codec == nil {
		codec = activity.NewTagCodec()
	}

	var sb strings.Builder
	sb.WriteString("# Objective\n")
	sb.WriteString(strings.TrimSpace(p.Objective))
	sb.WriteString("\n\n")

	if p.Catalogue != nil {
		catalogue, err := p.Catalogue.Describe(ctx, codec)
		if err != nil {
			return "", fmt.Errorf("render actions: %w", err)
		}
		sb.WriteString("# Actions\n")
		sb.WriteString("The permissible actions I may take are listed below:\n")
		sb.WriteString(catalogue)
		sb.WriteString("\n\n")
	}

	sb.WriteString("# Instructions\n")
	sb.WriteString(strings.TrimSpace(p.Instruction))
	sb.WriteString("\n")
	if len(p.Examples) > 0 {
		sb.WriteString("**Example**\n")
		sb.WriteString(codec.EncodeAll(p.Examples))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	if len(p.Constraints) > 0 {
		sb.WriteString("# Constraints\n")
		for i, c := range p.Constraints {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, c)
		}
		sb.WriteString("\n")
	}

	if len(notices) > 0 {
		sb.WriteString("# Notices\n")
		for _, n := range notices {
			fmt.Fprintf(&sb, "- %s\n", n)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("# History:\n")
	sb.WriteString(codec.EncodeAll(history))
	sb.WriteString(activity.Separator)
	sb.WriteString(Cue(history[len(history)-1].Kind()))
	return sb.String(), nil
}
