package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ScriptedAdapter replays a fixed list of completions in order. It backs
// offline demo runs and tests.
type ScriptedAdapter struct {
	name string

	mu        sync.Mutex
	responses []ScriptedResponse
	requests  []Request
}

// ScriptedResponse is one canned reply. A non-nil Err is returned instead of
// a response.
type ScriptedResponse struct {
	Text         string `yaml:"text"`
	FinishReason string `yaml:"finish_reason"`
	Err          error  `yaml:"-"`
}

// NewScriptedAdapter creates an adapter replaying responses.
func NewScriptedAdapter(name string, responses ...ScriptedResponse) *ScriptedAdapter {
	if name == "" {
		name = "scripted"
	}
	return &ScriptedAdapter{name: name, responses: responses}
}

func (s *ScriptedAdapter) Name() string { return s.name }

func (s *ScriptedAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	if err := ctx.Err(); err != nil {
		return nil, &AbortError{SDKError: SDKError{Message: "request cancelled", Cause: err}}
	}
	if len(s.responses) == 0 {
		return nil, &ConfigurationError{SDKError: SDKError{
			Message: fmt.Sprintf("script exhausted after %d requests", len(s.requests)-1),
		}}
	}

	next := s.responses[0]
	s.responses = s.responses[1:]
	if next.Err != nil {
		return nil, next.Err
	}

	text, stopped := truncateAtStop(next.Text, req.StopSequences)
	reason := next.FinishReason
	if reason == "" {
		reason = FinishReasonStop
	}
	raw := reason
	if stopped {
		raw = "stop_sequence"
	}
	return &Response{
		ID:           "resp_" + uuid.New().String()[:8],
		Model:        req.Model,
		Provider:     s.name,
		Text:         text,
		FinishReason: FinishReason{Reason: reason, Raw: raw},
		Usage: Usage{
			InputTokens:  estimateTokens(req.Prompt),
			OutputTokens: estimateTokens(text),
			TotalTokens:  estimateTokens(req.Prompt) + estimateTokens(text),
		},
	}, nil
}

// Requests returns a copy of every request received so far.
func (s *ScriptedAdapter) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Remaining reports how many responses are left.
func (s *ScriptedAdapter) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.responses)
}
