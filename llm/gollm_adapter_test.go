package llm

import (
	"errors"
	"testing"
)

func TestGollmAdapterName(t *testing.T) {
	for _, provider := range []string{"openai", "anthropic"} {
		adapter, err := NewGollmAdapter(provider, "test-key-not-real")
		if err != nil {
			t.Logf("skipping %s adapter creation (expected without real key): %v", provider, err)
			continue
		}
		if adapter.Name() != provider {
			t.Errorf("expected name %q, got %q", provider, adapter.Name())
		}
	}
}

func TestGollmAdapterTranslateError(t *testing.T) {
	adapter := &GollmAdapter{provider: "openai"}

	tests := []struct {
		msg   string
		check func(error) bool
	}{
		{"401 Unauthorized", func(err error) bool { var e *AuthenticationError; return errors.As(err, &e) }},
		{"invalid api key", func(err error) bool { var e *AuthenticationError; return errors.As(err, &e) }},
		{"403 Forbidden", func(err error) bool { var e *AccessDeniedError; return errors.As(err, &e) }},
		{"404 not found", func(err error) bool { var e *NotFoundError; return errors.As(err, &e) }},
		{"429 rate limit exceeded", func(err error) bool { var e *RateLimitError; return errors.As(err, &e) }},
		{"insufficient_quota", func(err error) bool { var e *QuotaExceededError; return errors.As(err, &e) }},
		{"context length exceeded", func(err error) bool { var e *ContextLengthError; return errors.As(err, &e) }},
		{"500 internal server error", func(err error) bool { var e *ServerError; return errors.As(err, &e) }},
		{"timeout waiting for response", func(err error) bool { var e *RequestTimeoutError; return errors.As(err, &e) }},
		{"dial tcp: connection refused", func(err error) bool { var e *NetworkError; return errors.As(err, &e) }},
		{"content filter triggered", func(err error) bool { var e *ContentFilterError; return errors.As(err, &e) }},
		{"something unknown", func(err error) bool { var e *ProviderError; return errors.As(err, &e) }},
	}

	for _, tt := range tests {
		err := adapter.translateError(errors.New(tt.msg))
		if err == nil {
			t.Errorf("expected non-nil error for %q", tt.msg)
			continue
		}
		if !tt.check(err) {
			t.Errorf("for %q: unexpected classification %T", tt.msg, err)
		}
	}

	if adapter.translateError(nil) != nil {
		t.Error("nil must translate to nil")
	}
}

func TestTruncateAtStop(t *testing.T) {
	tests := []struct {
		text    string
		stops   []string
		want    string
		stopped bool
	}{
		{"thought\n<BEGIN OBSERVATION>\n3", []string{"<BEGIN OBSERVATION>"}, "thought\n", true},
		{"a //Observation b //X", []string{"//X", "//Observation"}, "a ", true},
		{"nothing to cut", []string{"<BEGIN OBSERVATION>"}, "nothing to cut", false},
		{"empty stop", []string{""}, "empty stop", false},
	}
	for _, tt := range tests {
		got, stopped := truncateAtStop(tt.text, tt.stops)
		if got != tt.want || stopped != tt.stopped {
			t.Errorf("truncateAtStop(%q) = %q, %v; want %q, %v", tt.text, got, stopped, tt.want, tt.stopped)
		}
	}
}

func TestGollmAdapterBuildResponse(t *testing.T) {
	adapter := &GollmAdapter{provider: "openai", model: "gpt-4o-mini"}

	resp := adapter.buildResponse(Request{
		Prompt:        "prompt text",
		StopSequences: []string{"<BEGIN OBSERVATION>"},
	}, "<BEGIN THOUGHT>x<END THOUGHT><BEGIN OBSERVATION>made up")
	if resp.Text != "<BEGIN THOUGHT>x<END THOUGHT>" {
		t.Errorf("expected text cut at stop sequence, got %q", resp.Text)
	}
	if resp.Model != "gpt-4o-mini" || resp.Provider != "openai" {
		t.Errorf("unexpected model/provider %q/%q", resp.Model, resp.Provider)
	}
	if resp.FinishReason.Reason != FinishReasonStop || resp.FinishReason.Raw != "stop_sequence" {
		t.Errorf("unexpected finish reason %+v", resp.FinishReason)
	}

	limit := 2
	resp = adapter.buildResponse(Request{Prompt: "p", MaxTokens: &limit}, "a fairly long completion that ran out")
	if !resp.FinishReason.Truncated() {
		t.Errorf("expected estimated length finish, got %+v", resp.FinishReason)
	}
}

func TestGollmAdapterRejectsEmptyPrompt(t *testing.T) {
	adapter := &GollmAdapter{provider: "openai"}
	_, err := adapter.translateRequest(Request{Prompt: "   "})
	var invalid *InvalidRequestError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidRequestError, got %v", err)
	}
}
