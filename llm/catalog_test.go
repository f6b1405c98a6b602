package llm

import "testing"

func TestLookupModel(t *testing.T) {
	info, ok := LookupModel("gpt-4o-mini")
	if !ok || info.Provider != "openai" {
		t.Fatalf("LookupModel(gpt-4o-mini) = %+v, %v", info, ok)
	}
	if alias, ok := LookupModel("haiku"); !ok || alias.ID != "claude-haiku-4-5" {
		t.Errorf("expected alias haiku to resolve, got %+v", alias)
	}
	for _, id := range []string{"", "no-such-model"} {
		if _, ok := LookupModel(id); ok {
			t.Errorf("LookupModel(%q) found an entry", id)
		}
	}
}

func TestModelsFor(t *testing.T) {
	if got := len(ModelsFor("")); got != len(Models) {
		t.Errorf("ModelsFor(\"\") returned %d of %d models", got, len(Models))
	}
	for _, m := range ModelsFor("anthropic") {
		if m.Provider != "anthropic" {
			t.Errorf("unexpected provider %q in anthropic list", m.Provider)
		}
	}
	if len(ModelsFor("nobody")) != 0 {
		t.Error("expected no models for unknown provider")
	}
}

func TestDefaultModel(t *testing.T) {
	if m, ok := DefaultModel("openai"); !ok || m.ID != "gpt-4o" {
		t.Errorf("DefaultModel(openai) = %+v, %v", m, ok)
	}
	if _, ok := DefaultModel("nobody"); ok {
		t.Error("expected no default for unknown provider")
	}
}

func TestPromptBudget(t *testing.T) {
	tests := []struct {
		model     string
		maxTokens int
		want      int
	}{
		{"gpt-4o-mini", 0, 128000 - 16384},
		{"sonnet", 1024, 200000 - 1024},
		{"llama3.1", 0, 131072},
		{"unknown", 1024, 0},
	}
	for _, tt := range tests {
		if got := PromptBudget(tt.model, tt.maxTokens); got != tt.want {
			t.Errorf("PromptBudget(%q, %d) = %d, want %d", tt.model, tt.maxTokens, got, tt.want)
		}
	}
}
