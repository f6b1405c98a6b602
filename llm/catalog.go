package llm

import "slices"

// ModelInfo is a catalog entry. The agent uses ContextWindow and MaxOutput
// to size the history it sends.
type ModelInfo struct {
	ID            string   `json:"id"`
	Provider      string   `json:"provider"`
	DisplayName   string   `json:"display_name"`
	ContextWindow int      `json:"context_window"`
	MaxOutput     int      `json:"max_output,omitempty"`
	Aliases       []string `json:"aliases,omitempty"`
}

// Models lists the known models, the preferred default of each provider
// first.
var Models = []ModelInfo{
	{ID: "claude-sonnet-4-5", Provider: "anthropic", DisplayName: "Claude Sonnet 4.5",
		ContextWindow: 200000, MaxOutput: 16384, Aliases: []string{"sonnet", "claude-sonnet"}},
	{ID: "claude-haiku-4-5", Provider: "anthropic", DisplayName: "Claude Haiku 4.5",
		ContextWindow: 200000, MaxOutput: 8192, Aliases: []string{"haiku", "claude-haiku"}},

	{ID: "gpt-4o", Provider: "openai", DisplayName: "GPT-4o",
		ContextWindow: 128000, MaxOutput: 16384, Aliases: []string{"4o"}},
	{ID: "gpt-4o-mini", Provider: "openai", DisplayName: "GPT-4o Mini",
		ContextWindow: 128000, MaxOutput: 16384, Aliases: []string{"4o-mini"}},

	{ID: "llama-3.1-8b-instant", Provider: "groq", DisplayName: "Llama 3.1 8B (Groq)",
		ContextWindow: 131072, MaxOutput: 8192},

	{ID: "llama3.1", Provider: "ollama", DisplayName: "Llama 3.1 (Ollama)",
		ContextWindow: 131072},
}

// LookupModel finds a model by ID or alias.
func LookupModel(id string) (ModelInfo, bool) {
	if id == "" {
		return ModelInfo{}, false
	}
	i := slices.IndexFunc(Models, func(m ModelInfo) bool {
		return m.ID == id || slices.Contains(m.Aliases, id)
	})
	if i < 0 {
		return ModelInfo{}, false
	}
	return Models[i], true
}

// ModelsFor returns the catalog entries of a provider, or all of them when
// provider is empty.
func ModelsFor(provider string) []ModelInfo {
	if provider == "" {
		return slices.Clone(Models)
	}
	var out []ModelInfo
	for _, m := range Models {
		if m.Provider == provider {
			out = append(out, m)
		}
	}
	return out
}

// DefaultModel returns the preferred model of a provider.
func DefaultModel(provider string) (ModelInfo, bool) {
	models := ModelsFor(provider)
	if provider == "" || len(models) == 0 {
		return ModelInfo{}, false
	}
	return models[0], true
}

// PromptBudget is the number of tokens a prompt to model may use: the
// context window less the room reserved for the completion. Unknown models
// report 0.
func PromptBudget(model string, maxTokens int) int {
	info, ok := LookupModel(model)
	if !ok {
		return 0
	}
	reserve := maxTokens
	if reserve <= 0 {
		reserve = info.MaxOutput
	}
	return max(info.ContextWindow-reserve, 0)
}
