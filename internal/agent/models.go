package agent

import "strings"

// ProviderPrefix namespaces every model ID sent through the agent.
const ProviderPrefix = "openrouter/"

// DefaultModel is used when no other source names a primary model.
const DefaultModel = ProviderPrefix + "openai/gpt-5.2-codex"

// CatalogEntry is one selectable model.
type CatalogEntry struct {
	Name string
	ID   string
}

// Catalog lists the models offered by the /model picker, in display order.
var Catalog = []CatalogEntry{
	{"GPT-5.2 Codex", "openai/gpt-5.2-codex"},
	{"GPT-5.2", "openai/gpt-5.2"},
	{"Claude Opus 4.5", "anthropic/claude-opus-4.5"},
	{"Claude Opus 4", "anthropic/claude-opus-4"},
	{"Qwen 3 Coder", "qwen/qwen3-coder"},
	{"Gemini 3 Flash Preview", "google/gemini-3-flash-preview"},
	{"Kimi K2 0905", "moonshotai/kimi-k2-0905"},
	{"Minimax M2.1", "minimax/minimax-m2.1"},
}

// NormalizeModelID prefixes id with ProviderPrefix unless it already carries
// it. Blank input stays blank.
func NormalizeModelID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.HasPrefix(id, ProviderPrefix) {
		return id
	}
	return ProviderPrefix + id
}

// DisplayModelID strips ProviderPrefix for display.
func DisplayModelID(id string) string {
	return strings.TrimPrefix(id, ProviderPrefix)
}

// CatalogName returns the friendly name for id, or "" if it is not listed.
func CatalogName(id string) string {
	bare := DisplayModelID(NormalizeModelID(id))
	for _, e := range Catalog {
		if e.ID == bare {
			return e.Name
		}
	}
	return ""
}
