package provider

import (
	"chatgate/model"
)

// catalogs lists the chat models each remote provider is allowed to expose.
// Listing results are intersected with these; providers without an entry
// return whatever the API reports.
var catalogs = map[model.ProviderID][]model.APIModel{
	model.ProviderOpenAI: {
		{ID: "gpt-4o", Name: "GPT-4o", Details: model.ModelDetails{MaxTokens: 16384, Description: "Flagship multimodal model"}},
		{ID: "gpt-4o-mini", Name: "GPT-4o mini", Details: model.ModelDetails{MaxTokens: 16384, Description: "Small, fast and affordable"}},
		{ID: "gpt-4.1", Name: "GPT-4.1", Details: model.ModelDetails{MaxTokens: 32768, Description: "Long context coding model"}},
		{ID: "gpt-4.1-mini", Name: "GPT-4.1 mini", Details: model.ModelDetails{MaxTokens: 32768, Description: "Balanced long context model"}},
		{ID: "o3-mini", Name: "o3-mini", Details: model.ModelDetails{MaxTokens: 100000, Description: "Reasoning model"}},
	},
	model.ProviderDeepSeek: {
		{ID: "deepseek-chat", Name: "DeepSeek Chat", Details: model.ModelDetails{MaxTokens: 8192, Description: "General chat model"}},
		{ID: "deepseek-reasoner", Name: "DeepSeek Reasoner", Details: model.ModelDetails{MaxTokens: 65536, Description: "Reasoning model with visible chain of thought"}},
	},
	model.ProviderAnthropic: {
		{ID: "claude-sonnet-4-5-20250929", Name: "Claude Sonnet 4.5", Details: model.ModelDetails{MaxTokens: 64000, Description: "Balanced frontier model"}},
		{ID: "claude-opus-4-1-20250805", Name: "Claude Opus 4.1", Details: model.ModelDetails{MaxTokens: 32000, Description: "Most capable model"}},
		{ID: "claude-3-5-haiku-20241022", Name: "Claude Haiku 3.5", Details: model.ModelDetails{MaxTokens: 8192, Description: "Fastest model"}},
	},
}

// Catalog returns the allow-list for p, or nil when p has none.
func Catalog(p model.ProviderID) []model.APIModel {
	entries, ok := catalogs[p]
	if !ok {
		return nil
	}
	return append([]model.APIModel(nil), entries...)
}

// intersectCatalog keeps the reported ids that are in p's catalog, in
// catalog order, enriched with the catalog details. Without a catalog the
// reported ids are returned as is.
func intersectCatalog(p model.ProviderID, reported []string) []model.APIModel {
	catalog, ok := catalogs[p]
	if !ok {
		out := make([]model.APIModel, 0, len(reported))
		for _, id := range reported {
			out = append(out, model.APIModel{ID: id, Name: id})
		}
		return out
	}

	seen := make(map[string]bool, len(reported))
	for _, id := range reported {
		seen[id] = true
	}
	out := make([]model.APIModel, 0, len(catalog))
	for _, m := range catalog {
		if seen[m.ID] {
			out = append(out, m)
		}
	}
	return out
}

// maxTokensFor returns the catalog output limit for modelID, or fallback.
func maxTokensFor(p model.ProviderID, modelID string, fallback int) int {
	for _, m := range catalogs[p] {
		if m.ID == modelID && m.Details.MaxTokens > 0 {
			return m.Details.MaxTokens
		}
	}
	return fallback
}
