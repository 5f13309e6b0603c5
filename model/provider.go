package model

import (
	"fmt"
	"sort"
)

// ProviderID identifies a chat backend (local daemon or remote API).
//
// The built-in ids are listed below; any other string is accepted as an opaque
// id as long as a service constructor has been registered for it.
type ProviderID string

const (
	ProviderOllama    ProviderID = "ollama"
	ProviderOpenAI    ProviderID = "openai"
	ProviderDeepSeek  ProviderID = "deepseek"
	ProviderAnthropic ProviderID = "anthropic"
)

// KnownProviders returns the built-in provider ids in a stable order.
func KnownProviders() []ProviderID {
	return []ProviderID{ProviderOllama, ProviderOpenAI, ProviderDeepSeek, ProviderAnthropic}
}

// IsKnown reports whether p is one of the built-in providers.
func (p ProviderID) IsKnown() bool {
	for _, known := range KnownProviders() {
		if p == known {
			return true
		}
	}
	return false
}

// DisplayName returns the human readable provider name.
func (p ProviderID) DisplayName() string {
	switch p {
	case ProviderOllama:
		return "Ollama"
	case ProviderOpenAI:
		return "OpenAI"
	case ProviderDeepSeek:
		return "DeepSeek"
	case ProviderAnthropic:
		return "Anthropic"
	default:
		return string(p)
	}
}

// ParseProviderID converts a user supplied id, rejecting the empty string.
func ParseProviderID(s string) (ProviderID, error) {
	if s == "" {
		return "", fmt.Errorf("provider id is required")
	}
	return ProviderID(s), nil
}

// SortProviders sorts ids in place, alphabetically.
func SortProviders(ids []ProviderID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// CredentialStore is the narrow view of credential persistence the gateway needs.
type CredentialStore interface {
	Credential(provider ProviderID) (string, bool)
	SetCredential(provider ProviderID, value string) error
	RemoveCredential(provider ProviderID) error
}

// Status is the per-provider state presentation layers subscribe to.
type Status struct {
	IsAvailable bool
	IsLoading   bool
	Error       string
}
