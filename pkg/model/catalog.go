package model

import (
	"strings"

	"github.com/odvcencio/inkwell/pkg/config"
)

// Family groups providers by wire format.
type Family string

const (
	// FamilyNative is the Gemini streamGenerateContent protocol.
	FamilyNative Family = "native"
	// FamilySSE is the OpenAI-compatible chat completions protocol.
	FamilySSE Family = "sse"
)

// ModelOption is a selectable model.
type ModelOption struct {
	ID    string
	Label string
}

// ProviderInfo describes a provider for settings and listing.
type ProviderInfo struct {
	ID             string
	Name           string
	Family         Family
	DefaultBaseURL string
	Models         []ModelOption
}

var catalog = []ProviderInfo{
	{
		ID:             config.ProviderGoogle,
		Name:           "Google Gemini",
		Family:         FamilyNative,
		DefaultBaseURL: "https://generativelanguage.googleapis.com/v1beta",
		Models: []ModelOption{
			{ID: "gemini-2.5-flash", Label: "Gemini 2.5 Flash (Fast & Stable)"},
			{ID: "gemini-3-pro-preview", Label: "Gemini 3.0 Pro (Reasoning)"},
			{ID: "gemini-2.5-flash-lite-latest", Label: "Gemini 2.5 Flash Lite (Cost Effective)"},
		},
	},
	{
		ID:             config.ProviderOpenAI,
		Name:           "OpenAI",
		Family:         FamilySSE,
		DefaultBaseURL: "https://api.openai.com/v1",
		Models: []ModelOption{
			{ID: "gpt-4o", Label: "GPT-4o"},
			{ID: "gpt-3.5-turbo", Label: "GPT-3.5 Turbo"},
		},
	},
	{
		ID:             config.ProviderDeepSeek,
		Name:           "DeepSeek",
		Family:         FamilySSE,
		DefaultBaseURL: "https://api.deepseek.com",
		Models: []ModelOption{
			{ID: "deepseek-chat", Label: "DeepSeek V3"},
			{ID: "deepseek-reasoner", Label: "DeepSeek R1"},
		},
	},
	{
		ID:             config.ProviderKimi,
		Name:           "Moonshot Kimi",
		Family:         FamilySSE,
		DefaultBaseURL: "https://api.moonshot.cn/v1",
		Models: []ModelOption{
			{ID: "moonshot-v1-8k", Label: "Kimi 8k"},
			{ID: "moonshot-v1-32k", Label: "Kimi 32k"},
		},
	},
	{
		ID:             config.ProviderOpenRouter,
		Name:           "OpenRouter",
		Family:         FamilySSE,
		DefaultBaseURL: "https://openrouter.ai/api/v1",
		Models: []ModelOption{
			{ID: "openai/gpt-4o-mini", Label: "GPT-4o mini (via OpenRouter)"},
		},
	},
}

// Catalog returns every known provider in display order.
func Catalog() []ProviderInfo {
	out := make([]ProviderInfo, len(catalog))
	for i, p := range catalog {
		p.Models = append([]ModelOption(nil), p.Models...)
		out[i] = p
	}
	return out
}

// LookupProvider finds a provider by id.
func LookupProvider(id string) (ProviderInfo, bool) {
	for _, p := range catalog {
		if p.ID == id {
			return p, true
		}
	}
	return ProviderInfo{}, false
}

// ResolveBaseURL returns baseURL without trailing slashes, or the provider
// default when baseURL is blank.
func ResolveBaseURL(providerID, baseURL string) string {
	if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
		return trimmed
	}
	if p, ok := LookupProvider(providerID); ok {
		return p.DefaultBaseURL
	}
	return ""
}
