package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/odvcencio/inkwell/pkg/paths"
)

// loadAndMerge loads a YAML file and merges it into the config.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	mergeConfigs(cfg, &override, raw)
	return nil
}

// mergeConfigs merges override into base.
func mergeConfigs(base, override *Config, raw map[string]any) {
	if override == nil {
		return
	}

	if id := strings.TrimSpace(override.Provider.ID); id != "" {
		base.SetProvider(id)
	}
	if override.Provider.Model != "" {
		base.Provider.Model = override.Provider.Model
	}
	if fieldSet(raw, "provider", "temperature") {
		base.Provider.Temperature = override.Provider.Temperature
	}
	if override.Provider.APIKey != "" {
		base.Provider.APIKey = override.Provider.APIKey
	}
	if override.Provider.BaseURL != "" {
		base.Provider.BaseURL = override.Provider.BaseURL
	}

	base.Providers.Google = mergeProviderSettings(base.Providers.Google, override.Providers.Google)
	base.Providers.OpenAI = mergeProviderSettings(base.Providers.OpenAI, override.Providers.OpenAI)
	base.Providers.DeepSeek = mergeProviderSettings(base.Providers.DeepSeek, override.Providers.DeepSeek)
	base.Providers.Kimi = mergeProviderSettings(base.Providers.Kimi, override.Providers.Kimi)
	base.Providers.OpenRouter = mergeProviderSettings(base.Providers.OpenRouter, override.Providers.OpenRouter)

	if override.Storage.Path != "" {
		base.Storage.Path = paths.ExpandHome(override.Storage.Path)
	}
	if override.Storage.PreviewLength != 0 {
		base.Storage.PreviewLength = override.Storage.PreviewLength
	}

	if override.Autosave.Debounce != 0 {
		base.Autosave.Debounce = override.Autosave.Debounce
	}

	if override.Rewrite.ContextLimit != 0 {
		base.Rewrite.ContextLimit = override.Rewrite.ContextLimit
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if fieldSet(raw, "logging", "pretty") {
		base.Logging.Pretty = override.Logging.Pretty
	}
	if fieldSet(raw, "logging", "console") {
		base.Logging.Console = override.Logging.Console
	}
	if override.Logging.Dir != "" {
		base.Logging.Dir = paths.ExpandHome(override.Logging.Dir)
	}

	if fieldSet(raw, "diagnostics", "network_logs") {
		base.Diagnostics.NetworkLogsEnabled = override.Diagnostics.NetworkLogsEnabled
	}
	if override.Diagnostics.MetricsAddr != "" {
		base.Diagnostics.MetricsAddr = override.Diagnostics.MetricsAddr
	}
}

func mergeProviderSettings(base, override ProviderSettings) ProviderSettings {
	if override.APIKey != "" {
		base.APIKey = override.APIKey
	}
	if override.BaseURL != "" {
		base.BaseURL = override.BaseURL
	}
	return base
}

// fieldSet reports whether the YAML document explicitly carried the
// nested key, so zero values can override non-zero defaults.
func fieldSet(raw map[string]any, path ...string) bool {
	if len(path) == 0 || raw == nil {
		return false
	}
	current := any(raw)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return false
		}
		val, ok := m[key]
		if !ok {
			return false
		}
		current = val
	}
	return true
}
