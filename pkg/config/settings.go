package config

import (
	"strconv"
	"strings"
)

// Keys persisted in the settings table by `inkwell settings set`.
const (
	SettingProvider    = "provider"
	SettingModel       = "model"
	SettingTemperature = "temperature"
	SettingAPIKey      = "api_key"
	SettingBaseURL     = "base_url"
)

// SettingKeys lists every persisted setting key.
var SettingKeys = []string{SettingProvider, SettingModel, SettingTemperature, SettingAPIKey, SettingBaseURL}

// IsSettingKey reports whether key may be persisted.
func IsSettingKey(key string) bool {
	for _, k := range SettingKeys {
		if k == key {
			return true
		}
	}
	return false
}

// ApplySettings overlays persisted settings on top of the loaded
// configuration. Unknown keys and unparseable values are ignored.
func (c *Config) ApplySettings(settings map[string]string) {
	if len(settings) == 0 {
		return
	}
	if v := strings.TrimSpace(settings[SettingProvider]); v != "" && IsKnownProvider(strings.ToLower(v)) {
		c.SetProvider(v)
	}
	if v := strings.TrimSpace(settings[SettingModel]); v != "" {
		c.Provider.Model = v
	}
	if v := strings.TrimSpace(settings[SettingTemperature]); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			c.Provider.Temperature = f
		}
	}
	if v := strings.TrimSpace(settings[SettingAPIKey]); v != "" {
		c.Provider.APIKey = v
	}
	if v := strings.TrimSpace(settings[SettingBaseURL]); v != "" {
		c.Provider.BaseURL = v
	}
}
