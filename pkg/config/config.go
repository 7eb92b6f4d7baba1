package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/odvcencio/inkwell/pkg/paths"
)

// Provider identifiers.
const (
	ProviderGoogle     = "google"
	ProviderOpenAI     = "openai"
	ProviderDeepSeek   = "deepseek"
	ProviderKimi       = "kimi"
	ProviderOpenRouter = "openrouter"
)

// Default configuration values exported for documentation and validation
const (
	DefaultProvider        = ProviderGoogle
	DefaultTemperature     = 0.7
	DefaultAutosaveDelay   = 2 * time.Second
	DefaultPreviewLength   = 60
	DefaultLogLevel        = "info"
	DefaultTranslateTemp   = 0.3
	DefaultUntitledTitle   = "Untitled Document"
	DefaultMigrationTitle  = "Untitled Migration"
	defaultProjectDirName  = ".inkwell"
	defaultConfigFileName  = "config.yaml"
	defaultConfigEnvFile   = "config.env"
)

// KnownProviders lists provider identifiers in display order.
var KnownProviders = []string{ProviderGoogle, ProviderOpenAI, ProviderDeepSeek, ProviderKimi, ProviderOpenRouter}

var providerDefaultModels = map[string]string{
	ProviderGoogle:     "gemini-2.5-flash",
	ProviderOpenAI:     "gpt-4o",
	ProviderDeepSeek:   "deepseek-chat",
	ProviderKimi:       "moonshot-v1-8k",
	ProviderOpenRouter: "openai/gpt-4o-mini",
}

// Config represents the complete inkwell configuration
type Config struct {
	Provider    ProviderSelection `yaml:"provider"`
	Providers   ProviderConfig    `yaml:"providers"`
	Storage     StorageConfig     `yaml:"storage"`
	Autosave    AutosaveConfig    `yaml:"autosave"`
	Rewrite     RewriteConfig     `yaml:"rewrite"`
	Logging     LoggingConfig     `yaml:"logging"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

// ProviderSelection is the active completion provider.
type ProviderSelection struct {
	ID          string  `yaml:"id"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	APIKey      string  `yaml:"api_key"`  // Overrides the per-provider key
	BaseURL     string  `yaml:"base_url"` // Overrides the per-provider base URL
}

// ProviderConfig holds credentials for every provider family.
type ProviderConfig struct {
	Google     ProviderSettings `yaml:"google"`
	OpenAI     ProviderSettings `yaml:"openai"`
	DeepSeek   ProviderSettings `yaml:"deepseek"`
	Kimi       ProviderSettings `yaml:"kimi"`
	OpenRouter ProviderSettings `yaml:"openrouter"`
}

// ProviderSettings contains settings for a specific provider
type ProviderSettings struct {
	APIKey  string `yaml:"api_key"`  // Can be set here or via env var
	BaseURL string `yaml:"base_url"` // Optional custom base URL
}

// StorageConfig locates the local document database.
type StorageConfig struct {
	Path          string `yaml:"path"`
	PreviewLength int    `yaml:"preview_length"`
}

// AutosaveConfig controls the autosave debounce.
type AutosaveConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// RewriteConfig tunes selection rewrites. ContextLimit 0 keeps the
// per-provider default.
type RewriteConfig struct {
	ContextLimit int `yaml:"context_limit"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Pretty  bool   `yaml:"pretty"`
	Console bool   `yaml:"console"`
	Dir     string `yaml:"dir"`
}

// DiagnosticsConfig holds debugging switches.
type DiagnosticsConfig struct {
	NetworkLogsEnabled bool   `yaml:"network_logs"`
	MetricsAddr        string `yaml:"metrics_addr"`
}

// Resolved is the fully resolved provider configuration handed to the
// completion client.
type Resolved struct {
	Provider    string
	Model       string
	Temperature float64
	APIKey      string
	BaseURL     string
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderSelection{
			ID:          DefaultProvider,
			Model:       providerDefaultModels[DefaultProvider],
			Temperature: DefaultTemperature,
		},
		Storage: StorageConfig{
			Path:          paths.DefaultDBPath(),
			PreviewLength: DefaultPreviewLength,
		},
		Autosave: AutosaveConfig{
			Debounce: DefaultAutosaveDelay,
		},
		Logging: LoggingConfig{
			Level: DefaultLogLevel,
			Dir:   paths.LogsBaseDir(),
		},
	}
}

// DefaultModel returns the default model for a provider.
func DefaultModel(providerID string) string {
	return providerDefaultModels[providerID]
}

// IsKnownProvider reports whether id names a supported provider.
func IsKnownProvider(id string) bool {
	_, ok := providerDefaultModels[id]
	return ok
}

// Load loads configuration from default locations with proper precedence
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configEnv := loadConfigEnvVars()

	// User config (~/.inkwell/config.yaml)
	if err := loadAndMerge(cfg, UserConfigPath()); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading user config: %w", err)
	}

	// Project config (./.inkwell/config.yaml)
	projectConfigPath := filepath.Join(".", defaultProjectDirName, defaultConfigFileName)
	if err := loadAndMerge(cfg, projectConfigPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	applyEnvOverrides(cfg, configEnv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// UserConfigPath is the config file Load reads from the inkwell home.
func UserConfigPath() string {
	return filepath.Join(paths.HomeDir(), defaultConfigFileName)
}

// LoadFromPath loads configuration from a specific file path
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	configEnv := loadConfigEnvVars()

	if err := loadAndMerge(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}

	applyEnvOverrides(cfg, configEnv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides. Values from
// ~/.inkwell/config.env are used when the process environment is silent.
func applyEnvOverrides(cfg *Config, configEnv map[string]string) {
	lookup := func(keys ...string) string {
		for _, key := range keys {
			if v := strings.TrimSpace(os.Getenv(key)); v != "" {
				return v
			}
		}
		for _, key := range keys {
			if v := strings.TrimSpace(configEnv[key]); v != "" {
				return v
			}
		}
		return ""
	}

	if v := lookup("GOOGLE_API_KEY", "GEMINI_API_KEY", "API_KEY"); v != "" {
		cfg.Providers.Google.APIKey = v
	}
	if v := lookup("OPENAI_API_KEY"); v != "" {
		cfg.Providers.OpenAI.APIKey = v
	}
	if v := lookup("DEEPSEEK_API_KEY"); v != "" {
		cfg.Providers.DeepSeek.APIKey = v
	}
	if v := lookup("MOONSHOT_API_KEY", "KIMI_API_KEY"); v != "" {
		cfg.Providers.Kimi.APIKey = v
	}
	if v := lookup("OPENROUTER_API_KEY"); v != "" {
		cfg.Providers.OpenRouter.APIKey = v
	}

	if v := lookup("INKWELL_PROVIDER"); v != "" {
		cfg.SetProvider(v)
	}
	if v := lookup("INKWELL_MODEL"); v != "" {
		cfg.Provider.Model = v
	}
	if v := lookup("INKWELL_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Provider.Temperature = f
		}
	}
	if v := lookup("INKWELL_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := lookup("INKWELL_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := lookup("INKWELL_DB_PATH"); v != "" {
		cfg.Storage.Path = paths.ExpandHome(v)
	}
	if v := lookup("INKWELL_AUTOSAVE_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Autosave.Debounce = d
		}
	}
	if v := lookup("INKWELL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if val, ok := envBool("INKWELL_NETWORK_LOGS"); ok {
		cfg.Diagnostics.NetworkLogsEnabled = val
	}
}

// SetProvider switches the active provider, resetting the model to the
// provider default when the current model belongs to another provider.
func (c *Config) SetProvider(id string) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == c.Provider.ID {
		return
	}
	if c.Provider.Model == "" || c.Provider.Model == providerDefaultModels[c.Provider.ID] {
		c.Provider.Model = providerDefaultModels[id]
	}
	c.Provider.ID = id
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if !IsKnownProvider(c.Provider.ID) {
		return fmt.Errorf("invalid provider: %q (valid: %s)", c.Provider.ID, strings.Join(KnownProviders, ", "))
	}
	if math.IsNaN(c.Provider.Temperature) || c.Provider.Temperature < 0 || c.Provider.Temperature > 1 {
		return fmt.Errorf("invalid temperature: %v (must be between 0.0 and 1.0)", c.Provider.Temperature)
	}
	if c.Autosave.Debounce <= 0 {
		return fmt.Errorf("invalid autosave debounce: %s (must be positive)", c.Autosave.Debounce)
	}
	if c.Storage.PreviewLength <= 0 {
		return fmt.Errorf("invalid preview length: %d (must be positive)", c.Storage.PreviewLength)
	}
	if c.Rewrite.ContextLimit < 0 {
		return fmt.Errorf("invalid rewrite context limit: %d", c.Rewrite.ContextLimit)
	}
	return nil
}

// ValidationWarnings returns non-fatal configuration concerns.
func (c *Config) ValidationWarnings() []string {
	var warnings []string
	if c.Resolve().APIKey == "" {
		warnings = append(warnings, fmt.Sprintf("No API key configured for provider %q; generation and rewrites will fail until one is set.", c.Provider.ID))
	}
	if c.Diagnostics.NetworkLogsEnabled {
		warnings = append(warnings, "SECURITY: Network request/response logging is enabled. This may capture document text in network.jsonl under INKWELL_LOG_DIR; disable it when not actively debugging.")
	}
	return warnings
}

// Settings returns the per-provider credentials for id.
func (p *ProviderConfig) Settings(id string) ProviderSettings {
	switch id {
	case ProviderGoogle:
		return p.Google
	case ProviderOpenAI:
		return p.OpenAI
	case ProviderDeepSeek:
		return p.DeepSeek
	case ProviderKimi:
		return p.Kimi
	case ProviderOpenRouter:
		return p.OpenRouter
	default:
		return ProviderSettings{}
	}
}

// Resolve merges the active selection with per-provider credentials.
func (c *Config) Resolve() Resolved {
	sel := c.Provider
	creds := c.Providers.Settings(sel.ID)

	out := Resolved{
		Provider:    sel.ID,
		Model:       sel.Model,
		Temperature: sel.Temperature,
		APIKey:      sel.APIKey,
		BaseURL:     sel.BaseURL,
	}
	if out.Model == "" {
		out.Model = providerDefaultModels[sel.ID]
	}
	if out.APIKey == "" {
		out.APIKey = creds.APIKey
	}
	if out.BaseURL == "" {
		out.BaseURL = creds.BaseURL
	}
	return out
}

func envBool(key string) (bool, bool) {
	val := os.Getenv(key)
	if val == "" {
		return false, false
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

func loadConfigEnvVars() map[string]string {
	path := filepath.Join(paths.HomeDir(), defaultConfigEnvFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	vars := make(map[string]string)
	lines := strings.Split(string(data), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		line = strings.TrimSpace(line)
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		vars[key] = value
	}
	return vars
}
