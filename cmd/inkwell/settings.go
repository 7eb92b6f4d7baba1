package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/odvcencio/inkwell/pkg/config"
	apperrors "github.com/odvcencio/inkwell/pkg/errors"
	"github.com/odvcencio/inkwell/pkg/model"
	"github.com/odvcencio/inkwell/pkg/paths"
	"github.com/odvcencio/inkwell/pkg/terminal"
)

func newSettingsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the persisted model settings",
		Long: `Settings are stored in the document database and override the config
file and environment. Keys: ` + strings.Join(config.SettingKeys, ", ") + `.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showSettings(cmd, opts)
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the effective settings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return showSettings(cmd, opts)
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Persist a setting",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				key, value, err := normalizeSetting(args[0], args[1])
				if err != nil {
					return err
				}
				a, err := openApp(cmd, opts, "settings")
				if err != nil {
					return err
				}
				defer a.Close()
				if err := a.db.SetSetting(key, value); err != nil {
					return apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "save setting")
				}
				if key == config.SettingAPIKey {
					value = maskSecret(value)
				}
				a.out.Success("%s = %s", key, value)
				return nil
			},
		},
		&cobra.Command{
			Use:   "unset <key>",
			Short: "Remove a persisted setting",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				key := strings.ToLower(strings.TrimSpace(args[0]))
				if !config.IsSettingKey(key) {
					return unknownSettingError(args[0])
				}
				a, err := openApp(cmd, opts, "settings")
				if err != nil {
					return err
				}
				defer a.Close()
				if err := a.db.SetSetting(key, ""); err != nil {
					return apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "remove setting")
				}
				a.out.Success("Removed %s", key)
				return nil
			},
		},
	)
	return cmd
}

func showSettings(cmd *cobra.Command, opts *rootOptions) error {
	a, err := openApp(cmd, opts, "settings")
	if err != nil {
		return err
	}
	defer a.Close()

	r := a.cfg.Resolve()
	name := r.Provider
	if p, ok := model.LookupProvider(r.Provider); ok {
		name = p.Name
	}
	apiKey := "(not set)"
	if r.APIKey != "" {
		apiKey = maskSecret(r.APIKey)
	}
	a.out.KeyValues([][2]string{
		{"Provider", fmt.Sprintf("%s (%s)", r.Provider, name)},
		{"Model", r.Model},
		{"Temperature", strconv.FormatFloat(r.Temperature, 'f', -1, 64)},
		{"API key", apiKey},
		{"Base URL", model.ResolveBaseURL(r.Provider, r.BaseURL)},
		{"Database", a.cfg.Storage.Path},
		{"Autosave", a.cfg.Autosave.Debounce.String()},
	})
	return nil
}

// normalizeSetting validates a key/value pair before it is persisted.
func normalizeSetting(key, value string) (string, string, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.TrimSpace(value)
	if !config.IsSettingKey(key) {
		return "", "", unknownSettingError(key)
	}
	invalid := func(msg string) error {
		return apperrors.New(apperrors.ErrCodeConfigInvalid, "invalid setting "+key).WithUserMessage(msg)
	}
	switch key {
	case config.SettingProvider:
		value = strings.ToLower(value)
		if !config.IsKnownProvider(value) {
			return "", "", invalid(fmt.Sprintf("Unknown provider %q. Valid: %s.", value, strings.Join(config.KnownProviders, ", ")))
		}
	case config.SettingTemperature:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 || f > 1 {
			return "", "", invalid("Temperature must be a number between 0.0 and 1.0.")
		}
	case config.SettingModel, config.SettingAPIKey:
		if value == "" {
			return "", "", invalid(fmt.Sprintf("%s cannot be empty; use `inkwell settings unset %s`.", key, key))
		}
	}
	return key, value, nil
}

func unknownSettingError(key string) error {
	return apperrors.New(apperrors.ErrCodeInvalidInput, "unknown setting").
		WithUserMessage(fmt.Sprintf("Unknown setting %q. Valid keys: %s.", key, strings.Join(config.SettingKeys, ", ")))
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the merged configuration as YAML (secrets masked)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig(opts)
				if err != nil {
					return err
				}
				masked := *cfg
				masked.Provider.APIKey = maskSecret(masked.Provider.APIKey)
				masked.Providers.Google.APIKey = maskSecret(masked.Providers.Google.APIKey)
				masked.Providers.OpenAI.APIKey = maskSecret(masked.Providers.OpenAI.APIKey)
				masked.Providers.DeepSeek.APIKey = maskSecret(masked.Providers.DeepSeek.APIKey)
				masked.Providers.Kimi.APIKey = maskSecret(masked.Providers.Kimi.APIKey)
				masked.Providers.OpenRouter.APIKey = maskSecret(masked.Providers.OpenRouter.APIKey)

				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(&masked); err != nil {
					return err
				}
				return enc.Close()
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Validate the merged configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig(opts)
				if err != nil {
					return err
				}
				out := terminal.NewWithOutput(cmd.OutOrStdout())
				if err := cfg.Validate(); err != nil {
					return apperrors.Wrap(err, apperrors.ErrCodeConfigInvalid, "invalid config").
						WithUserMessage(err.Error())
				}
				for _, w := range cfg.ValidationWarnings() {
					out.Warn("%s", w)
				}
				out.Success("Configuration is valid")
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config and data locations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig(opts)
				if err != nil {
					return err
				}
				out := terminal.NewWithOutput(cmd.OutOrStdout())
				out.KeyValues([][2]string{
					{"Home", paths.HomeDir()},
					{"Config", configFilePath(opts)},
					{"Database", cfg.Storage.Path},
					{"Logs", paths.ExpandHome(cfg.Logging.Dir)},
				})
				return nil
			},
		},
	)
	return cmd
}

func configFilePath(opts *rootOptions) string {
	if opts.configPath != "" {
		return paths.ExpandHome(opts.configPath)
	}
	return config.UserConfigPath()
}
