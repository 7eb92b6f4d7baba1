package prompts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/odvcencio/inkwell/pkg/paths"
)

// DefaultPlaceholder in an override is replaced by the built-in system
// prompt.
const DefaultPlaceholder = "{{DEFAULT_PROMPT}}"

var supportedPrompts = []string{KindGenerate, KindRewrite, KindTranslate}

// PromptInfo describes the default/override state of a system prompt.
type PromptInfo struct {
	Kind       string `json:"kind"`
	Default    string `json:"default"`
	Override   string `json:"override"`
	Effective  string `json:"effective"`
	Overridden bool   `json:"overridden"`
}

// resolvePrompt returns the override for kind with the placeholder expanded,
// or defaultPrompt when there is none.
func resolvePrompt(kind, defaultPrompt string) string {
	if override := resolveOverride(kind, defaultPrompt); override != "" {
		return override
	}
	return defaultPrompt
}

func resolveOverride(kind, defaultPrompt string) string {
	override := rawOverride(kind)
	if override == "" {
		return ""
	}
	return strings.TrimSpace(strings.ReplaceAll(override, DefaultPlaceholder, defaultPrompt))
}

// rawOverride looks at INKWELL_PROMPT_<KIND>, then the file named by
// INKWELL_PROMPT_<KIND>_FILE, then <home>/prompts/<kind>.md.
func rawOverride(kind string) string {
	envKey := promptEnvKey(kind)
	if override := strings.TrimSpace(os.Getenv(envKey)); override != "" {
		return override
	}
	if path := strings.TrimSpace(os.Getenv(envKey + "_FILE")); path != "" {
		if data, err := os.ReadFile(paths.ExpandHome(path)); err == nil {
			if override := strings.TrimSpace(string(data)); override != "" {
				return override
			}
		}
	}
	data, err := os.ReadFile(overridePath(kind))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func promptEnvKey(kind string) string {
	return "INKWELL_PROMPT_" + strings.ToUpper(strings.TrimSpace(kind))
}

// SaveOverride persists the override content for a prompt kind.
func SaveOverride(kind, content string) error {
	if !isSupportedPrompt(kind) {
		return fmt.Errorf("unknown prompt kind: %s", kind)
	}
	path := overridePath(kind)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// DeleteOverride removes a stored override.
func DeleteOverride(kind string) error {
	if !isSupportedPrompt(kind) {
		return fmt.Errorf("unknown prompt kind: %s", kind)
	}
	if err := os.Remove(overridePath(kind)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ListPromptInfo reports every overridable prompt.
func ListPromptInfo() []PromptInfo {
	out := make([]PromptInfo, 0, len(supportedPrompts))
	for _, kind := range supportedPrompts {
		info, _ := PromptInfoFor(kind)
		out = append(out, info)
	}
	return out
}

// PromptInfoFor returns prompt metadata for a single kind. The translate
// default is shown with a {{LANGUAGE}} marker in place of the target.
func PromptInfoFor(kind string) (PromptInfo, error) {
	if !isSupportedPrompt(kind) {
		return PromptInfo{}, fmt.Errorf("unknown prompt kind: %s", kind)
	}
	def := defaultSystem(kind)
	override := rawOverride(kind)
	return PromptInfo{
		Kind:       kind,
		Default:    def,
		Override:   override,
		Effective:  resolvePrompt(kind, def),
		Overridden: override != "",
	}, nil
}

func defaultSystem(kind string) string {
	switch kind {
	case KindGenerate:
		return generateSystem
	case KindRewrite:
		return rewriteSystem
	default:
		return fmt.Sprintf(translateSystem, "{{LANGUAGE}}")
	}
}

func overridePath(kind string) string {
	return filepath.Join(paths.HomeDir(), "prompts", kind+".md")
}

func isSupportedPrompt(kind string) bool {
	for _, k := range supportedPrompts {
		if k == kind {
			return true
		}
	}
	return false
}
