package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	EnvInkwellHome   = "INKWELL_HOME"
	EnvInkwellLogDir = "INKWELL_LOG_DIR"
)

// HomeDir returns the per-user inkwell directory (~/.inkwell unless overridden).
func HomeDir() string {
	if dir := strings.TrimSpace(os.Getenv(EnvInkwellHome)); dir != "" {
		return filepath.Clean(ExpandHome(dir))
	}
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		home = os.Getenv("HOME")
	}
	if home == "" {
		return ".inkwell"
	}
	return filepath.Join(home, ".inkwell")
}

// LogsBaseDir is where session and network logs are written.
func LogsBaseDir() string {
	if dir := strings.TrimSpace(os.Getenv(EnvInkwellLogDir)); dir != "" {
		return filepath.Clean(ExpandHome(dir))
	}
	return filepath.Join(HomeDir(), "logs")
}

// DefaultDBPath is the SQLite database holding documents and settings.
func DefaultDBPath() string {
	return filepath.Join(HomeDir(), "inkwell.db")
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~/"))
	}
	return path
}
