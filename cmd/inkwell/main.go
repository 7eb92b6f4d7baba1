package main

import (
	"fmt"
	"os"

	apperrors "github.com/odvcencio/inkwell/pkg/errors"
	"github.com/odvcencio/inkwell/pkg/terminal"
)

// Version information - set via ldflags during build
var (
	version   = "0.1.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		terminal.NewWithOutput(os.Stderr).Error("%s", friendlyError(err))
		os.Exit(exitCodeForError(err))
	}
}

// friendlyError prefers the user-facing message of a structured error.
func friendlyError(err error) string {
	if e, ok := apperrors.As(err); ok {
		if msg := e.Friendly(); msg != "" {
			return msg
		}
	}
	return fmt.Sprint(err)
}
