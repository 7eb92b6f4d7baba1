package main

import (
	"errors"

	apperrors "github.com/odvcencio/inkwell/pkg/errors"
)

// Process exit codes.
const (
	exitFailure  = 1
	exitUsage    = 2
	exitNotFound = 3
	exitStream   = 4
)

type exitCoder interface {
	ExitCode() int
}

type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e exitError) Unwrap() error {
	return e.err
}

func (e exitError) ExitCode() int {
	if e.code == 0 {
		return exitFailure
	}
	return e.code
}

func withExitCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return exitError{code: code, err: err}
}

func exitCodeForError(err error) int {
	if err == nil {
		return 0
	}
	var coded exitCoder
	if errors.As(err, &coded) {
		return coded.ExitCode()
	}
	switch code := apperrors.GetCode(err); code {
	case apperrors.ErrCodeNotFound:
		return exitNotFound
	case apperrors.ErrCodeConfigLoad, apperrors.ErrCodeConfigParse, apperrors.ErrCodeConfigInvalid,
		apperrors.ErrCodeInvalidInput, apperrors.ErrCodeNoSelection:
		return exitUsage
	case apperrors.ErrCodeStreamAuth, apperrors.ErrCodeStreamRateLimit, apperrors.ErrCodeStreamBlocked,
		apperrors.ErrCodeStreamEndpoint, apperrors.ErrCodeStreamTransport, apperrors.ErrCodeStreamMalformed,
		apperrors.ErrCodeStreamFailed:
		return exitStream
	}
	return exitFailure
}
