package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

const maxStackDepth = 32

// Error is a coded error carrying an optional cause, diagnostic context and
// a message suitable for showing to the writer.
type Error struct {
	Code        ErrorCode
	Message     string
	Underlying  error
	Context     map[string]any
	Stack       []Frame
	Retryable   bool
	UserMessage string
	Remediation []string
}

// Frame is one caller captured when the error was created.
type Frame struct {
	Function string
	File     string
	Line     int
}

func (f Frame) String() string {
	return fmt.Sprintf("%s (%s:%d)", f.Function, f.File, f.Line)
}

// New returns an error with code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Stack: callers(3)}
}

// Wrap attaches code and message to err. Wrap(nil, ...) is nil.
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Underlying: err, Stack: callers(3)}
}

func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

func (e *Error) WithUserMessage(message string) *Error {
	e.UserMessage = message
	return e
}

// WithRemediation replaces the remediation tips.
func (e *Error) WithRemediation(tips ...string) *Error {
	if len(tips) > 0 {
		e.Remediation = append([]string(nil), tips...)
	}
	return e
}

// Error renders "[CODE] message {k: v, ...}: cause" with context keys in
// sorted order.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: %v", k, e.Context[k])
		}
		b.WriteString("}")
	}
	if e.Underlying != nil {
		fmt.Fprintf(&b, ": %v", e.Underlying)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Underlying }

// Is matches any *Error with the same code, so coded sentinels work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t != nil && e.Code == t.Code
}

func (e *Error) IsRetryable() bool { return e.Retryable }

// Friendly returns UserMessage, or Message when none was set.
func (e *Error) Friendly() string {
	switch {
	case e == nil:
		return ""
	case e.UserMessage != "":
		return e.UserMessage
	}
	return e.Message
}

// StackTrace formats the captured frames, innermost first.
func (e *Error) StackTrace() string {
	var b strings.Builder
	b.WriteString("Stack trace:\n")
	for i, f := range e.Stack {
		fmt.Fprintf(&b, "  %d. %s\n     %s:%d\n", i+1, f.Function, f.File, f.Line)
	}
	return b.String()
}

// As returns the first *Error in err's tree.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) && e != nil {
		return e, true
	}
	return nil, false
}

func callers(skip int) []Frame {
	var pcs [maxStackDepth]uintptr
	n := runtime.Callers(skip, pcs[:])
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs[:n])
	out := make([]Frame, 0, n)
	for {
		f, more := frames.Next()
		out = append(out, Frame{Function: f.Function, File: f.File, Line: f.Line})
		if !more {
			break
		}
	}
	return out
}
