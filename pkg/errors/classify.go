package errors

import (
	"context"
	stderrors "errors"
	"strings"
)

// classification pairs a code with the substrings that identify it and the
// message shown to the writer.
type classification struct {
	code      ErrorCode
	needles   []string
	message   string
	retryable bool
}

// Ordered: the first match wins, so auth beats "not found" in
// "api key not found".
var streamClassifications = []classification{
	{
		code:    ErrCodeStreamAuth,
		needles: []string{"401", "403", "api key", "unauthorized", "permission denied"},
		message: "Authentication failed. Please check your API key.",
	},
	{
		code:      ErrCodeStreamRateLimit,
		needles:   []string{"429", "quota", "rate limit", "too many requests"},
		message:   "Rate limit exceeded. Try again later.",
		retryable: true,
	},
	{
		code:    ErrCodeStreamBlocked,
		needles: []string{"safety", "blocked"},
		message: "Generation blocked due to safety guidelines.",
	},
	{
		code:    ErrCodeStreamEndpoint,
		needles: []string{"404", "not found"},
		message: "Model endpoint not found or request ambiguous. Please check Settings > Model.",
	},
	{
		code:    ErrCodeStreamMalformed,
		needles: []string{"decoding", "unmarshal", "invalid character", "unexpected end of json", "malformed"},
		message: "The provider returned a response that could not be read.",
	},
	{
		code:      ErrCodeStreamTransport,
		needles:   []string{"connection refused", "connection reset", "no such host", "dial tcp", "eof", "broken pipe", "timeout", "network", "transport"},
		message:   "Network error while talking to the provider.",
		retryable: true,
	},
}

// Classify maps a raw streaming failure onto the stream error taxonomy by
// inspecting its text. Errors that are already classified stream errors are
// returned unchanged. Unknown failures become ErrCodeStreamFailed.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	if existing, ok := As(err); ok && isStreamCode(existing.Code) {
		return existing
	}
	if stderrors.Is(err, context.Canceled) {
		return Wrap(err, ErrCodeStreamTransport, "stream cancelled").
			WithUserMessage("The request was cancelled.")
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, ErrCodeStreamTransport, "stream deadline exceeded").
			WithUserMessage("The request timed out.").
			WithRetryable(true)
	}

	text := strings.ToLower(err.Error())
	for _, c := range streamClassifications {
		for _, needle := range c.needles {
			if strings.Contains(text, needle) {
				return Wrap(err, c.code, "stream failed").
					WithUserMessage(c.message).
					WithRetryable(c.retryable)
			}
		}
	}

	return Wrap(err, ErrCodeStreamFailed, "stream failed").
		WithUserMessage("Error: " + err.Error())
}

func isStreamCode(code ErrorCode) bool {
	switch code {
	case ErrCodeStreamAuth, ErrCodeStreamRateLimit, ErrCodeStreamBlocked,
		ErrCodeStreamEndpoint, ErrCodeStreamTransport, ErrCodeStreamMalformed,
		ErrCodeStreamFailed:
		return true
	}
	return false
}
