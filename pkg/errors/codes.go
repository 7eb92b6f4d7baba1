package errors

// ErrorCode identifies a failure class. Codes are stable strings so they
// can be logged, matched and mapped to exit statuses.
type ErrorCode string

const (
	ErrCodeConfigLoad    ErrorCode = "CONFIG_LOAD"
	ErrCodeConfigParse   ErrorCode = "CONFIG_PARSE"
	ErrCodeConfigInvalid ErrorCode = "CONFIG_INVALID"

	ErrCodeStorageRead    ErrorCode = "STORAGE_READ"
	ErrCodeStorageWrite   ErrorCode = "STORAGE_WRITE"
	ErrCodeStorageCorrupt ErrorCode = "STORAGE_CORRUPT"
	ErrCodeNotFound       ErrorCode = "DOCUMENT_NOT_FOUND"

	ErrCodeStreamAuth      ErrorCode = "STREAM_AUTH"
	ErrCodeStreamRateLimit ErrorCode = "STREAM_RATE_LIMIT"
	ErrCodeStreamBlocked   ErrorCode = "STREAM_BLOCKED"
	ErrCodeStreamEndpoint  ErrorCode = "STREAM_ENDPOINT_NOT_FOUND"
	ErrCodeStreamTransport ErrorCode = "STREAM_TRANSPORT"
	ErrCodeStreamMalformed ErrorCode = "STREAM_MALFORMED"
	ErrCodeStreamFailed    ErrorCode = "STREAM_FAILED"

	ErrCodeRewriteBusy     ErrorCode = "REWRITE_BUSY"
	ErrCodeRewriteConflict ErrorCode = "REWRITE_CONFLICT"
	ErrCodeNoSelection     ErrorCode = "NO_SELECTION"
	ErrCodeGenerationBusy  ErrorCode = "GENERATION_BUSY"

	ErrCodeInternal     ErrorCode = "INTERNAL"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// IsCode reports whether err or anything it wraps carries code.
func IsCode(err error, code ErrorCode) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

// GetCode returns the code of the first *Error in err's chain. Foreign
// errors report ErrCodeInternal and nil reports "".
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.Code
	}
	return ErrCodeInternal
}

// IsRetryable reports whether err is a retryable *Error.
func IsRetryable(err error) bool {
	e, ok := As(err)
	return ok && e.Retryable
}
