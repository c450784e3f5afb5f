package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Availability errors (retryable)
const (
	// ErrCodeServiceUnavailable indicates the pod host is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// Resource errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeAlreadyExists indicates the resource already exists.
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	// ErrCodeConflict indicates a conflict with the current state of the resource.
	ErrCodeConflict ErrorCode = "CONFLICT"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeInvalidFormat indicates a value has an invalid format.
	ErrCodeInvalidFormat ErrorCode = "INVALID_FORMAT"
)

// Pod protocol errors
const (
	// ErrCodeUnknownIterator indicates an iterator key that was never registered.
	ErrCodeUnknownIterator ErrorCode = "UNKNOWN_ITERATOR"
	// ErrCodeLockTimeout indicates a consumer lock could not be acquired in time.
	ErrCodeLockTimeout ErrorCode = "LOCK_TIMEOUT"
	// ErrCodeMethodNotFound indicates a call addressed an operation the pod does not expose.
	ErrCodeMethodNotFound ErrorCode = "METHOD_NOT_FOUND"
	// ErrCodeInvalidParameter indicates a call parameter is missing.
	ErrCodeInvalidParameter ErrorCode = "INVALID_PARAMETER"
	// ErrCodeUnsupported indicates the pod variant does not support the operation.
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED_OPERATION"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeUpstream indicates the upstream sequence of a pod failed.
	ErrCodeUpstream ErrorCode = "UPSTREAM_ERROR"
)

// Lock timeouts are fatal for the call that hit them; the caller decides
// whether to issue another one.
var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeTimeout:            true,
	ErrCodeInternal:           false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
