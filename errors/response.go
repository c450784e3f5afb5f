package errors

import (
	stderrors "errors"
)

// ErrorResponse is the structure a failed call result is rendered to when it
// has to leave the process.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody contains the error details sent to remote callers.
type ErrorBody struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Retryable bool                   `json:"retryable"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// ToResponse converts an AppError to an ErrorResponse for serialization.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{
			Code:      e.Code,
			Message:   e.Message,
			Retryable: e.Retryable,
			Details:   e.Details,
		},
	}
}

// ToResponse renders any error. Errors that are not an AppError are reported
// as INTERNAL_ERROR carrying the original message.
func ToResponse(err error) ErrorResponse {
	if appErr, ok := AsAppError(err); ok {
		return appErr.ToResponse()
	}
	return ErrorResponse{
		Error: ErrorBody{
			Code:    ErrCodeInternal,
			Message: err.Error(),
		},
	}
}

// FromResponse rebuilds an AppError from a response received from a remote pod.
func FromResponse(r ErrorResponse) *AppError {
	return &AppError{
		Code:      r.Error.Code,
		Message:   r.Error.Message,
		Retryable: r.Error.Retryable,
		Details:   r.Error.Details,
	}
}

// Normalize returns err as an AppError. An AppError in the chain is returned
// as is; any other error is rebuilt from its response form and kept as the
// cause.
func Normalize(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return FromResponse(ToResponse(err)).WithCause(err)
}

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err is an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// IsRetryable reports whether err is an AppError marked retryable.
func IsRetryable(err error) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Retryable
}
