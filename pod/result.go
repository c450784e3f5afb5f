package pod

import (
	"encoding/json"
	"fmt"

	"github.com/kbukum/podflow/errors"
)

// CallResult is the outcome of a Call: a value or the error the operation
// failed with, plus the call for correlation.
type CallResult struct {
	Call  Call
	Value any
	Err   error
}

// OK reports whether the call succeeded.
func (r CallResult) OK() bool { return r.Err == nil }

// Failed reports whether the call failed.
func (r CallResult) Failed() bool { return r.Err != nil }

// Unwrap returns the value or the captured error.
func (r CallResult) Unwrap() (any, error) { return r.Value, r.Err }

func (r CallResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s failed: %v", r.Call.Method, r.Err)
	}
	return fmt.Sprintf("%s ok: %v", r.Call.Method, r.Value)
}

// Response is the form a CallResult takes when it leaves the process. The call
// travels in its String form and a failure as an errors.ErrorBody, so the code
// and retryable flag survive the trip.
type Response struct {
	Call  string            `json:"call"`
	Value any               `json:"value,omitempty"`
	Error *errors.ErrorBody `json:"error,omitempty"`
}

// Response renders r for a transport.
func (r CallResult) Response() Response {
	resp := Response{Call: r.Call.String(), Value: r.Value}
	if r.Err != nil {
		body := errors.ToResponse(r.Err).Error
		resp.Error = &body
		resp.Value = nil
	}
	return resp
}

// ResultFromResponse rebuilds a CallResult. A failure comes back as an
// *errors.AppError; the original error chain does not cross the boundary.
func ResultFromResponse(resp Response) (CallResult, error) {
	call, err := ParseCall(resp.Call)
	if err != nil {
		return CallResult{}, err
	}
	if resp.Error != nil {
		return CallResult{Call: call, Err: errors.FromResponse(errors.ErrorResponse{Error: *resp.Error})}, nil
	}
	return CallResult{Call: call, Value: resp.Value}, nil
}

func (r CallResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Response())
}

// UnmarshalJSON decodes the Response form. Values come back as generic JSON
// values (numbers as float64).
func (r *CallResult) UnmarshalJSON(data []byte) error {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return err
	}
	res, err := ResultFromResponse(resp)
	if err != nil {
		return err
	}
	*r = res
	return nil
}

// ResultValue returns the value of r as T. A failed result returns its error;
// a nil value returns the zero T.
func ResultValue[T any](r CallResult) (T, error) {
	var zero T
	if r.Err != nil {
		return zero, r.Err
	}
	if r.Value == nil {
		return zero, nil
	}
	v, ok := r.Value.(T)
	if !ok {
		return zero, errors.InvalidFormat(r.Call.Method+" result", fmt.Sprintf("%T", zero)).
			WithDetail("actual", fmt.Sprintf("%T", r.Value))
	}
	return v, nil
}

// InvocationError wraps the error an operation returned. Dispatch strips one
// level of it so the result carries the operation's own error.
type InvocationError struct {
	Method string
	Err    error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoking %s: %v", e.Method, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }
