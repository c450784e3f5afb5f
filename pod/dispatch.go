package pod

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kbukum/podflow/errors"
	"github.com/kbukum/podflow/logger"
)

// Handler performs the operation a Call names.
type Handler func(ctx context.Context, call Call) (any, error)

// Dispatcher routes calls to handlers by method name. The handler table is
// fixed at construction.
type Dispatcher struct {
	pod      string
	handlers map[string]Handler
	slow     time.Duration
	log      *logger.Logger
}

// NewDispatcher wraps every handler with middleware (first is outermost).
// A non-positive slow threshold disables slow-call logging.
func NewDispatcher(pod string, handlers map[string]Handler, slow time.Duration, log *logger.Logger, middleware ...Middleware) *Dispatcher {
	if log == nil {
		log = logger.Get("pod")
	}
	chain := Chain(middleware...)
	table := make(map[string]Handler, len(handlers))
	for name, h := range handlers {
		table[name] = chain(h)
	}
	return &Dispatcher{pod: pod, handlers: table, slow: slow, log: log}
}

// Methods returns the method names in sorted order.
func (d *Dispatcher) Methods() []string {
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the handler for call.Method. It never panics and never
// returns an error directly: every failure, including an unknown method,
// bad parameters and a panicking handler, is carried in the result.
func (d *Dispatcher) Dispatch(ctx context.Context, call Call) CallResult {
	if call.ID != "" {
		ctx = logger.ContextWithCallID(ctx, call.ID)
	}

	h, ok := d.handlers[call.Method]
	if !ok {
		return CallResult{Call: call, Err: errors.MethodNotFound(d.pod, call.Method)}
	}

	start := time.Now()
	value, err := invoke(ctx, h, call)
	invoked := time.Since(start)

	result := CallResult{Call: call, Value: value}
	if err != nil {
		if ie, ok := err.(*InvocationError); ok {
			err = ie.Err
		}
		result = CallResult{Call: call, Err: err}
	}
	wrapped := time.Since(start) - invoked

	if d.slow > 0 && invoked+wrapped > d.slow {
		d.log.WithContext(ctx).Warn("slow call", logger.Fields(
			logger.FieldPod, d.pod,
			logger.FieldMethod, call.Method,
			"invoke_ms", invoked.Milliseconds(),
			"wrap_ms", wrapped.Milliseconds(),
		))
	}
	return result
}

func invoke(ctx context.Context, h Handler, call Call) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			cause, ok := r.(error)
			if !ok {
				cause = fmt.Errorf("%v", r)
			}
			value, err = nil, &InvocationError{Method: call.Method, Err: cause}
		}
	}()
	return h(ctx, call)
}

// Param binds one typed parameter of a call.
type Param[T any] struct {
	Name string
	get  func(Call, string) (T, error)
}

func (p Param[T]) from(c Call) (T, error) { return p.get(c, p.Name) }

// IntParam binds an int parameter.
func IntParam(name string) Param[int] { return Param[int]{Name: name, get: Call.ParamInt} }

// Int64Param binds an int64 parameter.
func Int64Param(name string) Param[int64] { return Param[int64]{Name: name, get: Call.ParamInt64} }

// Float64Param binds a float64 parameter.
func Float64Param(name string) Param[float64] {
	return Param[float64]{Name: name, get: Call.ParamFloat64}
}

// BoolParam binds a bool parameter.
func BoolParam(name string) Param[bool] { return Param[bool]{Name: name, get: Call.ParamBool} }

// StringParam binds a string parameter.
func StringParam(name string) Param[string] {
	return Param[string]{Name: name, get: Call.ParamString}
}

// invocationErr wraps an operation error so that Dispatch can tell it from a
// binding error.
func invocationErr(method string, err error) error {
	if err == nil {
		return nil
	}
	return &InvocationError{Method: method, Err: err}
}

// Action adapts an operation without parameters or result.
func Action(fn func(context.Context) error) Handler {
	return func(ctx context.Context, call Call) (any, error) {
		return nil, invocationErr(call.Method, fn(ctx))
	}
}

// Method0 adapts an operation without parameters.
func Method0[R any](fn func(context.Context) (R, error)) Handler {
	return func(ctx context.Context, call Call) (any, error) {
		r, err := fn(ctx)
		if err != nil {
			return nil, invocationErr(call.Method, err)
		}
		return r, nil
	}
}

// Method1 adapts an operation taking one parameter.
func Method1[A, R any](a Param[A], fn func(context.Context, A) (R, error)) Handler {
	return func(ctx context.Context, call Call) (any, error) {
		av, err := a.from(call)
		if err != nil {
			return nil, err
		}
		r, err := fn(ctx, av)
		if err != nil {
			return nil, invocationErr(call.Method, err)
		}
		return r, nil
	}
}

// Method2 adapts an operation taking two parameters.
func Method2[A, B, R any](a Param[A], b Param[B], fn func(context.Context, A, B) (R, error)) Handler {
	return func(ctx context.Context, call Call) (any, error) {
		av, err := a.from(call)
		if err != nil {
			return nil, err
		}
		bv, err := b.from(call)
		if err != nil {
			return nil, err
		}
		r, err := fn(ctx, av, bv)
		if err != nil {
			return nil, invocationErr(call.Method, err)
		}
		return r, nil
	}
}
