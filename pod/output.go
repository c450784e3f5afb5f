package pod

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kbukum/podflow/bean"
	"github.com/kbukum/podflow/errors"
	"github.com/kbukum/podflow/logger"
)

// OutputState is the lifecycle state of an output pod.
type OutputState int32

const (
	OutputNotStarted OutputState = iota
	OutputRunning
	OutputFinished
)

func (s OutputState) String() string {
	switch s {
	case OutputNotStarted:
		return "not-started"
	case OutputRunning:
		return "running"
	case OutputFinished:
		return "finished"
	default:
		return "unknown"
	}
}

const kindOutput = "StreamOutputPod"

// Output is a push pod writing a stream into a sink. A scheduler calls Tick
// until it returns false. It cannot be pulled from.
type Output[T any] struct {
	key        Key
	sink       bean.Sink[T]
	sampleRate float64
	log        *logger.Logger
	dispatcher *Dispatcher

	state  atomic.Int32
	mu     sync.Mutex
	writer bean.Writer
}

var _ Ticker = (*Output[int])(nil)

// NewOutput creates an output pod. Only the logging, tracing, metrics,
// middleware and slow-call options apply.
func NewOutput[T any](key Key, sink bean.Sink[T], sampleRate float64, opts ...Option) (*Output[T], error) {
	if sink == nil {
		return nil, errors.InvalidInput("sink", "is required")
	}
	s := newSettings(opts)
	o := &Output[T]{
		key:        key,
		sink:       sink,
		sampleRate: sampleRate,
		log:        s.log.WithPod(key.String()),
	}
	o.dispatcher = NewDispatcher(o.String(), map[string]Handler{
		MethodStart:      Action(o.Start),
		MethodTick:       Method0(o.Tick),
		MethodIsFinished: Method0(func(context.Context) (bool, error) { return o.IsFinished(), nil }),
		MethodInputs:     Method0(func(context.Context) ([]string, error) { return inputNames(o.Inputs()), nil }),
		MethodClose:      Action(func(context.Context) error { return o.Close() }),
	}, s.slowCall, o.log, s.dispatchMiddleware(key.String())...)
	return o, nil
}

func (o *Output[T]) Key() Key { return o.key }

// Inputs returns the sink bean.
func (o *Output[T]) Inputs() []bean.Bean { return []bean.Bean{o.sink} }

func (o *Output[T]) String() string {
	return fmt.Sprintf("%s[%s]", kindOutput, o.key)
}

// State returns the current lifecycle state.
func (o *Output[T]) State() OutputState { return OutputState(o.state.Load()) }

// Start opens the sink's writer and moves to running.
func (o *Output[T]) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if st := o.State(); st != OutputNotStarted {
		return errors.Conflict(fmt.Sprintf("%s is %s", o, st))
	}
	w, err := o.sink.Writer(context.WithoutCancel(ctx), o.sampleRate)
	if err != nil {
		return fmt.Errorf("opening writer of %s: %w", o, err)
	}
	o.writer = w
	o.state.Store(int32(OutputRunning))
	o.log.Debug("output started", logger.Fields("sink", o.sink.Name(), "sample_rate", o.sampleRate))
	return nil
}

// Tick writes one step. It returns true while there is more to write. When
// the writer runs dry or fails, the pod finishes and every later Tick
// returns false.
func (o *Output[T]) Tick(ctx context.Context) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.State() {
	case OutputNotStarted:
		return false, errors.Conflict(fmt.Sprintf("%s ticked before start", o))
	case OutputFinished:
		return false, nil
	}

	more, err := o.writer.Write(ctx)
	if err != nil {
		o.log.Error("write failed", logger.ErrorFields("tick", err))
		_ = o.finish()
		return false, err
	}
	if !more {
		return false, o.finish()
	}
	return true, nil
}

// IsFinished reports whether the pod has finished or been closed.
func (o *Output[T]) IsFinished() bool { return o.State() == OutputFinished }

// finish moves to finished and closes the writer once. Callers hold mu.
func (o *Output[T]) finish() error {
	o.state.Store(int32(OutputFinished))
	if o.writer == nil {
		return nil
	}
	w := o.writer
	o.writer = nil
	if err := w.Close(); err != nil {
		o.log.Warn("closing writer failed", logger.ErrorFields("close", err))
		return err
	}
	o.log.Debug("output finished")
	return nil
}

// Close finishes the pod. It is safe to call more than once.
func (o *Output[T]) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.finish()
}

// IteratorStart is not supported: an output pod is a terminal node.
func (o *Output[T]) IteratorStart(context.Context, float64, int) (int64, error) {
	return 0, errors.Unsupported(o.String(), MethodIteratorStart)
}

// IteratorNext is not supported: an output pod is a terminal node.
func (o *Output[T]) IteratorNext(context.Context, int64, int) ([]any, error) {
	return nil, errors.Unsupported(o.String(), MethodIteratorNext)
}

// Call dispatches call to the pod's operations.
func (o *Output[T]) Call(ctx context.Context, call Call) CallResult {
	return o.dispatcher.Dispatch(ctx, call)
}
