package proxy

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/podflow/bean"
	"github.com/kbukum/podflow/config"
	"github.com/kbukum/podflow/errors"
	"github.com/kbukum/podflow/logger"
	"github.com/kbukum/podflow/observability"
	"github.com/kbukum/podflow/pod"
	"github.com/kbukum/podflow/resilience"
)

// Caller delivers a call to the pod under key. The error reports delivery
// failures; operation failures are carried in the result.
type Caller interface {
	Call(ctx context.Context, key pod.Key, call pod.Call) (pod.CallResult, error)
}

// Unpack turns one batch received from a pod into elements.
type Unpack[T any] func(batch any) ([]T, error)

// SliceUnpack expects every batch to be a []T.
func SliceUnpack[T any](batch any) ([]T, error) {
	v, ok := batch.([]T)
	if !ok {
		return nil, errors.InvalidFormat("batch", fmt.Sprintf("%T", v)).
			WithDetail("actual", fmt.Sprintf("%T", batch))
	}
	return v, nil
}

// Option configures a Stream.
type Option func(*options)

type options struct {
	partition int
	buckets   int
	unpack    any
	retry     resilience.RetryConfig
	breaker   *resilience.CircuitBreaker
	tracer    trace.Tracer
	log       *logger.Logger
}

// WithPartition selects the partition to read. Default 0.
func WithPartition(p int) Option {
	return func(o *options) { o.partition = p }
}

// WithBuckets sets how many batches each iteratorNext asks for. Default 4.
func WithBuckets(n int) Option {
	return func(o *options) { o.buckets = n }
}

// WithUnpack replaces SliceUnpack. The element type must match the stream's.
func WithUnpack[T any](fn Unpack[T]) Option {
	return func(o *options) { o.unpack = fn }
}

// WithRetry sets how failed deliveries of iteratorStart and iteratorStop are
// retried. iteratorNext is sent once.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(o *options) { o.retry = cfg }
}

// WithCircuitBreaker guards every delivery with cb.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(o *options) { o.breaker = cb }
}

// WithTracer opens a span per pull.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithLogger replaces the "proxy" component logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// Stream reads a remote pod partition as a local stream.
type Stream[T any] struct {
	caller Caller
	key    pod.Key
	unpack Unpack[T]
	opts   options
}

var _ bean.Stream[int] = (*Stream[int])(nil)

// NewStream returns a stream over the pod under key.
func NewStream[T any](caller Caller, key pod.Key, opts ...Option) (*Stream[T], error) {
	o := options{
		buckets: config.DefaultBuckets,
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Get("proxy")
	}
	if caller == nil {
		return nil, errors.InvalidInput("caller", "is required")
	}
	if o.buckets < 1 {
		return nil, errors.InvalidInput("buckets", fmt.Sprintf("must be at least 1, got %d", o.buckets))
	}

	unpack := Unpack[T](SliceUnpack[T])
	if o.unpack != nil {
		fn, ok := o.unpack.(Unpack[T])
		if !ok {
			return nil, errors.InvalidInput("unpack", fmt.Sprintf("must be a proxy.Unpack[%T]", *new(T)))
		}
		unpack = fn
	}
	return &Stream[T]{caller: caller, key: key, unpack: unpack, opts: o}, nil
}

// Name renders "proxy[<key>#<partition>]".
func (s *Stream[T]) Name() string {
	return fmt.Sprintf("proxy[%s#%d]", s.key, s.opts.partition)
}

// Inputs is empty: the remote pod's inputs are not part of the local graph.
func (s *Stream[T]) Inputs() []bean.Bean { return nil }

// Iterator returns a lazy reader. Nothing is sent before the first Next.
func (s *Stream[T]) Iterator(_ context.Context, sampleRate float64) bean.Iterator[T] {
	return &iterator[T]{stream: s, sampleRate: sampleRate}
}

// deliver sends call through the breaker and turns a failed result into an
// *errors.AppError. Only iteratorStart and iteratorStop are retried: an
// iteratorNext whose reply was lost has already taken its batches, and a
// second attempt would skip them.
func (s *Stream[T]) deliver(ctx context.Context, call pod.Call) (any, error) {
	send := func() (pod.CallResult, error) {
		var res pod.CallResult
		fn := func() error {
			var err error
			res, err = s.caller.Call(ctx, s.key, call)
			return err
		}
		if s.opts.breaker != nil {
			return res, s.opts.breaker.Execute(fn)
		}
		return res, fn()
	}

	var res pod.CallResult
	var err error
	if retriable(call.Method) {
		res, err = resilience.Retry(ctx, s.opts.retry, send)
	} else {
		res, err = send()
	}
	if err != nil {
		s.opts.log.Warn("delivery failed", logger.Fields(
			logger.FieldPod, s.key.String(),
			logger.FieldMethod, call.Method,
			logger.FieldError, err.Error(),
		))
		return nil, err
	}
	if res.Failed() {
		return nil, errors.Normalize(res.Err)
	}
	return res.Value, nil
}

func retriable(method string) bool {
	return method == pod.MethodIteratorStart || method == pod.MethodIteratorStop
}

type iterator[T any] struct {
	stream     *Stream[T]
	sampleRate float64

	started bool
	done    bool
	key     int64
	pending []T
}

func (it *iterator[T]) start(ctx context.Context) error {
	s := it.stream
	v, err := s.deliver(ctx, pod.NewCall(pod.MethodIteratorStart).
		With(pod.ParamSampleRate, it.sampleRate).
		With(pod.ParamPartitionIdx, s.opts.partition))
	if err != nil {
		return err
	}
	key, ok := v.(int64)
	if !ok {
		return errors.InvalidFormat("iterator key", "int64").WithDetail("actual", fmt.Sprintf("%T", v))
	}
	it.key = key
	it.started = true
	s.opts.log.Debug("remote iterator started", logger.Fields(
		logger.FieldPod, s.key.String(),
		logger.FieldPartition, s.opts.partition,
		logger.FieldIteratorKey, key,
	))
	return nil
}

func (it *iterator[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	for len(it.pending) == 0 {
		if it.done {
			return zero, false, nil
		}
		if !it.started {
			if err := it.start(ctx); err != nil {
				return zero, false, err
			}
		}
		if err := it.pull(ctx); err != nil {
			return zero, false, err
		}
	}
	v := it.pending[0]
	it.pending = it.pending[1:]
	return v, true, nil
}

// pull asks for the next batches and appends their elements to pending.
func (it *iterator[T]) pull(ctx context.Context) (err error) {
	s := it.stream
	if s.opts.tracer != nil {
		var span trace.Span
		ctx, span = s.opts.tracer.Start(ctx, observability.SpanProxyPull, trace.WithAttributes(
			attribute.String(observability.AttrPod, s.key.String()),
			attribute.Int(observability.AttrPartition, s.opts.partition),
			attribute.Int64(observability.AttrIteratorKey, it.key),
			attribute.Int(observability.AttrBuckets, s.opts.buckets),
		))
		defer func() {
			observability.SetSpanError(span, err)
			span.End()
		}()
	}

	v, err := s.deliver(ctx, pod.NewCall(pod.MethodIteratorNext).
		With(pod.ParamIteratorKey, it.key).
		With(pod.ParamBuckets, s.opts.buckets))
	if err != nil {
		return err
	}
	if v == nil {
		it.done = true
		return nil
	}
	batches, ok := v.([]any)
	if !ok {
		return errors.InvalidFormat("iteratorNext result", "[]any").WithDetail("actual", fmt.Sprintf("%T", v))
	}
	for _, b := range batches {
		elems, err := s.unpack(b)
		if err != nil {
			return err
		}
		it.pending = append(it.pending, elems...)
	}
	return nil
}

// Close releases the remote registration. It does nothing if Next was never
// called.
func (it *iterator[T]) Close() error {
	it.pending = nil
	it.done = true
	if !it.started {
		return nil
	}
	it.started = false
	s := it.stream
	_, err := s.deliver(context.Background(), pod.NewCall(pod.MethodIteratorStop).With(pod.ParamIteratorKey, it.key))
	return err
}
