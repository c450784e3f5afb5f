package pod

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/podflow/config"
	"github.com/kbukum/podflow/logger"
	"github.com/kbukum/podflow/observability"
)

// Converter turns a list of raw elements into one batch. The slice is reused
// after the call returns, so a converter must copy what it keeps.
type Converter[T any] func(elements []T) any

// CopyConverter is the default converter: a fresh []T per batch.
func CopyConverter[T any](elements []T) any {
	out := make([]T, len(elements))
	copy(out, elements)
	return out
}

// Option configures a pod.
type Option func(*settings)

type settings struct {
	partitionSize int
	converter     any
	lockTimeout   time.Duration
	slowCall      time.Duration
	log           *logger.Logger
	metrics       *observability.PodMetrics
	tracer        trace.Tracer
	middleware    []Middleware
}

func newSettings(opts []Option) settings {
	s := settings{
		partitionSize: config.DefaultPartitionSize,
		lockTimeout:   config.DefaultLockTimeout,
		slowCall:      config.DefaultSlowCallThreshold,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.log == nil {
		s.log = logger.Get("pod")
	}
	return s
}

// dispatchMiddleware returns the configured middleware followed by tracing
// and metrics when enabled.
func (s settings) dispatchMiddleware(pod string) []Middleware {
	mw := append([]Middleware(nil), s.middleware...)
	if s.tracer != nil {
		mw = append(mw, TracingMiddleware(s.tracer, pod))
	}
	if s.metrics != nil {
		mw = append(mw, MetricsMiddleware(s.metrics, pod))
	}
	return mw
}

// WithPartitionSize sets the number of elements per batch. Default 512.
func WithPartitionSize(n int) Option {
	return func(s *settings) { s.partitionSize = n }
}

// WithConverter sets how batches are built. The element type must match the
// pod's, or the constructor fails.
func WithConverter[T any](c Converter[T]) Option {
	return func(s *settings) { s.converter = c }
}

// WithLockTimeout bounds the wait for a consumer's lock. Default 1s.
func WithLockTimeout(d time.Duration) Option {
	return func(s *settings) { s.lockTimeout = d }
}

// WithSlowCallThreshold sets when a call is logged as slow. Zero or less
// disables the log. Default 100ms.
func WithSlowCallThreshold(d time.Duration) Option {
	return func(s *settings) { s.slowCall = d }
}

// WithLogger replaces the "pod" component logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *settings) { s.log = l }
}

// WithMetrics records read and call metrics.
func WithMetrics(m *observability.PodMetrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithTracer opens a span per dispatched call.
func WithTracer(t trace.Tracer) Option {
	return func(s *settings) { s.tracer = t }
}

// WithMiddleware adds dispatch middleware, outermost first.
func WithMiddleware(mw ...Middleware) Option {
	return func(s *settings) { s.middleware = append(s.middleware, mw...) }
}

// FromConfig applies the sizes and timeouts of cfg. Zero fields keep defaults.
func FromConfig(cfg config.PodConfig) Option {
	return func(s *settings) {
		if cfg.PartitionSize != 0 {
			s.partitionSize = cfg.PartitionSize
		}
		if cfg.LockTimeout != 0 {
			s.lockTimeout = cfg.LockTimeout
		}
		if cfg.SlowCallThreshold != 0 {
			s.slowCall = cfg.SlowCallThreshold
		}
	}
}
