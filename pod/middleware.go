package pod

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/podflow/logger"
	"github.com/kbukum/podflow/observability"
)

// Middleware wraps a Handler with cross-cutting behavior.
type Middleware func(Handler) Handler

// Chain composes middlewares. The first one is outermost:
// Chain(a, b, c)(h) is a(b(c(h))).
func Chain(middlewares ...Middleware) Middleware {
	return func(inner Handler) Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			inner = middlewares[i](inner)
		}
		return inner
	}
}

// TracingMiddleware opens a span per call on tracer.
func TracingMiddleware(tracer trace.Tracer, pod string) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, call Call) (any, error) {
			ctx, span := tracer.Start(ctx, observability.SpanPodCall, trace.WithAttributes(
				attribute.String(observability.AttrPod, pod),
				attribute.String(observability.AttrMethod, call.Method),
				attribute.String(observability.AttrCallID, call.ID),
			))
			defer span.End()

			v, err := next(ctx, call)
			observability.SetSpanError(span, err)
			return v, err
		}
	}
}

// MetricsMiddleware records count, latency and failures of every call.
func MetricsMiddleware(m *observability.PodMetrics, pod string) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, call Call) (any, error) {
			start := time.Now()
			v, err := next(ctx, call)
			m.RecordCall(ctx, pod, call.Method, time.Since(start), err != nil)
			return v, err
		}
	}
}

// LoggingMiddleware logs every call at debug level and failures at error level.
func LoggingMiddleware(log *logger.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, call Call) (any, error) {
			start := time.Now()
			v, err := next(ctx, call)
			fields := logger.Fields(
				logger.FieldMethod, call.Method,
				logger.FieldDuration, time.Since(start).Milliseconds(),
			)
			if err != nil {
				log.WithContext(ctx).Error("call failed", logger.MergeWithError(fields, err))
			} else {
				log.WithContext(ctx).Debug("call ok", fields)
			}
			return v, err
		}
	}
}
