// Package observability wires OpenTelemetry tracing and metrics for pods.
//
//	shutdown, err := observability.Setup(ctx, &cfg)
//	defer shutdown(ctx)
//
//	metrics, err := observability.NewPodMetrics(observability.Meter(observability.InstrumentationName))
//
// PodMetrics is safe to use as a nil pointer, which records nothing.
package observability
