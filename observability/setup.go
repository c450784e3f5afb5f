package observability

import (
	"context"

	"go.uber.org/multierr"

	"github.com/kbukum/podflow/config"
)

// Setup initializes the tracer and meter providers enabled in cfg and returns
// a function that shuts both down.
func Setup(ctx context.Context, svc *config.ServiceConfig) (func(context.Context) error, error) {
	var shutdowns []func(context.Context) error
	shutdown := func(ctx context.Context) error {
		var err error
		for i := len(shutdowns) - 1; i >= 0; i-- {
			err = multierr.Append(err, shutdowns[i](ctx))
		}
		return err
	}

	obs := svc.Observability
	if obs.Tracing.Enabled {
		tp, err := InitTracer(ctx, TracerConfig{
			ServiceName:    obs.Tracing.ServiceName,
			ServiceVersion: svc.Version,
			Environment:    svc.Environment,
			Endpoint:       obs.Tracing.Endpoint,
			Insecure:       obs.Tracing.Insecure,
			SampleRate:     obs.Tracing.SampleRate,
		})
		if err != nil {
			return shutdown, err
		}
		shutdowns = append(shutdowns, tp.Shutdown)
	}
	if obs.Metrics.Enabled {
		mp, err := InitMeter(ctx, MeterConfig{
			ServiceName:    obs.Metrics.ServiceName,
			ServiceVersion: svc.Version,
			Environment:    svc.Environment,
			Endpoint:       obs.Metrics.Endpoint,
			Insecure:       obs.Metrics.Insecure,
			Interval:       obs.Metrics.Interval,
		})
		if err != nil {
			return shutdown, multierr.Append(err, shutdown(ctx))
		}
		shutdowns = append(shutdowns, mp.Shutdown)
	}
	return shutdown, nil
}
