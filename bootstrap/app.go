package bootstrap

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"

	"github.com/kbukum/podflow/host"
	"github.com/kbukum/podflow/logger"
	"github.com/kbukum/podflow/observability"
	"github.com/kbukum/podflow/pod"
	"github.com/kbukum/podflow/version"
)

// App owns the lifecycle of one podflow process.
type App[C Config] struct {
	Name    string
	Version string
	Cfg     C
	Host    *host.Host
	Logger  *logger.Logger
	Metrics *observability.PodMetrics
	Tracer  trace.Tracer

	gracefulTimeout time.Duration
	shutdownObs     func(context.Context) error

	onStart []Hook
	onStop  []Hook
}

// NewApp validates cfg, initializes logging and, when enabled, the tracer
// and meter providers, so that pods built afterwards can be instrumented.
func NewApp[C Config](ctx context.Context, cfg C, opts ...Option) (*App[C], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	svc := cfg.GetServiceConfig()
	if svc.Version == "" {
		svc.Version = version.Get().Version
	}
	o := resolveOptions(opts)

	app := &App[C]{
		Name:            svc.Name,
		Version:         svc.Version,
		Cfg:             cfg,
		gracefulTimeout: o.gracefulTimeout,
		shutdownObs:     func(context.Context) error { return nil },
	}

	if o.logger != nil {
		app.Logger = o.logger
	} else {
		logger.Init(svc.Logging)
		logger.RegisterDefaults("pod", "host", "proxy", "observability")
		app.Logger = logger.GetGlobalLogger()
	}
	app.Host = host.New(svc.Name, svc.Version).WithLogger(app.Logger.WithComponent("host"))

	if o.observability {
		shutdown, err := observability.Setup(ctx, svc)
		if err != nil {
			return nil, fmt.Errorf("observability setup: %w", err)
		}
		app.shutdownObs = shutdown
		if svc.Observability.Tracing.Enabled {
			app.Tracer = observability.Tracer(observability.InstrumentationName)
		}
		if svc.Observability.Metrics.Enabled {
			m, err := observability.NewPodMetrics(observability.Meter(observability.InstrumentationName))
			if err != nil {
				return nil, multierr.Append(err, shutdown(ctx))
			}
			app.Metrics = m
		}
	}
	return app, nil
}

// PodOptions returns the options every pod of this process should be built
// with: sizes and timeouts from the config plus the app's instrumentation.
func (a *App[C]) PodOptions() []pod.Option {
	opts := []pod.Option{
		pod.FromConfig(a.Cfg.GetServiceConfig().Pod),
		pod.WithLogger(a.Logger.WithComponent("pod")),
	}
	if a.Tracer != nil {
		opts = append(opts, pod.WithTracer(a.Tracer))
	}
	if a.Metrics != nil {
		opts = append(opts, pod.WithMetrics(a.Metrics))
	}
	return opts
}

// Register adds a pod to the host.
func (a *App[C]) Register(p pod.Pod) error {
	return a.Host.Register(p)
}

// RunTask starts the pods, runs the start hooks, then task. The task's
// context is cancelled on SIGINT or SIGTERM. Shutdown always follows; a
// task error takes precedence over shutdown errors.
func (a *App[C]) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	a.Logger.Info("starting", logger.Fields("name", a.Name, "version", a.Version))

	taskErr := a.startup(ctx)
	if taskErr == nil {
		taskCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		taskErr = task(taskCtx)
		stop()
	}

	if stopErr := a.stop(ctx); stopErr != nil {
		if taskErr != nil {
			a.Logger.Error("shutdown failed", logger.Fields(logger.FieldError, stopErr.Error()))
			return taskErr
		}
		return stopErr
	}
	return taskErr
}

func (a *App[C]) startup(ctx context.Context) error {
	start := time.Now()
	if err := a.Host.StartAll(ctx); err != nil {
		return fmt.Errorf("starting pods: %w", err)
	}
	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("onStart hook failed: %w", err)
	}
	a.Logger.Info("ready", logger.Fields(
		"pods", len(a.Host.Keys()),
		logger.FieldDuration, time.Since(start).Milliseconds(),
	))
	return nil
}

func (a *App[C]) stop(ctx context.Context) error {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.gracefulTimeout)
	defer cancel()

	err := runHooks(stopCtx, a.onStop)
	err = multierr.Append(err, a.Host.CloseAll())
	err = multierr.Append(err, a.shutdownObs(stopCtx))
	if err == nil {
		a.Logger.Info("stopped")
	}
	return err
}
