package bootstrap

import (
	"time"

	"github.com/kbukum/podflow/logger"
)

// Option configures an App.
type Option func(*appOptions)

type appOptions struct {
	logger          *logger.Logger
	gracefulTimeout time.Duration
	observability   bool
}

func resolveOptions(opts []Option) appOptions {
	o := appOptions{gracefulTimeout: 15 * time.Second, observability: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger replaces the logger built from the config's Logging section.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) { o.logger = l }
}

// WithGracefulTimeout bounds the shutdown of observability exporters.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) { o.gracefulTimeout = d }
}

// WithoutObservability skips tracer and meter setup even when enabled in
// the config.
func WithoutObservability() Option {
	return func(o *appOptions) { o.observability = false }
}
