// Package bootstrap wires a podflow process together: configuration,
// logging, tracing and metrics, and a pod host with an ordered lifecycle.
//
//	app, err := bootstrap.NewApp(ctx, &cfg)
//	p, _ := pod.NewSplitting(key, stream, 2, app.PodOptions()...)
//	_ = app.Register(p)
//	err = app.RunTask(ctx, func(ctx context.Context) error {
//		return app.Host.Drive(ctx)
//	})
//
// RunTask cancels the task on SIGINT or SIGTERM and always shuts down: stop
// hooks run first, then the pods close in reverse order, then the exporters
// flush.
package bootstrap
