package main

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/spf13/cobra"

	"github.com/kbukum/podflow/bean"
	"github.com/kbukum/podflow/bootstrap"
	"github.com/kbukum/podflow/config"
	"github.com/kbukum/podflow/logger"
	"github.com/kbukum/podflow/pod"
	"github.com/kbukum/podflow/proxy"
	"github.com/kbukum/podflow/version"
)

const serviceName = "podflow"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type runOptions struct {
	configFile string
	samples    int
	partitions int
	frequency  float64
}

func newRootCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Run a sample pod graph in one process",
		Version:       version.Get().String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.configFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, opts)
		},
	}
	cmd.SetOut(os.Stdout)

	flags := cmd.Flags()
	flags.StringVar(&opts.configFile, "config", "", "Path to a YAML configuration file")
	flags.IntVarP(&opts.samples, "samples", "n", 44100, "Number of samples the tone source produces")
	flags.IntVarP(&opts.partitions, "partitions", "p", 2, "Partitions of the splitting pod")
	flags.Float64Var(&opts.frequency, "frequency", 440, "Tone frequency in Hz")
	return cmd
}

func loadConfig(file string) (*config.ServiceConfig, error) {
	var lo []config.LoaderOption
	if file != "" {
		lo = append(lo, config.WithConfigFile(file))
	}
	cfg := &config.ServiceConfig{}
	if err := config.LoadConfig(serviceName, cfg, lo...); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = serviceName
	}
	return cfg, nil
}

// graph is the sample topology: one tone source served twice, once split
// over partitions for ReadPartitions and once whole to an output pod.
type graph struct {
	split pod.Key
	whole pod.Key
	out   pod.Key
	peak  float64
}

func run(ctx context.Context, cfg *config.ServiceConfig, opts runOptions) error {
	app, err := bootstrap.NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	g, err := build(app, opts)
	if err != nil {
		return err
	}

	return app.RunTask(ctx, func(ctx context.Context) error {
		if err := app.Host.Drive(ctx); err != nil {
			return err
		}
		parts, err := proxy.ReadPartitions[float64](ctx, app.Host, g.split, opts.partitions, cfg.Pod.SampleRate,
			proxy.WithBuckets(cfg.Pod.DefaultBuckets), proxy.WithTracer(app.Tracer))
		if err != nil {
			return err
		}
		for p, values := range parts {
			app.Logger.Info("partition read", logger.Fields(logger.FieldPartition, p, "samples", len(values)))
		}
		app.Logger.Info("tone written", logger.Fields("peak", g.peak))

		health := app.Host.Health()
		app.Logger.Info("host health", logger.Fields("status", string(health.Status), "pods", len(health.Components)))
		return nil
	})
}

func build(app *bootstrap.App[*config.ServiceConfig], opts runOptions) (*graph, error) {
	cfg := app.Cfg.Pod
	g := &graph{split: pod.Key{ID: 1}, whole: pod.Key{ID: 2}, out: pod.Key{ID: 3}}

	tone := bean.Generate("tone", opts.samples, func(i int) float64 {
		return math.Sin(2 * math.Pi * opts.frequency * float64(i) / cfg.SampleRate)
	})

	split, err := pod.NewSplitting(g.split, tone, opts.partitions, app.PodOptions()...)
	if err != nil {
		return nil, err
	}
	whole, err := pod.NewStreaming(g.whole, tone, app.PodOptions()...)
	if err != nil {
		return nil, err
	}

	remote, err := proxy.NewStream[float64](app.Host, g.whole,
		proxy.WithBuckets(cfg.DefaultBuckets), proxy.WithTracer(app.Tracer))
	if err != nil {
		return nil, err
	}
	sink := bean.ToFunc("peak", remote, func(_ context.Context, v float64) error {
		g.peak = math.Max(g.peak, math.Abs(v))
		return nil
	})
	out, err := pod.NewOutput[float64](g.out, sink, cfg.SampleRate, app.PodOptions()...)
	if err != nil {
		return nil, err
	}

	for _, p := range []pod.Pod{split, whole, out} {
		if err := app.Register(p); err != nil {
			return nil, err
		}
	}
	return g, nil
}
