package bean

import (
	"context"
	"sync"
)

// Writer pushes a stream into a destination one step at a time.
type Writer interface {
	// Write performs one step and reports whether anything was written.
	// false means the input is exhausted and there is nothing left to do.
	Write(ctx context.Context) (bool, error)
	Close() error
}

// Sink is a terminal bean that consumes a stream of T.
type Sink[T any] interface {
	Bean
	Writer(ctx context.Context, sampleRate float64) (Writer, error)
}

// ToFunc returns a sink that hands each value of upstream to fn, one per Write.
func ToFunc[T any](name string, upstream Stream[T], fn func(context.Context, T) error) Sink[T] {
	return &funcSink[T]{name: name, upstream: upstream, fn: fn}
}

type funcSink[T any] struct {
	name     string
	upstream Stream[T]
	fn       func(context.Context, T) error
}

func (s *funcSink[T]) Name() string   { return s.name }
func (s *funcSink[T]) Inputs() []Bean { return []Bean{s.upstream} }

func (s *funcSink[T]) Writer(ctx context.Context, sampleRate float64) (Writer, error) {
	return &funcWriter[T]{source: s.upstream.Iterator(ctx, sampleRate), fn: s.fn}, nil
}

type funcWriter[T any] struct {
	source Iterator[T]
	fn     func(context.Context, T) error
}

func (w *funcWriter[T]) Write(ctx context.Context) (bool, error) {
	v, ok, err := w.source.Next(ctx)
	if err != nil || !ok {
		return false, err
	}
	if err := w.fn(ctx, v); err != nil {
		return false, err
	}
	return true, nil
}

func (w *funcWriter[T]) Close() error { return w.source.Close() }

// Collector is a sink that keeps every value it receives.
type Collector[T any] struct {
	Sink[T]
	mu     sync.Mutex
	values []T
}

// Collect returns a sink gathering upstream into memory.
func Collect[T any](name string, upstream Stream[T]) *Collector[T] {
	c := &Collector[T]{}
	c.Sink = ToFunc(name, upstream, func(_ context.Context, v T) error {
		c.mu.Lock()
		c.values = append(c.values, v)
		c.mu.Unlock()
		return nil
	})
	return c
}

// Values returns a copy of what has been written so far.
func (c *Collector[T]) Values() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.values))
	copy(out, c.values)
	return out
}
