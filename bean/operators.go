package bean

import (
	"context"

	"go.uber.org/multierr"
)

// Map transforms each value with fn.
func Map[I, O any](name string, upstream Stream[I], fn func(context.Context, I) (O, error)) Stream[O] {
	return New(name, func(ctx context.Context, sampleRate float64) Iterator[O] {
		return &mapIter[I, O]{source: upstream.Iterator(ctx, sampleRate), fn: fn}
	}, upstream)
}

// Filter keeps the values keep accepts.
func Filter[T any](name string, upstream Stream[T], keep func(T) bool) Stream[T] {
	return New(name, func(ctx context.Context, sampleRate float64) Iterator[T] {
		return &filterIter[T]{source: upstream.Iterator(ctx, sampleRate), keep: keep}
	}, upstream)
}

// Take ends the stream after n values. The upstream is not read past n.
func Take[T any](name string, upstream Stream[T], n int) Stream[T] {
	return New(name, func(ctx context.Context, sampleRate float64) Iterator[T] {
		return &takeIter[T]{source: upstream.Iterator(ctx, sampleRate), left: n}
	}, upstream)
}

// Window groups values into windows of size elements, starting a new window
// every step elements. step == size gives tumbling windows, step < size
// overlapping ones. A trailing window holding values not yet emitted is
// emitted short when the upstream ends.
func Window[T any](name string, upstream Stream[T], size, step int) Stream[[]T] {
	if size < 1 {
		size = 1
	}
	if step < 1 {
		step = size
	}
	return New(name, func(ctx context.Context, sampleRate float64) Iterator[[]T] {
		return &windowIter[T]{source: upstream.Iterator(ctx, sampleRate), size: size, step: step}
	}, upstream)
}

// Concat yields every value of each stream in turn. A stream's iterator is
// created only when the previous one is exhausted.
func Concat[T any](name string, streams ...Stream[T]) Stream[T] {
	inputs := make([]Bean, len(streams))
	for i, s := range streams {
		inputs[i] = s
	}
	return New(name, func(ctx context.Context, sampleRate float64) Iterator[T] {
		return &concatIter[T]{streams: streams, ctx: ctx, sampleRate: sampleRate}
	}, inputs...)
}

type mapIter[I, O any] struct {
	source Iterator[I]
	fn     func(context.Context, I) (O, error)
}

func (it *mapIter[I, O]) Next(ctx context.Context) (O, bool, error) {
	var zero O
	v, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return zero, false, err
	}
	out, err := it.fn(ctx, v)
	if err != nil {
		return zero, false, err
	}
	return out, true, nil
}

func (it *mapIter[I, O]) Close() error { return it.source.Close() }

type filterIter[T any] struct {
	source Iterator[T]
	keep   func(T) bool
}

func (it *filterIter[T]) Next(ctx context.Context) (T, bool, error) {
	for {
		v, ok, err := it.source.Next(ctx)
		if err != nil || !ok {
			return v, false, err
		}
		if it.keep(v) {
			return v, true, nil
		}
	}
}

func (it *filterIter[T]) Close() error { return it.source.Close() }

type takeIter[T any] struct {
	source Iterator[T]
	left   int
}

func (it *takeIter[T]) Next(ctx context.Context) (T, bool, error) {
	if it.left <= 0 {
		var zero T
		return zero, false, nil
	}
	v, ok, err := it.source.Next(ctx)
	if ok {
		it.left--
	}
	return v, ok, err
}

func (it *takeIter[T]) Close() error { return it.source.Close() }

type windowIter[T any] struct {
	source     Iterator[T]
	size, step int
	buf        []T
	fresh      int // values in buf not part of an emitted window
	skip       int // values to discard when step > size
	done       bool
}

func (it *windowIter[T]) Next(ctx context.Context) ([]T, bool, error) {
	for !it.done && len(it.buf) < it.size {
		v, ok, err := it.source.Next(ctx)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			it.done = true
			break
		}
		if it.skip > 0 {
			it.skip--
			continue
		}
		it.buf = append(it.buf, v)
		it.fresh++
	}

	if it.fresh == 0 {
		return nil, false, nil
	}

	out := make([]T, len(it.buf))
	copy(out, it.buf)
	it.fresh = 0

	if it.step >= len(it.buf) {
		it.skip = it.step - len(it.buf)
		it.buf = it.buf[:0]
	} else {
		it.buf = append(it.buf[:0], it.buf[it.step:]...)
	}
	return out, true, nil
}

func (it *windowIter[T]) Close() error { return it.source.Close() }

type concatIter[T any] struct {
	streams    []Stream[T]
	ctx        context.Context
	sampleRate float64
	current    Iterator[T]
	index      int
}

func (it *concatIter[T]) Next(ctx context.Context) (T, bool, error) {
	for it.index < len(it.streams) {
		if it.current == nil {
			it.current = it.streams[it.index].Iterator(it.ctx, it.sampleRate)
		}
		v, ok, err := it.current.Next(ctx)
		if err != nil {
			return v, false, err
		}
		if ok {
			return v, true, nil
		}
		if err := it.current.Close(); err != nil {
			return v, false, err
		}
		it.current = nil
		it.index++
	}
	var zero T
	return zero, false, nil
}

func (it *concatIter[T]) Close() error {
	var err error
	if it.current != nil {
		err = multierr.Append(err, it.current.Close())
		it.current = nil
	}
	it.index = len(it.streams)
	return err
}
