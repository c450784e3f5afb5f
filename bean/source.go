package bean

import "context"

// FromSlice streams items in order. Each iterator starts from the beginning.
func FromSlice[T any](name string, items []T) Stream[T] {
	return New(name, func(context.Context, float64) Iterator[T] {
		return &sliceIter[T]{items: items}
	})
}

// FromFunc streams whatever iterator factory returns.
func FromFunc[T any](name string, factory Factory[T]) Stream[T] {
	return New(name, factory)
}

// Generate streams fn(0), fn(1), ... fn(n-1). A negative n never ends.
func Generate[T any](name string, n int, fn func(i int) T) Stream[T] {
	return New(name, func(context.Context, float64) Iterator[T] {
		return &genIter[T]{n: n, fn: fn}
	})
}

type sliceIter[T any] struct {
	items []T
	index int
}

func (it *sliceIter[T]) Next(context.Context) (T, bool, error) {
	if it.index >= len(it.items) {
		var zero T
		return zero, false, nil
	}
	v := it.items[it.index]
	it.index++
	return v, true, nil
}

func (it *sliceIter[T]) Close() error { return nil }

type genIter[T any] struct {
	n, i int
	fn   func(int) T
}

func (it *genIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if it.n >= 0 && it.i >= it.n {
		return zero, false, nil
	}
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}
	v := it.fn(it.i)
	it.i++
	return v, true, nil
}

func (it *genIter[T]) Close() error { return nil }
