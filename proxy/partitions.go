package proxy

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/kbukum/podflow/bean"
	"github.com/kbukum/podflow/errors"
	"github.com/kbukum/podflow/pod"
)

// ReadPartitions reads partitions 0..n-1 of the pod under key concurrently
// and returns the elements of each partition in order. All iterators are
// registered before any is read, so every partition sees every batch meant
// for it. The first read failure cancels the rest.
func ReadPartitions[T any](ctx context.Context, caller Caller, key pod.Key, n int, sampleRate float64, opts ...Option) (out [][]T, err error) {
	if n < 1 {
		return nil, errors.InvalidInput("partitions", fmt.Sprintf("must be at least 1, got %d", n))
	}

	iters := make([]*iterator[T], n)
	defer func() {
		for _, it := range iters {
			if it != nil {
				err = multierr.Append(err, it.Close())
			}
		}
	}()

	for p := 0; p < n; p++ {
		s, err := NewStream[T](caller, key, append(opts[:len(opts):len(opts)], WithPartition(p))...)
		if err != nil {
			return nil, err
		}
		it := s.Iterator(ctx, sampleRate).(*iterator[T])
		if err := it.start(ctx); err != nil {
			return nil, fmt.Errorf("registering partition %d: %w", p, err)
		}
		iters[p] = it
	}

	out = make([][]T, n)
	g, gctx := errgroup.WithContext(ctx)
	for p, it := range iters {
		g.Go(func() error {
			values, err := drain(gctx, it)
			if err != nil {
				return fmt.Errorf("reading partition %d: %w", p, err)
			}
			out[p] = values
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// drain is bean.Drain without the Close, which ReadPartitions does itself.
func drain[T any](ctx context.Context, it bean.Iterator[T]) ([]T, error) {
	var values []T
	for {
		v, ok, err := it.Next(ctx)
		if err != nil {
			return values, err
		}
		if !ok {
			return values, nil
		}
		values = append(values, v)
	}
}
