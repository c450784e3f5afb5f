package pod

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/kbukum/podflow/bean"
	"github.com/kbukum/podflow/errors"
	"github.com/kbukum/podflow/logger"
)

const testRate = 44100.0

// counted streams 0..n-1 and counts upstream reads and creations.
type counted struct {
	n       int
	reads   atomic.Int64
	creates atomic.Int64
	closes  atomic.Int64
}

func (c *counted) stream() bean.Stream[int] {
	return bean.FromFunc("counted", func(context.Context, float64) bean.Iterator[int] {
		c.creates.Add(1)
		i := 0
		return &closingIter{
			next: func(context.Context) (int, bool, error) {
				c.reads.Add(1)
				if i >= c.n {
					return 0, false, nil
				}
				i++
				return i - 1, true, nil
			},
			close: func() error { c.closes.Add(1); return nil },
		}
	})
}

type closingIter struct {
	next  func(context.Context) (int, bool, error)
	close func() error
}

func (it *closingIter) Next(ctx context.Context) (int, bool, error) { return it.next(ctx) }
func (it *closingIter) Close() error                                { return it.close() }

func quiet() Option { return WithLogger(logger.Nop()) }

// drainPartition pulls a consumer to the end and returns its batches.
func drainPartition(ctx context.Context, p Pod, key int64, buckets int) ([][]int, error) {
	var out [][]int
	for {
		batches, err := p.IteratorNext(ctx, key, buckets)
		if err != nil {
			return out, err
		}
		if batches == nil {
			return out, nil
		}
		for _, b := range batches {
			out = append(out, b.([]int))
		}
	}
}

func TestSplitting_RoundRobinExample(t *testing.T) {
	ctx := context.Background()
	p, err := NewSplitting(Key{ID: 1}, bean.FromSlice("nums", []int{1, 2, 3, 4, 5, 6, 7}), 2,
		WithPartitionSize(2), quiet())
	require.NoError(t, err)
	defer p.Close()

	k0, err := p.IteratorStart(ctx, testRate, 0)
	require.NoError(t, err)
	k1, err := p.IteratorStart(ctx, testRate, 1)
	require.NoError(t, err)
	require.NotEqual(t, k0, k1)

	got, err := p.IteratorNext(ctx, k0, 2)
	require.NoError(t, err)
	assert.Equal(t, []any{[]int{1, 2}, []int{5, 6}}, got)

	got, err = p.IteratorNext(ctx, k1, 2)
	require.NoError(t, err)
	assert.Equal(t, []any{[]int{3, 4}, []int{7}}, got)

	for _, k := range []int64{k0, k1} {
		got, err = p.IteratorNext(ctx, k, 2)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
	assert.True(t, p.Exhausted())
}

func TestSplitting_ConcurrentReassembly(t *testing.T) {
	const n, partitions, size = 1000, 3, 7
	src := &counted{n: n}
	p, err := NewSplitting(Key{ID: 2}, src.stream(), partitions, WithPartitionSize(size), quiet())
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	keys := make([]int64, partitions)
	for i := range keys {
		keys[i], err = p.IteratorStart(ctx, testRate, i)
		require.NoError(t, err)
	}

	results := make([][][]int, partitions)
	g, gctx := errgroup.WithContext(ctx)
	for i := range keys {
		g.Go(func() error {
			var err error
			results[i], err = drainPartition(gctx, p, keys[i], 2)
			return err
		})
	}
	require.NoError(t, g.Wait())

	var got []int
	for round := 0; ; round++ {
		added := false
		for i := 0; i < partitions; i++ {
			if round < len(results[i]) {
				got = append(got, results[i][round]...)
				added = true
			}
		}
		if !added {
			break
		}
	}
	want := make([]int, n)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, got)
	assert.Equal(t, int64(n+1), src.reads.Load(), "upstream must be read once")
	assert.Equal(t, int64(1), src.creates.Load())
}

func TestStreaming_BroadcastsToEveryConsumer(t *testing.T) {
	const n, consumers = 300, 4
	src := &counted{n: n}
	p, err := NewStreaming(Key{ID: 3}, src.stream(), WithPartitionSize(8), quiet())
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	keys := make([]int64, consumers)
	for i := range keys {
		// Partition is ignored by a single-partition pod.
		keys[i], err = p.IteratorStart(ctx, testRate, i*5)
		require.NoError(t, err)
	}

	var mu sync.Mutex
	totals := make(map[int64]int)
	g, gctx := errgroup.WithContext(ctx)
	for _, k := range keys {
		g.Go(func() error {
			batches, err := drainPartition(gctx, p, k, 3)
			if err != nil {
				return err
			}
			var flat []int
			for _, b := range batches {
				flat = append(flat, b...)
			}
			for i, v := range flat {
				if v != i {
					return stderrors.New("out of order element")
				}
			}
			mu.Lock()
			totals[k] = len(flat)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for _, k := range keys {
		assert.Equal(t, n, totals[k])
	}
	assert.Equal(t, int64(n+1), src.reads.Load())
}

func TestBase_ReadBudget(t *testing.T) {
	src := &counted{n: 100}
	p, err := NewStreaming(Key{ID: 4}, src.stream(), WithPartitionSize(2), quiet())
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	assert.Zero(t, src.creates.Load(), "upstream must not exist before a consumer registers")

	k, err := p.IteratorStart(ctx, testRate, 0)
	require.NoError(t, err)
	assert.Zero(t, src.reads.Load(), "registration must not read")

	got, err := p.IteratorNext(ctx, k, 3)
	require.NoError(t, err)
	assert.Equal(t, []any{[]int{0, 1}, []int{2, 3}, []int{4, 5}}, got)
	assert.Equal(t, int64(6), src.reads.Load())

	got, err = p.IteratorNext(ctx, k, 1)
	require.NoError(t, err)
	assert.Equal(t, []any{[]int{6, 7}}, got)
	assert.Equal(t, int64(8), src.reads.Load())
}

func TestBase_SplittingBudgetCoversAllPartitions(t *testing.T) {
	src := &counted{n: 100}
	p, err := NewSplitting(Key{ID: 5}, src.stream(), 3, WithPartitionSize(2), quiet())
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	k, err := p.IteratorStart(ctx, testRate, 1)
	require.NoError(t, err)

	got, err := p.IteratorNext(ctx, k, 2)
	require.NoError(t, err)
	assert.Equal(t, []any{[]int{2, 3}, []int{8, 9}}, got)
	assert.Equal(t, int64(12), src.reads.Load())
}

func TestBase_BucketBoundWithDeepBuffer(t *testing.T) {
	ctx := context.Background()
	src := &counted{n: 8}
	p, err := NewStreaming(Key{ID: 15}, src.stream(), WithPartitionSize(1), quiet())
	require.NoError(t, err)
	defer p.Close()

	kA, err := p.IteratorStart(ctx, testRate, 0)
	require.NoError(t, err)
	kB, err := p.IteratorStart(ctx, testRate, 0)
	require.NoError(t, err)

	// B's read buffers five batches for A as well.
	got, err := p.IteratorNext(ctx, kB, 5)
	require.NoError(t, err)
	require.Len(t, got, 5)
	require.Equal(t, int64(5), src.reads.Load())

	got, err = p.IteratorNext(ctx, kA, 2)
	require.NoError(t, err)
	assert.Equal(t, []any{[]int{0}, []int{1}}, got)

	got, err = p.IteratorNext(ctx, kA, 3)
	require.NoError(t, err)
	assert.Equal(t, []any{[]int{2}, []int{3}, []int{4}}, got)
	assert.Equal(t, int64(5), src.reads.Load(), "buffered batches must be served without reading")
}

func TestBase_LateConsumerMissesEarlierBatches(t *testing.T) {
	ctx := context.Background()
	p, err := NewStreaming(Key{ID: 6}, bean.FromSlice("nums", []int{1, 2, 3, 4}), WithPartitionSize(1), quiet())
	require.NoError(t, err)
	defer p.Close()

	early, err := p.IteratorStart(ctx, testRate, 0)
	require.NoError(t, err)
	got, err := p.IteratorNext(ctx, early, 2)
	require.NoError(t, err)
	assert.Equal(t, []any{[]int{1}, []int{2}}, got)

	late, err := p.IteratorStart(ctx, testRate, 0)
	require.NoError(t, err)
	batches, err := drainPartition(ctx, p, late, 4)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{3}, {4}}, batches)
}

func TestBase_FirstSampleRateWins(t *testing.T) {
	var rates []float64
	src := bean.FromFunc("rates", func(_ context.Context, rate float64) bean.Iterator[int] {
		rates = append(rates, rate)
		return bean.IteratorFunc[int](func(context.Context) (int, bool, error) { return 0, false, nil })
	})
	p, err := NewStreaming(Key{ID: 7}, src, quiet())
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	_, err = p.IteratorStart(ctx, 8000, 0)
	require.NoError(t, err)
	_, err = p.IteratorStart(ctx, 16000, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{8000}, rates)
}

func TestBase_UnknownIterator(t *testing.T) {
	p, err := NewStreaming(Key{ID: 8}, bean.FromSlice("nums", []int{1}), quiet())
	require.NoError(t, err)
	defer p.Close()

	_, err = p.IteratorNext(context.Background(), 42, 1)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeUnknownIterator))

	err = p.IteratorStop(context.Background(), 42)
	assert.True(t, errors.HasCode(err, errors.ErrCodeUnknownIterator))
}

func TestBase_InvalidArguments(t *testing.T) {
	ctx := context.Background()
	p, err := NewSplitting(Key{ID: 9}, bean.FromSlice("nums", []int{1}), 2, quiet())
	require.NoError(t, err)
	defer p.Close()

	_, err = p.IteratorStart(ctx, testRate, 2)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))

	k, err := p.IteratorStart(ctx, testRate, 0)
	require.NoError(t, err)
	_, err = p.IteratorNext(ctx, k, 0)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))
}

func TestBase_LockTimeout(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	src := bean.FromFunc("blocking", func(context.Context, float64) bean.Iterator[int] {
		return bean.IteratorFunc[int](func(context.Context) (int, bool, error) {
			once.Do(func() { close(entered) })
			<-release
			return 0, false, nil
		})
	})
	p, err := NewStreaming(Key{ID: 10}, src, WithLockTimeout(20*time.Millisecond), quiet())
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	k, err := p.IteratorStart(ctx, testRate, 0)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := p.IteratorNext(ctx, k, 1)
		done <- err
	}()
	<-entered

	_, err = p.IteratorNext(ctx, k, 1)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeLockTimeout), "got %v", err)

	close(release)
	require.NoError(t, <-done)
}

func TestBase_StickyUpstreamError(t *testing.T) {
	boom := stderrors.New("disk gone")
	i := 0
	src := bean.FromFunc("failing", func(context.Context, float64) bean.Iterator[int] {
		return bean.IteratorFunc[int](func(context.Context) (int, bool, error) {
			if i == 3 {
				return 0, false, boom
			}
			i++
			return i, true, nil
		})
	})
	p, err := NewStreaming(Key{ID: 11}, src, WithPartitionSize(2), quiet())
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	k, err := p.IteratorStart(ctx, testRate, 0)
	require.NoError(t, err)

	got, err := p.IteratorNext(ctx, k, 4)
	require.NoError(t, err, "buffered batches come before the failure")
	assert.Equal(t, []any{[]int{1, 2}, []int{3}}, got)

	for range 2 {
		_, err = p.IteratorNext(ctx, k, 4)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeUpstream))
		assert.ErrorIs(t, err, boom)
	}
	assert.ErrorIs(t, p.Err(), boom)
}

func TestBase_IteratorStop(t *testing.T) {
	ctx := context.Background()
	p, err := NewStreaming(Key{ID: 12}, bean.FromSlice("nums", []int{1, 2, 3}), WithPartitionSize(1), quiet())
	require.NoError(t, err)
	defer p.Close()

	k, err := p.IteratorStart(ctx, testRate, 0)
	require.NoError(t, err)
	other, err := p.IteratorStart(ctx, testRate, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Consumers())

	require.NoError(t, p.IteratorStop(ctx, k))
	assert.Equal(t, 1, p.Consumers())
	_, err = p.IteratorNext(ctx, k, 1)
	assert.True(t, errors.HasCode(err, errors.ErrCodeUnknownIterator))

	batches, err := drainPartition(ctx, p, other, 1)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{1}, {2}, {3}}, batches)
}

func TestBase_Close(t *testing.T) {
	src := &counted{n: 10}
	p, err := NewStreaming(Key{ID: 13}, src.stream(), quiet())
	require.NoError(t, err)

	ctx := context.Background()
	k, err := p.IteratorStart(ctx, testRate, 0)
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, int64(1), src.closes.Load())

	_, err = p.IteratorNext(ctx, k, 1)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConflict))
	_, err = p.IteratorStart(ctx, testRate, 0)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConflict))
	assert.True(t, errors.HasCode(p.Start(ctx), errors.ErrCodeConflict))
}

func TestBase_CloseDuringIteratorNext(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var reads atomic.Int64
	src := bean.FromFunc("blocking", func(context.Context, float64) bean.Iterator[int] {
		return bean.IteratorFunc[int](func(context.Context) (int, bool, error) {
			if reads.Add(1) == 1 {
				close(entered)
				<-release
				return 0, false, nil
			}
			return 1, true, nil
		})
	})
	p, err := NewStreaming(Key{ID: 16}, src, WithLockTimeout(5*time.Second), quiet())
	require.NoError(t, err)

	ctx := context.Background()
	k, err := p.IteratorStart(ctx, testRate, 0)
	require.NoError(t, err)

	results := make(chan error, 2)
	next := func() {
		batches, err := p.IteratorNext(ctx, k, 1)
		if err == nil && batches == nil {
			err = stderrors.New("closed pod reported exhaustion")
		}
		results <- err
	}
	go next()
	<-entered
	go next()

	closed := make(chan error, 1)
	go func() { closed <- p.Close() }()
	require.Eventually(t, func() bool {
		return errors.HasCode(p.Start(ctx), errors.ErrCodeConflict)
	}, time.Second, time.Millisecond)
	close(release)

	for range 2 {
		err := <-results
		assert.True(t, errors.HasCode(err, errors.ErrCodeConflict), "got %v", err)
	}
	require.NoError(t, <-closed)
	assert.Equal(t, int64(1), reads.Load(), "the upstream must not be read after Close")
}

func TestBase_CloseWithoutConsumers(t *testing.T) {
	src := &counted{n: 10}
	p, err := NewStreaming(Key{ID: 14}, src.stream(), quiet())
	require.NoError(t, err)
	require.NoError(t, p.Close())
	assert.Zero(t, src.creates.Load())
}

func TestBase_CustomConverter(t *testing.T) {
	sum := func(xs []int) any {
		total := 0
		for _, x := range xs {
			total += x
		}
		return total
	}
	p, err := NewStreaming(Key{ID: 15}, bean.FromSlice("nums", []int{1, 2, 3, 4, 5}),
		WithPartitionSize(2), WithConverter[int](sum), quiet())
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	k, err := p.IteratorStart(ctx, testRate, 0)
	require.NoError(t, err)
	got, err := p.IteratorNext(ctx, k, 5)
	require.NoError(t, err)
	assert.Equal(t, []any{3, 7, 5}, got)
}

func TestBase_ConstructorValidation(t *testing.T) {
	_, err := NewStreaming(Key{ID: 16}, bean.FromSlice("nums", []int{1}), WithConverter[string](CopyConverter[string]), quiet())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "converter")

	_, err = NewStreaming(Key{ID: 16}, bean.FromSlice("nums", []int{1}), WithPartitionSize(0), quiet())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "partition_size")

	_, err = NewStreaming[int](Key{ID: 16}, nil, quiet())
	require.Error(t, err)

	_, err = NewSplitting(Key{ID: 16}, bean.FromSlice("nums", []int{1}), 1, quiet())
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))
}

func TestBase_Metadata(t *testing.T) {
	src := bean.FromSlice("nums", []int{1})
	p, err := NewSplitting(Key{ID: 17, Partition: 1}, src, 4, WithPartitionSize(32), quiet())
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, "SplittingPod[17:1]", p.String())
	assert.Equal(t, 4, p.PartitionCount())
	assert.Equal(t, 32, p.PartitionSize())
	assert.Equal(t, []bean.Bean{src}, p.Inputs())
	assert.True(t, p.IsFinished())
	assert.NoError(t, p.Start(context.Background()))
}

func sliceStream(xs ...int) bean.Stream[int] { return bean.FromSlice("nums", xs) }
