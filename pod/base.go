package pod

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/podflow/bean"
	"github.com/kbukum/podflow/errors"
	"github.com/kbukum/podflow/logger"
	"github.com/kbukum/podflow/resilience"
	"github.com/kbukum/podflow/validation"
)

// Base is a pull pod over one upstream stream. The upstream is read by a
// single reader at a time and at most once in total: every element read is
// packed into a batch of partitionSize elements, and consecutive batches go
// round-robin to the partitions. A batch is appended to the buffer of every
// consumer registered for its partition, or of every consumer when there is
// only one partition.
//
// Locks are taken in one order: consumer lock, then upstream lock.
type Base[T any] struct {
	kind           string
	key            Key
	upstream       bean.Stream[T]
	partitionCount int
	partitionSize  int
	convert        Converter[T]
	lockTimeout    time.Duration
	settings       settings
	log            *logger.Logger
	dispatcher     *Dispatcher

	nextKey atomic.Int64

	consumersMu sync.RWMutex
	consumers   map[int64]*consumer

	// upstreamMu guards everything below.
	upstreamMu   sync.Mutex
	once         sync.Once
	source       bean.Iterator[T]
	sourceCtx    context.Context
	exhausted    bool
	failed       error
	partitionIdx int
	work         []T

	closed atomic.Bool
}

func newBase[T any](kind string, key Key, upstream bean.Stream[T], partitionCount int, opts []Option) (*Base[T], error) {
	s := newSettings(opts)

	convert := Converter[T](CopyConverter[T])
	convertOK := true
	if s.converter != nil {
		convert, convertOK = s.converter.(Converter[T])
	}

	if err := validation.New().
		NotNil("upstream", upstream).
		Min("partition_count", partitionCount, 1).
		Min("partition_size", s.partitionSize, 1).
		Positive("lock_timeout", s.lockTimeout).
		Custom(convertOK, "converter", fmt.Sprintf("must be a pod.Converter[%T]", *new(T))).
		Validate(); err != nil {
		return nil, err
	}

	b := &Base[T]{
		kind:           kind,
		key:            key,
		upstream:       upstream,
		partitionCount: partitionCount,
		partitionSize:  s.partitionSize,
		convert:        convert,
		lockTimeout:    s.lockTimeout,
		settings:       s,
		consumers:      make(map[int64]*consumer),
	}
	b.log = s.log.WithPod(key.String())
	b.dispatcher = NewDispatcher(b.String(), b.handlers(), s.slowCall, b.log, s.dispatchMiddleware(key.String())...)
	return b, nil
}

func (b *Base[T]) handlers() map[string]Handler {
	return map[string]Handler{
		MethodIteratorStart: Method2(Float64Param(ParamSampleRate), IntParam(ParamPartitionIdx), b.IteratorStart),
		MethodIteratorNext: Method2(Int64Param(ParamIteratorKey), IntParam(ParamBuckets),
			func(ctx context.Context, key int64, buckets int) (any, error) {
				batches, err := b.IteratorNext(ctx, key, buckets)
				if err != nil || batches == nil {
					return nil, err
				}
				return batches, nil
			}),
		MethodIteratorStop: Method1(Int64Param(ParamIteratorKey), func(ctx context.Context, key int64) (any, error) {
			return nil, b.IteratorStop(ctx, key)
		}),
		MethodIsFinished: Method0(func(context.Context) (bool, error) { return b.IsFinished(), nil }),
		MethodInputs:     Method0(func(context.Context) ([]string, error) { return inputNames(b.Inputs()), nil }),
		MethodStart:      Action(b.Start),
		MethodClose:      Action(func(context.Context) error { return b.Close() }),
	}
}

// Key returns the pod address.
func (b *Base[T]) Key() Key { return b.key }

// Inputs returns the upstream bean.
func (b *Base[T]) Inputs() []bean.Bean { return []bean.Bean{b.upstream} }

// PartitionCount returns the number of partitions batches are spread over.
func (b *Base[T]) PartitionCount() int { return b.partitionCount }

// PartitionSize returns the number of elements per batch.
func (b *Base[T]) PartitionSize() int { return b.partitionSize }

func (b *Base[T]) String() string {
	return fmt.Sprintf("%s[%s]", b.kind, b.key)
}

// Start is a no-op apart from rejecting closed pods. The upstream is created
// by the first IteratorStart.
func (b *Base[T]) Start(context.Context) error {
	if b.closed.Load() {
		return errors.Conflict(b.String() + " is closed")
	}
	b.log.Debug("pod started", logger.Fields("partitions", b.partitionCount, "partition_size", b.partitionSize))
	return nil
}

// IteratorStart registers a consumer of partition and returns its key. The
// first registration creates the upstream iterator with its sampleRate;
// later sample rates are ignored. A consumer sees only batches produced
// after it registered.
func (b *Base[T]) IteratorStart(ctx context.Context, sampleRate float64, partition int) (int64, error) {
	if b.closed.Load() {
		return 0, errors.Conflict(b.String() + " is closed")
	}
	if b.partitionCount > 1 && (partition < 0 || partition >= b.partitionCount) {
		return 0, errors.InvalidInput("partitionIdx",
			fmt.Sprintf("partition %d is out of range [0, %d)", partition, b.partitionCount))
	}

	key := b.nextKey.Add(1)
	c := newConsumer(key, partition, resilience.NewBulkhead(resilience.BulkheadConfig{
		Name:          fmt.Sprintf("%s#%d", b.key, key),
		MaxConcurrent: 1,
		MaxWait:       b.lockTimeout,
	}))

	b.consumersMu.Lock()
	b.consumers[key] = c
	b.consumersMu.Unlock()

	b.once.Do(func() {
		b.upstreamMu.Lock()
		defer b.upstreamMu.Unlock()
		if b.closed.Load() {
			return
		}
		b.sourceCtx = context.WithoutCancel(ctx)
		b.source = b.upstream.Iterator(b.sourceCtx, sampleRate)
		b.work = make([]T, 0, b.partitionSize)
		b.log.Debug("upstream created", logger.Fields("bean", b.upstream.Name(), "sample_rate", sampleRate))
	})

	b.log.Debug("iterator registered", logger.Fields(
		logger.FieldIteratorKey, key,
		logger.FieldPartition, partition,
	))
	return key, nil
}

// IteratorNext returns up to buckets batches for the consumer, reading the
// upstream first when fewer are buffered. It returns nil, nil once the
// buffer is empty and the upstream is exhausted. If the upstream failed, the
// failure is returned instead of nil, to this and every later caller.
func (b *Base[T]) IteratorNext(ctx context.Context, iteratorKey int64, buckets int) ([]any, error) {
	start := time.Now()
	defer func() { b.settings.metrics.RecordIteratorNext(ctx, b.key.String(), time.Since(start)) }()

	if b.closed.Load() {
		return nil, errors.Conflict(b.String() + " is closed")
	}
	if buckets < 1 {
		return nil, errors.InvalidInput(ParamBuckets, fmt.Sprintf("must be at least 1, got %d", buckets))
	}
	c, err := b.consumer(iteratorKey)
	if err != nil {
		if b.closed.Load() {
			return nil, errors.Conflict(b.String() + " is closed")
		}
		return nil, err
	}

	batches, err := resilience.ExecuteWithResult(ctx, c.lock, func() ([]any, error) {
		var failed error
		if c.size() < buckets {
			failed = b.replenish(ctx, c, buckets)
		}
		batches := c.take(buckets)
		if b.closed.Load() {
			return nil, errors.Conflict(b.String() + " is closed")
		}
		if batches == nil && failed != nil {
			return nil, failed
		}
		return batches, nil
	})
	if stderrors.Is(err, resilience.ErrBulkheadTimeout) || stderrors.Is(err, resilience.ErrBulkheadFull) {
		return nil, errors.LockTimeout(b.String(), iteratorKey, c.lock.MaxWait())
	}
	return batches, err
}

// replenish reads enough of the upstream to give c the missing batches. It
// returns the sticky upstream failure, if any.
func (b *Base[T]) replenish(ctx context.Context, c *consumer, buckets int) error {
	b.upstreamMu.Lock()
	defer b.upstreamMu.Unlock()

	if b.source == nil || b.closed.Load() {
		return errors.Conflict(b.String() + " is closed")
	}
	missing := buckets - c.size()
	if missing <= 0 || b.exhausted || b.failed != nil {
		return b.failed
	}

	budget := missing * b.partitionSize * b.partitionCount
	read, produced := 0, 0
	for read < budget {
		v, ok, err := b.source.Next(b.sourceCtx)
		if err != nil {
			b.failed = errors.Upstream(b.String(), err)
			b.log.Error("upstream failed", logger.ErrorFields("iteratorNext", err))
			break
		}
		if !ok {
			b.exhausted = true
			b.log.Debug("upstream exhausted")
			break
		}
		b.work = append(b.work, v)
		read++
		if len(b.work) == b.partitionSize {
			b.emit()
			produced++
		}
	}
	if len(b.work) > 0 && (b.exhausted || b.failed != nil) {
		b.emit()
		produced++
	}

	b.settings.metrics.RecordRead(ctx, b.key.String(), read, produced)
	return b.failed
}

// emit converts the working list into a batch, hands it to the consumers of
// the current partition and advances the partition cursor. Callers hold
// upstreamMu.
func (b *Base[T]) emit() {
	batch := b.convert(b.work)
	b.work = b.work[:0]

	b.consumersMu.RLock()
	for _, c := range b.consumers {
		if b.partitionCount == 1 || c.partition == b.partitionIdx {
			c.push(batch)
		}
	}
	b.consumersMu.RUnlock()

	b.partitionIdx = (b.partitionIdx + 1) % b.partitionCount
}

// IteratorStop drops a consumer registration and its buffered batches.
func (b *Base[T]) IteratorStop(_ context.Context, iteratorKey int64) error {
	b.consumersMu.Lock()
	c, ok := b.consumers[iteratorKey]
	delete(b.consumers, iteratorKey)
	b.consumersMu.Unlock()

	if !ok {
		return errors.UnknownIterator(b.String(), iteratorKey)
	}
	c.clear()
	b.log.Debug("iterator stopped", logger.Fields(logger.FieldIteratorKey, iteratorKey))
	return nil
}

func (b *Base[T]) consumer(key int64) (*consumer, error) {
	b.consumersMu.RLock()
	c, ok := b.consumers[key]
	b.consumersMu.RUnlock()
	if !ok {
		return nil, errors.UnknownIterator(b.String(), key)
	}
	return c, nil
}

// Consumers returns the number of registered consumers.
func (b *Base[T]) Consumers() int {
	b.consumersMu.RLock()
	defer b.consumersMu.RUnlock()
	return len(b.consumers)
}

// IsFinished always reports true: a pull pod is driven entirely by its
// consumers and has no termination of its own.
func (b *Base[T]) IsFinished() bool { return true }

// Exhausted reports whether the upstream has ended.
func (b *Base[T]) Exhausted() bool {
	b.upstreamMu.Lock()
	defer b.upstreamMu.Unlock()
	return b.exhausted
}

// Err returns the upstream failure, if any.
func (b *Base[T]) Err() error {
	b.upstreamMu.Lock()
	defer b.upstreamMu.Unlock()
	return b.failed
}

// Call dispatches call to the pod's operations.
func (b *Base[T]) Call(ctx context.Context, call Call) CallResult {
	return b.dispatcher.Dispatch(ctx, call)
}

// Methods lists the operations Call accepts.
func (b *Base[T]) Methods() []string { return b.dispatcher.Methods() }

// Close closes the upstream iterator and drops every consumer. It is safe to
// call more than once.
func (b *Base[T]) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	b.consumersMu.Lock()
	for _, c := range b.consumers {
		c.clear()
	}
	b.consumers = make(map[int64]*consumer)
	b.consumersMu.Unlock()

	b.upstreamMu.Lock()
	defer b.upstreamMu.Unlock()
	if b.source == nil {
		return nil
	}
	err := b.source.Close()
	b.source = nil
	if err != nil {
		b.log.Warn("closing upstream failed", logger.ErrorFields("close", err))
		return errors.Upstream(b.String(), err)
	}
	b.log.Debug("pod closed")
	return nil
}
