package pod

import (
	"github.com/kbukum/podflow/bean"
	"github.com/kbukum/podflow/errors"
)

const (
	kindStreaming = "StreamingPod"
	kindSplitting = "SplittingPod"
)

// Streaming passes its upstream through unpartitioned: every consumer
// receives every batch.
type Streaming[T any] struct {
	*Base[T]
}

// NewStreaming creates a single-partition pull pod over upstream.
func NewStreaming[T any](key Key, upstream bean.Stream[T], opts ...Option) (*Streaming[T], error) {
	b, err := newBase(kindStreaming, key, upstream, 1, opts)
	if err != nil {
		return nil, err
	}
	return &Streaming[T]{Base: b}, nil
}

// Splitting fans its upstream out over partitionCount partitions. Partition
// p receives batches p, p+n, p+2n, ... in production order.
type Splitting[T any] struct {
	*Base[T]
}

// NewSplitting creates a partitioning pull pod. partitionCount must be > 1.
func NewSplitting[T any](key Key, upstream bean.Stream[T], partitionCount int, opts ...Option) (*Splitting[T], error) {
	if partitionCount < 2 {
		return nil, errors.InvalidInput("partition_count", "a splitting pod needs at least 2 partitions")
	}
	b, err := newBase(kindSplitting, key, upstream, partitionCount, opts)
	if err != nil {
		return nil, err
	}
	return &Splitting[T]{Base: b}, nil
}
