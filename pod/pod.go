package pod

import (
	"context"

	"github.com/kbukum/podflow/bean"
)

// Pod is an execution unit compiled from one or more beans.
type Pod interface {
	Key() Key
	// Inputs lists the beans the pod reads from.
	Inputs() []bean.Bean
	Start(ctx context.Context) error
	// IteratorStart registers a consumer of the given partition and returns
	// its iterator key.
	IteratorStart(ctx context.Context, sampleRate float64, partition int) (int64, error)
	// IteratorNext returns at most buckets batches for the consumer, or nil
	// once its buffer is empty and the upstream is exhausted.
	IteratorNext(ctx context.Context, iteratorKey int64, buckets int) ([]any, error)
	IsFinished() bool
	// Call invokes an operation by name. Failures are returned inside the result.
	Call(ctx context.Context, call Call) CallResult
	Close() error
}

// Ticker is a push pod driven by an external scheduler.
type Ticker interface {
	Pod
	// Tick performs one unit of work and reports whether to tick again.
	Tick(ctx context.Context) (bool, error)
}

// Method names exposed through Call.
const (
	MethodIteratorStart = "iteratorStart"
	MethodIteratorNext  = "iteratorNext"
	MethodIteratorStop  = "iteratorStop"
	MethodIsFinished    = "isFinished"
	MethodInputs        = "inputs"
	MethodStart         = "start"
	MethodClose         = "close"
	MethodTick          = "tick"
)

// Parameter names used by the pull protocol.
const (
	ParamSampleRate   = "sampleRate"
	ParamPartitionIdx = "partitionIdx"
	ParamIteratorKey  = "iteratorKey"
	ParamBuckets      = "buckets"
)

func inputNames(inputs []bean.Bean) []string {
	names := make([]string, len(inputs))
	for i, in := range inputs {
		names[i] = in.Name()
	}
	return names
}
