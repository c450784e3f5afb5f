// Package pod provides the execution units of a stream graph.
//
// A pod wraps one bean and serves its output to remote consumers through a
// pull protocol: a consumer registers with IteratorStart, then calls
// IteratorNext until it returns nil. The upstream is created lazily by the
// first registration and read at most once, in batches of PartitionSize
// elements that go round-robin to the pod's partitions.
//
//	p, _ := pod.NewSplitting(pod.Key{ID: 7}, stream, 2, pod.WithPartitionSize(256))
//	k, _ := p.IteratorStart(ctx, 44100, 0)
//	for {
//		batches, err := p.IteratorNext(ctx, k, 4)
//		if err != nil || batches == nil {
//			break
//		}
//		...
//	}
//
// Every operation is also reachable by name through Call, which never fails
// directly: errors and panics come back inside the CallResult.
//
// Output is the push variant. It owns a sink and is ticked by a scheduler
// until Tick reports false.
package pod
