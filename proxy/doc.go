// Package proxy reads pods from the consumer side of the pull protocol.
//
// A Stream turns one partition of a pod into a bean.Stream, so a remote pod
// can feed a local graph. Deliveries go through a Caller, which may be a
// network client or a host.Host in the same process, and are retried when
// the delivery error is retryable.
//
//	s, _ := proxy.NewStream[float32](caller, pod.Key{ID: 3}, proxy.WithBuckets(8))
//	values, err := bean.Drain(ctx, s.Iterator(ctx, 44100))
package proxy
