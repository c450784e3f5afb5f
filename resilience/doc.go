// Package resilience holds the concurrency and failure primitives used by
// pods and their proxies.
//
//   - Bulkhead: bounded slots with a timed wait. A one-slot bulkhead is the
//     per-consumer lock of a pod.
//   - Retry: exponential backoff for retryable call failures.
//   - CircuitBreaker: fails fast against a pod host that keeps failing.
//
//	lock := resilience.NewBulkhead(resilience.BulkheadConfig{Name: "1:0#3", MaxConcurrent: 1, MaxWait: time.Second})
//	if err := lock.Acquire(ctx); err != nil {
//	    return err
//	}
//	defer lock.Release()
package resilience
