package pod

import (
	"sync"

	"github.com/emirpasic/gods/queues/linkedlistqueue"

	"github.com/kbukum/podflow/resilience"
)

// consumer is one registered reader of a pod. Its lock serializes
// IteratorNext calls for the same key; mu guards the buffer, which other
// consumers append to while they read the upstream.
type consumer struct {
	key       int64
	partition int
	lock      *resilience.Bulkhead

	mu     sync.Mutex
	buffer *linkedlistqueue.Queue
}

func newConsumer(key int64, partition int, lock *resilience.Bulkhead) *consumer {
	return &consumer{
		key:       key,
		partition: partition,
		lock:      lock,
		buffer:    linkedlistqueue.New(),
	}
}

func (c *consumer) push(batch any) {
	c.mu.Lock()
	c.buffer.Enqueue(batch)
	c.mu.Unlock()
}

func (c *consumer) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.Size()
}

// take dequeues up to n batches in FIFO order. It returns nil when the
// buffer is empty.
func (c *consumer) take(n int) []any {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n > c.buffer.Size() {
		n = c.buffer.Size()
	}
	if n == 0 {
		return nil
	}
	out := make([]any, 0, n)
	for i := 0; i < n; i++ {
		v, _ := c.buffer.Dequeue()
		out = append(out, v)
	}
	return out
}

func (c *consumer) clear() {
	c.mu.Lock()
	c.buffer.Clear()
	c.mu.Unlock()
}
