package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBulkhead_SingleSlotIsExclusive(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{Name: "lock", MaxWait: time.Second})

	var inside, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := b.Execute(context.Background(), func() error {
				n := atomic.AddInt32(&inside, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		}()
	}
	wg.Wait()

	if peak != 1 {
		t.Errorf("expected at most one holder, saw %d", peak)
	}
}

func TestBulkhead_RejectsWhenFull(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{Name: "test", MaxConcurrent: 1})
	if err := b.Acquire(context.Background()); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	defer b.Release()

	var rejected error
	b.config.OnReject = func(_ string, err error) { rejected = err }

	if err := b.Acquire(context.Background()); !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("expected ErrBulkheadFull, got %v", err)
	}
	if !errors.Is(rejected, ErrBulkheadFull) {
		t.Errorf("expected OnReject to see the error, got %v", rejected)
	}
}

func TestBulkhead_WaitsForSlot(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{Name: "test", MaxWait: 500 * time.Millisecond})
	if err := b.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		b.Release()
	}()

	start := time.Now()
	if err := b.Acquire(context.Background()); err != nil {
		t.Fatalf("expected to get the slot, got %v", err)
	}
	b.Release()
	if time.Since(start) < 10*time.Millisecond {
		t.Error("expected Acquire to wait for the release")
	}
}

func TestBulkhead_TimesOutWaiting(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{Name: "test", MaxWait: 20 * time.Millisecond})
	if err := b.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	defer b.Release()

	start := time.Now()
	err := b.Acquire(context.Background())
	if !errors.Is(err, ErrBulkheadTimeout) {
		t.Errorf("expected ErrBulkheadTimeout, got %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("expected Acquire to wait MaxWait before failing")
	}
}

func TestBulkhead_RespectsContext(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{Name: "test", MaxWait: time.Second})
	if err := b.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	defer b.Release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if err := b.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestBulkhead_MaxWait(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxWait: 5 * time.Millisecond})
	if b.MaxWait() != 5*time.Millisecond {
		t.Errorf("unexpected MaxWait %v", b.MaxWait())
	}
}

func TestExecuteWithResult(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{})
	got, err := ExecuteWithResult(context.Background(), b, func() (int, error) { return 42, nil })
	if err != nil || got != 42 {
		t.Errorf("expected 42, got %d (%v)", got, err)
	}
	if err := b.Acquire(context.Background()); err != nil {
		t.Errorf("expected slot to be released, got %v", err)
	}
}
