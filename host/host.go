package host

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/kbukum/podflow/errors"
	"github.com/kbukum/podflow/logger"
	"github.com/kbukum/podflow/observability"
	"github.com/kbukum/podflow/pod"
)

type entry struct {
	pod     pod.Pod
	started bool
}

// Host owns the pods of one process. Pods are started in registration order
// and closed in reverse order.
type Host struct {
	name    string
	version string
	log     *logger.Logger

	mu      sync.RWMutex
	entries []*entry
	lookup  map[pod.Key]*entry
	closed  atomic.Bool
}

// New creates an empty host.
func New(name, version string) *Host {
	return &Host{
		name:    name,
		version: version,
		log:     logger.Get("host"),
		lookup:  make(map[pod.Key]*entry),
	}
}

// WithLogger replaces the host logger and returns h.
func (h *Host) WithLogger(l *logger.Logger) *Host {
	h.log = l
	return h
}

// Register adds p under its key.
func (h *Host) Register(p pod.Pod) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := p.Key()
	if _, exists := h.lookup[key]; exists {
		return errors.AlreadyExists("pod", key.String())
	}
	e := &entry{pod: p}
	h.entries = append(h.entries, e)
	h.lookup[key] = e

	h.log.Debug("pod registered", logger.Fields(logger.FieldPod, key.String()))
	return nil
}

// StartAll starts every pod not yet started, stopping at the first failure.
func (h *Host) StartAll(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.log.Info("starting pods", logger.Fields("count", len(h.entries)))
	for _, e := range h.entries {
		if e.started {
			continue
		}
		key := e.pod.Key().String()
		if err := e.pod.Start(ctx); err != nil {
			h.log.Error("pod start failed", logger.Fields(logger.FieldPod, key, logger.FieldError, err.Error()))
			return fmt.Errorf("starting pod %s: %w", key, err)
		}
		e.started = true
	}
	return nil
}

// CloseAll closes every pod in reverse registration order, whether started
// or not, and returns all failures combined. Calls fail afterwards.
func (h *Host) CloseAll() error {
	h.closed.Store(true)

	h.mu.Lock()
	defer h.mu.Unlock()

	var errs error
	for i := len(h.entries) - 1; i >= 0; i-- {
		e := h.entries[i]
		key := e.pod.Key().String()
		if err := e.pod.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("closing pod %s: %w", key, err))
			h.log.Error("pod close failed", logger.Fields(logger.FieldPod, key, logger.FieldError, err.Error()))
		}
		e.started = false
	}
	if errs == nil {
		h.log.Info("all pods closed")
	}
	return errs
}

// Pod returns the pod registered under key.
func (h *Host) Pod(key pod.Key) (pod.Pod, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.lookup[key]
	if !ok {
		return nil, false
	}
	return e.pod, true
}

// Keys returns the registered keys in registration order.
func (h *Host) Keys() []pod.Key {
	h.mu.RLock()
	defer h.mu.RUnlock()
	keys := make([]pod.Key, len(h.entries))
	for i, e := range h.entries {
		keys[i] = e.pod.Key()
	}
	return keys
}

// Call routes call to the pod under key. The returned error covers delivery
// only: an unknown key, a closed host or a done context. Operation failures
// come back inside the result.
func (h *Host) Call(ctx context.Context, key pod.Key, call pod.Call) (pod.CallResult, error) {
	if err := ctx.Err(); err != nil {
		return pod.CallResult{}, err
	}
	if h.closed.Load() {
		return pod.CallResult{}, errors.ServiceUnavailable(h.name)
	}
	p, ok := h.Pod(key)
	if !ok {
		return pod.CallResult{}, errors.NotFound("pod", key.String())
	}
	return p.Call(ctx, call), nil
}

// Drive ticks every registered push pod concurrently until each reports it
// is done. The first tick error cancels the others and is returned.
func (h *Host) Drive(ctx context.Context) error {
	var tickers []pod.Ticker
	h.mu.RLock()
	for _, e := range h.entries {
		if t, ok := e.pod.(pod.Ticker); ok {
			tickers = append(tickers, t)
		}
	}
	h.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range tickers {
		g.Go(func() error {
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				more, err := t.Tick(gctx)
				if err != nil {
					return fmt.Errorf("ticking pod %s: %w", t.Key(), err)
				}
				if !more {
					h.log.Debug("pod finished", logger.Fields(logger.FieldPod, t.Key().String()))
					return nil
				}
			}
		})
	}
	return g.Wait()
}

// failing is implemented by pull pods that remember an upstream failure.
type failing interface {
	Err() error
}

// Health reports one component per pod. A pod whose upstream failed is down.
func (h *Host) Health() *observability.ServiceHealth {
	sh := observability.NewServiceHealth(h.name, h.version)
	if h.closed.Load() {
		sh.Status = observability.HealthStatusDown
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, e := range h.entries {
		ch := observability.Health{
			Name:   e.pod.Key().String(),
			Status: observability.HealthStatusUp,
			Details: map[string]string{
				"finished": strconv.FormatBool(e.pod.IsFinished()),
				"started":  strconv.FormatBool(e.started),
			},
		}
		if f, ok := e.pod.(failing); ok {
			if err := f.Err(); err != nil {
				ch.Status = observability.HealthStatusDown
				ch.Message = err.Error()
			}
		}
		sh.AddComponent(ch)
	}
	return sh
}
