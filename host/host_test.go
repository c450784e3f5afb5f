package host

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/podflow/bean"
	"github.com/kbukum/podflow/errors"
	"github.com/kbukum/podflow/logger"
	"github.com/kbukum/podflow/observability"
	"github.com/kbukum/podflow/pod"
)

// fakePod records lifecycle calls into a shared log.
type fakePod struct {
	pod.Pod
	key      pod.Key
	events   *[]string
	startErr error
	closeErr error
	finished bool
	err      error
}

func (f *fakePod) Key() pod.Key { return f.key }

func (f *fakePod) Start(context.Context) error {
	*f.events = append(*f.events, "start "+f.key.String())
	return f.startErr
}

func (f *fakePod) Close() error {
	*f.events = append(*f.events, "close "+f.key.String())
	return f.closeErr
}

func (f *fakePod) IsFinished() bool { return f.finished }
func (f *fakePod) Err() error       { return f.err }

func newTestHost() *Host { return New("worker", "1.2.3").WithLogger(logger.Nop()) }

func TestHost_RegisterDuplicate(t *testing.T) {
	var events []string
	h := newTestHost()
	require.NoError(t, h.Register(&fakePod{key: pod.Key{ID: 1}, events: &events}))

	err := h.Register(&fakePod{key: pod.Key{ID: 1}, events: &events})
	assert.True(t, errors.HasCode(err, errors.ErrCodeAlreadyExists))
	require.NoError(t, h.Register(&fakePod{key: pod.Key{ID: 1, Partition: 1}, events: &events}))

	assert.Equal(t, []pod.Key{{ID: 1}, {ID: 1, Partition: 1}}, h.Keys())
}

func TestHost_LifecycleOrder(t *testing.T) {
	var events []string
	h := newTestHost()
	for id := 1; id <= 3; id++ {
		require.NoError(t, h.Register(&fakePod{key: pod.Key{ID: id}, events: &events}))
	}

	require.NoError(t, h.StartAll(context.Background()))
	require.NoError(t, h.CloseAll())
	assert.Equal(t, []string{
		"start 1:0", "start 2:0", "start 3:0",
		"close 3:0", "close 2:0", "close 1:0",
	}, events)
}

func TestHost_StartAllStopsAtFirstFailure(t *testing.T) {
	var events []string
	h := newTestHost()
	for _, p := range []*fakePod{
		{key: pod.Key{ID: 1}, events: &events},
		{key: pod.Key{ID: 2}, events: &events, startErr: stderrors.New("no disk")},
		{key: pod.Key{ID: 3}, events: &events},
	} {
		if err := h.Register(p); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}

	err := h.StartAll(context.Background())
	if err == nil || !strings.Contains(err.Error(), "2:0") {
		t.Fatalf("expected the failing pod in the error, got %v", err)
	}
	if strings.Join(events, ",") != "start 1:0,start 2:0" {
		t.Errorf("unexpected events %v", events)
	}
}

func TestHost_CloseAllCombinesErrors(t *testing.T) {
	var events []string
	h := newTestHost()
	e1, e2 := stderrors.New("first"), stderrors.New("second")
	require.NoError(t, h.Register(&fakePod{key: pod.Key{ID: 1}, events: &events, closeErr: e1}))
	require.NoError(t, h.Register(&fakePod{key: pod.Key{ID: 2}, events: &events}))
	require.NoError(t, h.Register(&fakePod{key: pod.Key{ID: 3}, events: &events, closeErr: e2}))

	err := h.CloseAll()
	require.Error(t, err)
	assert.ErrorIs(t, err, e1)
	assert.ErrorIs(t, err, e2)
	assert.Len(t, events, 3)
}

func TestHost_CallRouting(t *testing.T) {
	h := newTestHost()
	p, err := pod.NewStreaming(pod.Key{ID: 5}, bean.FromSlice("nums", []int{1, 2, 3}), pod.WithLogger(logger.Nop()))
	require.NoError(t, err)
	require.NoError(t, h.Register(p))
	ctx := context.Background()

	res, err := h.Call(ctx, pod.Key{ID: 5}, pod.NewCall(pod.MethodInputs))
	require.NoError(t, err)
	assert.Equal(t, []string{"nums"}, res.Value)

	res, err = h.Call(ctx, pod.Key{ID: 5}, pod.NewCall("bogus"))
	require.NoError(t, err, "operation failures are not delivery failures")
	assert.True(t, errors.HasCode(res.Err, errors.ErrCodeMethodNotFound))

	_, err = h.Call(ctx, pod.Key{ID: 6}, pod.NewCall(pod.MethodInputs))
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = h.Call(cancelled, pod.Key{ID: 5}, pod.NewCall(pod.MethodInputs))
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, h.CloseAll())
	_, err = h.Call(ctx, pod.Key{ID: 5}, pod.NewCall(pod.MethodInputs))
	assert.True(t, errors.HasCode(err, errors.ErrCodeServiceUnavailable))
}

func TestHost_Drive(t *testing.T) {
	h := newTestHost()
	a := bean.Collect("a", bean.Generate("gen", 50, func(i int) int { return i }))
	b := bean.Collect("b", bean.FromSlice("nums", []int{7, 8}))
	for i, sink := range []*bean.Collector[int]{a, b} {
		o, err := pod.NewOutput[int](pod.Key{ID: 10 + i}, sink, 1, pod.WithLogger(logger.Nop()))
		require.NoError(t, err)
		require.NoError(t, h.Register(o))
	}
	ctx := context.Background()
	require.NoError(t, h.StartAll(ctx))
	require.NoError(t, h.Drive(ctx))

	assert.Len(t, a.Values(), 50)
	assert.Equal(t, []int{7, 8}, b.Values())
	for _, k := range h.Keys() {
		p, ok := h.Pod(k)
		require.True(t, ok)
		assert.True(t, p.IsFinished())
	}
}

func TestHost_DriveReturnsTickError(t *testing.T) {
	h := newTestHost()
	boom := stderrors.New("sink closed")
	sink := bean.ToFunc("bad", bean.FromSlice("nums", []int{1}), func(context.Context, int) error { return boom })
	o, err := pod.NewOutput[int](pod.Key{ID: 20}, sink, 1, pod.WithLogger(logger.Nop()))
	require.NoError(t, err)
	require.NoError(t, h.Register(o))

	ctx := context.Background()
	require.NoError(t, h.StartAll(ctx))
	assert.ErrorIs(t, h.Drive(ctx), boom)
}

func TestHost_Health(t *testing.T) {
	var events []string
	h := newTestHost()
	require.NoError(t, h.Register(&fakePod{key: pod.Key{ID: 1}, events: &events, finished: true}))
	require.NoError(t, h.Register(&fakePod{key: pod.Key{ID: 2}, events: &events, err: stderrors.New("upstream gone")}))

	sh := h.Health()
	assert.Equal(t, "worker", sh.Service)
	assert.Equal(t, "1.2.3", sh.Version)
	assert.Equal(t, observability.HealthStatusDown, sh.Status)
	require.Len(t, sh.Components, 2)
	assert.Equal(t, "true", sh.Components[0].Details["finished"])
	assert.Equal(t, observability.HealthStatusUp, sh.Components[0].Status)
	assert.Equal(t, "upstream gone", sh.Components[1].Message)
}
