package aggregator

import (
	"context"
	"sync"
	"testing"
	"time"

	"batchwatch/internal/model"

	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu         sync.Mutex
	targets    []string
	options    map[string]any
	handle     *fakeHandle
	watchCalls int
}

func (s *fakeSource) Watch(targets []string, options map[string]any) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.watchCalls++
	s.targets = targets
	s.options = options
	s.handle = &fakeHandle{}
	return s.handle, nil
}

func (s *fakeSource) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watchCalls
}

type fakeHandle struct {
	mu        sync.Mutex
	onReady   []func()
	listeners []func(kind, path string)
	closed    bool
}

func (h *fakeHandle) OnReady(fn func()) {
	h.mu.Lock()
	h.onReady = append(h.onReady, fn)
	h.mu.Unlock()
}

func (h *fakeHandle) OnEvent(fn func(kind, path string)) {
	h.mu.Lock()
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return nil
}

func (h *fakeHandle) fireReady() {
	h.mu.Lock()
	fns := append([]func(){}, h.onReady...)
	h.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (h *fakeHandle) emit(kind model.EventKind, path string) {
	h.mu.Lock()
	fns := append([]func(string, string){}, h.listeners...)
	h.mu.Unlock()

	for _, fn := range fns {
		fn(string(kind), path)
	}
}

func (h *fakeHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

type delivery struct {
	events []model.ChangeEvent
	params Params
	at     time.Time
}

// recorder is a subscriber that forwards every batch to a channel.
type recorder struct {
	ch chan delivery
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan delivery, 16)}
}

func (r *recorder) callback(_ context.Context, events []model.ChangeEvent, params Params) error {
	r.ch <- delivery{events: events, params: params, at: time.Now()}
	return nil
}

func (r *recorder) next(t *testing.T, within time.Duration) delivery {
	t.Helper()

	select {
	case d := <-r.ch:
		return d
	case <-time.After(within):
		require.FailNow(t, "no batch delivered", "waited %s", within)
		return delivery{}
	}
}

func (r *recorder) none(t *testing.T, within time.Duration) {
	t.Helper()

	select {
	case d := <-r.ch:
		require.FailNow(t, "unexpected batch", "%v", d.events)
	case <-time.After(within):
	}
}

func startReady(t *testing.T, subs []any, opts Options) (*Aggregator, *fakeHandle) {
	t.Helper()

	src := &fakeSource{}
	opts.Autostart = true
	a, err := New(context.Background(), src, []string{"/watched"}, subs, opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = a.Stop()
	})

	src.handle.fireReady()
	require.True(t, a.Ready())
	return a, src.handle
}

func testOptions(timeout time.Duration) Options {
	opts := DefaultOptions()
	opts.Timeout = timeout
	return opts
}
