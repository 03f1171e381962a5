// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"bytes"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/go-greenloop/hub"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newBufferLogger(buf *syncBuffer) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(stumpy.L.WithStumpy(stumpy.WithWriter(buf))).Logger()
}

func newTestHub(t *testing.T) *hub.Hub {
	t.Helper()
	h, err := hub.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

// newTestLoop returns a loop over a real hub, with logging disabled unless
// overridden.
func newTestLoop(t *testing.T, opts ...LoopOption) (*Loop, *hub.Hub) {
	t.Helper()
	h := newTestHub(t)
	l, err := New(h, append([]LoopOption{WithLogger(nil)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l, h
}

// runWithTimeout runs the loop on the calling goroutine, stopping it if it
// has not stopped by itself before timeout.
func runWithTimeout(t *testing.T, l *Loop, timeout time.Duration) {
	t.Helper()
	var expired atomic.Bool
	timer := time.AfterFunc(timeout, func() {
		expired.Store(true)
		_, _ = l.CallSoonThreadsafe(l.Stop)
	})
	defer timer.Stop()
	require.NoError(t, l.RunForever())
	require.False(t, expired.Load(), "loop did not stop before timeout")
}

// startLoop runs the loop on a new goroutine, returning a channel receiving
// the result of RunForever. The loop is stopped on cleanup.
func startLoop(t *testing.T, l *Loop) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- l.RunForever() }()
	require.Eventually(t, l.IsRunning, 5*time.Second, time.Millisecond)
	t.Cleanup(func() {
		if l.IsRunning() {
			_, _ = l.CallSoonThreadsafe(l.Stop)
			select {
			case <-done:
			case <-time.After(5 * time.Second):
				t.Error("loop did not stop")
			}
		}
	})
	return done
}

type fakeKey struct {
	fd       int
	interest hub.Interest
}

// fakeRuntime is a hub.Runtime with readiness triggered by the test.
type fakeRuntime struct {
	listeners map[fakeKey]*fakeListener
	mu        sync.Mutex
	added     int
	cancelled int
}

var _ hub.Runtime = (*fakeRuntime)(nil)

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{listeners: make(map[fakeKey]*fakeListener)}
}

func (r *fakeRuntime) Now() time.Time { return time.Now() }

func (r *fakeRuntime) NewEvent() hub.Event { return hub.NewEvent() }

func (r *fakeRuntime) Spawn(fn hub.GreenFunc) *hub.Greenlet {
	g := hub.NewGreenlet(fn)
	_ = g.Start()
	return g
}

func (r *fakeRuntime) Schedule(delay time.Duration, fn func()) hub.Timer {
	ft := &fakeTimer{}
	ft.pending.Store(true)
	ft.timer = time.AfterFunc(delay, func() {
		if ft.pending.CompareAndSwap(true, false) {
			fn()
		}
	})
	return ft
}

func (r *fakeRuntime) AddListener(fd int, interest hub.Interest, fn func(fd int)) (hub.Listener, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := fakeKey{fd: fd, interest: interest}
	if r.listeners[key] != nil {
		return nil, hub.ErrListenerExists
	}
	fl := &fakeListener{r: r, key: key, fn: fn, armed: true}
	r.listeners[key] = fl
	r.added++
	return fl, nil
}

func (r *fakeRuntime) Primitives() hub.Primitives { return hub.OSPrimitives{} }

// trigger simulates readiness, returning false if no armed listener exists.
func (r *fakeRuntime) trigger(fd int, interest hub.Interest) bool {
	r.mu.Lock()
	fl := r.listeners[fakeKey{fd: fd, interest: interest}]
	if fl == nil || !fl.armed {
		r.mu.Unlock()
		return false
	}
	fl.armed = false
	r.mu.Unlock()
	fl.fn(fd)
	return true
}

func (r *fakeRuntime) listener(fd int, interest hub.Interest) *fakeListener {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listeners[fakeKey{fd: fd, interest: interest}]
}

func (r *fakeRuntime) counts() (added, cancelled, active int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.added, r.cancelled, len(r.listeners)
}

type fakeListener struct {
	r     *fakeRuntime
	fn    func(fd int)
	key   fakeKey
	armed bool
}

func (l *fakeListener) FD() int { return l.key.fd }

func (l *fakeListener) Interest() hub.Interest { return l.key.interest }

func (l *fakeListener) Rearm() error {
	l.r.mu.Lock()
	defer l.r.mu.Unlock()
	if l.r.listeners[l.key] != l {
		return hub.ErrListenerCancelled
	}
	l.armed = true
	return nil
}

func (l *fakeListener) Cancel() error {
	l.r.mu.Lock()
	defer l.r.mu.Unlock()
	if l.r.listeners[l.key] == l {
		delete(l.r.listeners, l.key)
		l.r.cancelled++
	}
	return nil
}

func (l *fakeListener) isArmed() bool {
	l.r.mu.Lock()
	defer l.r.mu.Unlock()
	return l.armed
}

type fakeTimer struct {
	timer   *time.Timer
	pending atomic.Bool
}

func (t *fakeTimer) Cancel() bool {
	if !t.pending.CompareAndSwap(true, false) {
		return false
	}
	t.timer.Stop()
	return true
}

func (t *fakeTimer) Pending() bool { return t.pending.Load() }
