// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux || darwin

package hub

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
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

func newTestHub(t *testing.T, opts ...Option) *Hub {
	t.Helper()
	h, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func newSocketpair(t *testing.T) (int, int) {
	t.Helper()
	r, w, err := OSPrimitives{}.Socketpair()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = unix.Close(r)
		_ = unix.Close(w)
	})
	return r, w
}

func TestHub_ScheduleOrder(t *testing.T) {
	h := newTestHub(t)

	var (
		mu    sync.Mutex
		order []int
	)
	done := make(chan struct{})
	record := func(i int) func() {
		return func() {
			mu.Lock()
			order = append(order, i)
			n := len(order)
			mu.Unlock()
			if n == 5 {
				close(done)
			}
		}
	}

	h.Schedule(30*time.Millisecond, record(4))
	h.Schedule(10*time.Millisecond, record(1))
	h.Schedule(10*time.Millisecond, record(2))
	h.Schedule(10*time.Millisecond, record(3))
	h.Schedule(0, record(0))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timers did not fire")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestHub_TimerCancel(t *testing.T) {
	h := newTestHub(t)

	fired := make(chan string, 2)
	cancelled := h.Schedule(20*time.Millisecond, func() { fired <- "cancelled" })
	h.Schedule(40*time.Millisecond, func() { fired <- "kept" })

	assert.True(t, cancelled.Pending())
	assert.True(t, cancelled.Cancel())
	assert.False(t, cancelled.Pending())
	assert.False(t, cancelled.Cancel())

	select {
	case v := <-fired:
		assert.Equal(t, "kept", v)
	case <-time.After(5 * time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestHub_TimerNotPendingAfterFire(t *testing.T) {
	h := newTestHub(t)
	fired := make(chan struct{})
	timer := h.Schedule(0, func() { close(fired) })
	<-fired
	assert.False(t, timer.Pending())
	assert.False(t, timer.Cancel())
}

func TestHub_ListenerArmedOnce(t *testing.T) {
	h := newTestHub(t)
	r, w := newSocketpair(t)

	calls := make(chan int, 16)
	l, err := h.AddListener(r, Read, func(fd int) { calls <- fd })
	require.NoError(t, err)
	assert.Equal(t, r, l.FD())
	assert.Equal(t, Read, l.Interest())

	_, err = unix.Write(w, []byte("x"))
	require.NoError(t, err)

	select {
	case fd := <-calls:
		assert.Equal(t, r, fd)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not fire")
	}

	// the byte is still unread, but the listener is disarmed
	select {
	case <-calls:
		t.Fatal("listener fired without rearm")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, l.Rearm())
	select {
	case <-calls:
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not fire after rearm")
	}

	require.NoError(t, l.Cancel())
	require.NoError(t, l.Cancel())
	assert.ErrorIs(t, l.Rearm(), ErrListenerCancelled)
}

func TestHub_ReadAndWriteListeners(t *testing.T) {
	h := newTestHub(t)
	r, _ := newSocketpair(t)

	writable := make(chan struct{}, 1)
	readable := make(chan struct{}, 1)
	wl, err := h.AddListener(r, Write, func(int) { writable <- struct{}{} })
	require.NoError(t, err)
	rl, err := h.AddListener(r, Read, func(int) { readable <- struct{}{} })
	require.NoError(t, err)

	select {
	case <-writable:
	case <-time.After(5 * time.Second):
		t.Fatal("write listener did not fire")
	}
	select {
	case <-readable:
		t.Fatal("read listener fired with no data")
	case <-time.After(30 * time.Millisecond):
	}

	require.NoError(t, wl.Cancel())
	require.NoError(t, rl.Cancel())
}

func TestHub_AddListenerErrors(t *testing.T) {
	h := newTestHub(t)
	r, _ := newSocketpair(t)

	_, err := h.AddListener(-1, Read, func(int) {})
	assert.ErrorIs(t, err, ErrFDOutOfRange)

	_, err = h.AddListener(r, Read|Write, func(int) {})
	assert.ErrorIs(t, err, ErrInvalidInterest)

	_, err = h.AddListener(r, 0, func(int) {})
	assert.ErrorIs(t, err, ErrInvalidInterest)

	l, err := h.AddListener(r, Read, func(int) {})
	require.NoError(t, err)
	_, err = h.AddListener(r, Read, func(int) {})
	assert.ErrorIs(t, err, ErrListenerExists)

	require.NoError(t, l.Cancel())
	l, err = h.AddListener(r, Read, func(int) {})
	require.NoError(t, err)
	require.NoError(t, l.Cancel())
}

func TestHub_Close(t *testing.T) {
	h, err := New()
	require.NoError(t, err)
	r, _ := newSocketpair(t)

	l, err := h.AddListener(r, Read, func(int) {})
	require.NoError(t, err)
	fired := make(chan struct{})
	timer := h.Schedule(time.Hour, func() { close(fired) })

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	select {
	case <-h.Done():
	default:
		t.Fatal("hub still running")
	}

	assert.False(t, timer.Pending())
	assert.ErrorIs(t, l.Rearm(), ErrHubClosed)
	assert.NoError(t, l.Cancel())

	_, err = h.AddListener(r, Read, func(int) {})
	assert.ErrorIs(t, err, ErrHubClosed)
	assert.False(t, h.Schedule(0, func() {}).Pending())
}

func TestHub_CloseFromCallback(t *testing.T) {
	h := newTestHub(t)
	returned := make(chan error, 1)
	h.Schedule(0, func() { returned <- h.Close() })
	assert.NoError(t, <-returned)
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("hub did not stop")
	}
}

func TestHub_CallbackPanicLogged(t *testing.T) {
	var buf syncBuffer
	logger := stumpy.L.New(stumpy.L.WithStumpy(stumpy.WithWriter(&buf))).Logger()
	h := newTestHub(t, WithLogger(logger))

	h.Schedule(0, func() { panic("boom") })
	after := make(chan struct{})
	h.Schedule(time.Millisecond, func() { close(after) })

	select {
	case <-after:
	case <-time.After(5 * time.Second):
		t.Fatal("hub stopped after panic")
	}
	assert.Contains(t, buf.String(), "hub: callback panicked")
	assert.Contains(t, buf.String(), "boom")
}

func TestHub_DebugBlocking(t *testing.T) {
	var buf syncBuffer
	logger := stumpy.L.New(stumpy.L.WithStumpy(stumpy.WithWriter(&buf))).Logger()
	h := newTestHub(t, WithLogger(logger))

	enabled, resolution := h.DebugBlocking()
	assert.False(t, enabled)
	assert.Equal(t, DefaultBlockingResolution, resolution)

	h.SetDebugBlocking(true, 5*time.Millisecond)
	enabled, resolution = h.DebugBlocking()
	assert.True(t, enabled)
	assert.Equal(t, 5*time.Millisecond, resolution)

	done := make(chan struct{})
	h.Schedule(0, func() {
		time.Sleep(20 * time.Millisecond)
		close(done)
	})
	<-done
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(buf.String()), []byte("hub: callback blocked the hub"))
	}, 5*time.Second, time.Millisecond)
}

func TestHub_SpawnPanicLogged(t *testing.T) {
	var buf syncBuffer
	logger := stumpy.L.New(stumpy.L.WithStumpy(stumpy.WithWriter(&buf))).Logger()
	h := newTestHub(t, WithLogger(logger))

	g := h.Spawn(func() (any, error) { panic("green boom") })
	_, err := g.Wait()
	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(buf.String()), []byte("green boom"))
	}, 5*time.Second, time.Millisecond)
}

func TestWithMaxEvents_Invalid(t *testing.T) {
	_, err := New(WithMaxEvents(0))
	assert.Error(t, err)
}

func TestTimeoutMillis(t *testing.T) {
	for _, tc := range []struct {
		in   time.Duration
		want int
	}{
		{-1, -1},
		{-time.Hour, -1},
		{0, 0},
		{1, 1},
		{time.Millisecond, 1},
		{time.Millisecond + 1, 2},
		{1500 * time.Microsecond, 2},
		{time.Second, 1000},
		{1 << 62, 1<<31 - 1},
	} {
		assert.Equal(t, tc.want, timeoutMillis(tc.in), "%v", tc.in)
	}
}

func TestInterest_String(t *testing.T) {
	assert.Equal(t, "none", Interest(0).String())
	assert.Equal(t, "read", Read.String())
	assert.Equal(t, "write", Write.String())
	assert.Equal(t, "read|write", (Read | Write).String())
	assert.Equal(t, "unknown", Interest(8).String())
}
