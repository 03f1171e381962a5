// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux || darwin

package hub

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-greenloop/goroutineid"
	"github.com/joeycumines/logiface"
	"golang.org/x/sys/unix"
)

// Interest is a set of readiness conditions.
type Interest uint32

const (
	// Read indicates the file descriptor is ready for reading.
	Read Interest = 1 << iota
	// Write indicates the file descriptor is ready for writing.
	Write
)

// String returns a human-readable representation of the interest set.
func (i Interest) String() string {
	switch i {
	case 0:
		return "none"
	case Read:
		return "read"
	case Write:
		return "write"
	case Read | Write:
		return "read|write"
	default:
		return "unknown"
	}
}

const (
	defaultMaxEvents = 256

	// DefaultBlockingResolution is the default threshold used by blocking
	// detection.
	DefaultBlockingResolution = 100 * time.Millisecond
)

// Runtime is the set of capabilities a cooperating scheduler needs from the
// green-thread runtime. [*Hub] is the implementation provided by this
// package.
type Runtime interface {
	// Now returns the runtime's clock. Deadlines passed around between the
	// runtime and its consumers are all relative to this clock.
	Now() time.Time
	// NewEvent returns a new single-shot signal.
	NewEvent() Event
	// Spawn creates and starts a green thread.
	Spawn(fn GreenFunc) *Greenlet
	// Schedule calls fn after delay, on the runtime's own goroutine.
	Schedule(delay time.Duration, fn func()) Timer
	// AddListener calls fn, on the runtime's own goroutine, when fd becomes
	// ready for interest. See also [Listener].
	AddListener(fd int, interest Interest, fn func(fd int)) (Listener, error)
	// Primitives returns raw, never rebound, OS operations.
	Primitives() Primitives
}

// DebugController is implemented by runtimes that can detect callbacks
// blocking their own goroutine.
type DebugController interface {
	SetDebugBlocking(enabled bool, resolution time.Duration)
	DebugBlocking() (enabled bool, resolution time.Duration)
}

// Timer is a pending call scheduled via [Runtime.Schedule].
type Timer interface {
	// Cancel prevents the call, returning false if it had already been
	// dispatched or cancelled.
	Cancel() bool
	// Pending reports whether the call is still scheduled.
	Pending() bool
}

// Listener is a readiness registration for one (fd, interest) pair.
type Listener interface {
	FD() int
	Interest() Interest
	// Rearm re-enables dispatch after the listener's callback was invoked.
	Rearm() error
	// Cancel removes the registration. It is idempotent.
	Cancel() error
}

// Hub is the default [Runtime], a single goroutine multiplexing an OS
// readiness poller and a timer heap.
type Hub struct {
	logger     *logiface.Logger[logiface.Event]
	primitives Primitives
	limiter    *catrate.Limiter
	fds        map[int]*fdState
	done       chan struct{}
	timers     timerHeap
	due        []*hubTimer
	poller     poller

	timerSeq uint64

	wakeR int
	wakeW int

	goroutineID        atomic.Uint64
	blockingResolution atomic.Int64

	closeOnce sync.Once
	mu        sync.Mutex
	wakeMu    sync.RWMutex

	wakePending   atomic.Uint32
	closing       atomic.Bool
	debugBlocking atomic.Bool

	closed     bool
	wakeClosed bool
}

var (
	_ Runtime         = (*Hub)(nil)
	_ DebugController = (*Hub)(nil)
)

type pollEvent struct {
	fd       int
	interest Interest
}

// New creates a hub and starts its goroutine.
func New(opts ...Option) (*Hub, error) {
	cfg, err := resolveHubOptions(opts)
	if err != nil {
		return nil, err
	}

	h := &Hub{
		logger:     cfg.logger,
		primitives: cfg.primitives,
		limiter: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 3,
			time.Minute: 30,
		}),
		fds:  make(map[int]*fdState),
		done: make(chan struct{}),
	}
	h.debugBlocking.Store(cfg.debugBlocking)
	h.blockingResolution.Store(int64(cfg.blockingResolution))

	h.wakeR, h.wakeW, err = createWakeFd()
	if err != nil {
		return nil, err
	}
	closeWake := func() {
		_ = unix.Close(h.wakeR)
		if h.wakeW != h.wakeR {
			_ = unix.Close(h.wakeW)
		}
	}

	if err := h.poller.init(cfg.maxEvents); err != nil {
		closeWake()
		return nil, err
	}

	if err := h.poller.update(h.wakeR, 0, Read); err != nil {
		_ = h.poller.close()
		closeWake()
		return nil, err
	}

	go h.run()

	return h, nil
}

// Now returns the current time, including a monotonic clock reading.
func (h *Hub) Now() time.Time { return time.Now() }

// NewEvent returns a new single-shot signal.
func (h *Hub) NewEvent() Event { return NewEvent() }

// Primitives returns the configured OS primitives.
func (h *Hub) Primitives() Primitives { return h.primitives }

// Spawn creates and starts a greenlet. Panics are reported to the hub's
// logger, in addition to being available from the greenlet's result.
func (h *Hub) Spawn(fn GreenFunc) *Greenlet {
	g := NewGreenlet(fn)
	g.Link(h.reportGreenlet)
	_ = g.Start()
	return g
}

func (h *Hub) reportGreenlet(g *Greenlet) {
	_, err, _ := g.Result()
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		h.logger.Err().
			Err(err).
			Uint64("greenlet", g.ID()).
			Log("hub: greenlet panicked")
	}
}

// Done returns a channel that is closed once the hub goroutine has exited.
func (h *Hub) Done() <-chan struct{} { return h.done }

// Close stops the hub, cancelling all timers and listeners. It is idempotent.
// If called from a hub callback it returns immediately, and the hub stops
// once the callback returns.
func (h *Hub) Close() error {
	h.closeOnce.Do(func() {
		h.closing.Store(true)
		h.wake()
	})
	if h.onHubGoroutine() {
		return nil
	}
	<-h.done
	return nil
}

// SetDebugBlocking toggles blocking detection. A non-positive resolution
// leaves the current resolution unchanged.
func (h *Hub) SetDebugBlocking(enabled bool, resolution time.Duration) {
	if resolution > 0 {
		h.blockingResolution.Store(int64(resolution))
	}
	h.debugBlocking.Store(enabled)
}

// DebugBlocking returns the blocking detection configuration.
func (h *Hub) DebugBlocking() (bool, time.Duration) {
	return h.debugBlocking.Load(), time.Duration(h.blockingResolution.Load())
}

func (h *Hub) onHubGoroutine() bool {
	id := h.goroutineID.Load()
	return id != 0 && id == goroutineid.Get()
}

func (h *Hub) run() {
	h.goroutineID.Store(goroutineid.Get())
	defer close(h.done)
	defer h.shutdown()

	for !h.closing.Load() {
		events, err := h.poller.wait(h.nextTimeout())
		if err != nil {
			h.logger.Crit().
				Err(err).
				Log("hub: poll failed, stopping hub")
			return
		}
		for _, ev := range events {
			if ev.fd == h.wakeR {
				h.drainWake()
				continue
			}
			h.dispatch(ev)
		}
		h.runTimers()
	}
}

func (h *Hub) shutdown() {
	h.closing.Store(true)

	h.mu.Lock()
	h.closed = true
	for _, t := range h.timers {
		t.index = -1
	}
	h.timers = nil
	h.fds = make(map[int]*fdState)
	h.mu.Unlock()

	_ = h.poller.close()

	h.wakeMu.Lock()
	h.wakeClosed = true
	_ = unix.Close(h.wakeR)
	if h.wakeW != h.wakeR {
		_ = unix.Close(h.wakeW)
	}
	h.wakeMu.Unlock()
}

// wake interrupts a blocked poll. Calls are coalesced until the hub drains
// the wakeup fd.
func (h *Hub) wake() {
	if !h.wakePending.CompareAndSwap(0, 1) {
		return
	}
	h.wakeMu.RLock()
	defer h.wakeMu.RUnlock()
	if h.wakeClosed {
		return
	}
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(h.wakeW, buf[:]); err != nil && err != unix.EAGAIN {
		h.wakePending.Store(0)
	}
}

func (h *Hub) drainWake() {
	var buf [64]byte
	for {
		if _, err := unix.Read(h.wakeR, buf[:]); err != nil {
			break
		}
	}
	h.wakePending.Store(0)
}

func (h *Hub) nextTimeout() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.timers) == 0 {
		return -1
	}
	d := time.Until(h.timers[0].when)
	if d < 0 {
		return 0
	}
	return d
}

// timeoutMillis converts a poll timeout to milliseconds, rounding up so that
// a wait never returns before a timer is due.
func timeoutMillis(d time.Duration) int {
	switch {
	case d < 0:
		return -1
	case d == 0:
		return 0
	}
	ms := (d + time.Millisecond - 1) / time.Millisecond
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(ms)
}

// invoke runs a callback on the hub goroutine, recovering panics and
// reporting callbacks that exceed the blocking resolution.
func (h *Hub) invoke(kind string, fd int, fn func()) {
	debug := h.debugBlocking.Load()
	var start time.Time
	if debug {
		start = time.Now()
	}
	defer func() {
		if r := recover(); r != nil {
			h.logger.Err().
				Str("kind", kind).
				Int("fd", fd).
				Any("panic", r).
				Log("hub: callback panicked")
		}
		if debug {
			if elapsed := time.Since(start); elapsed > time.Duration(h.blockingResolution.Load()) {
				h.reportBlocking(kind, fd, elapsed)
			}
		}
	}()
	fn()
}

func (h *Hub) reportBlocking(kind string, fd int, elapsed time.Duration) {
	if _, ok := h.limiter.Allow(kind); !ok {
		return
	}
	h.logger.Warning().
		Str("kind", kind).
		Int("fd", fd).
		Dur("duration", elapsed).
		Dur("resolution", time.Duration(h.blockingResolution.Load())).
		Log("hub: callback blocked the hub")
}
