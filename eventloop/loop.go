// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-greenloop/goroutineid"
	"github.com/joeycumines/go-greenloop/hub"
	"github.com/joeycumines/logiface"
)

// Loop is a reactor that runs on top of a [hub.Runtime].
//
// All readiness and timer events reach the loop through the runtime. The
// loop keeps its own ready queue and timer heap, and asks the runtime to
// resume it, at most once, either soon or at the next deadline.
//
// Except where documented otherwise, methods must be called from the
// goroutine running [Loop.RunForever], or while the loop is not running.
type Loop struct {
	rt               hub.Runtime
	logger           *logiface.Logger[logiface.Event]
	selector         *selector
	queue            *threadQueue
	sched            *scheduler
	slowLimiter      *catrate.Limiter
	exceptionHandler atomic.Pointer[ExceptionHandler]
	executor         Executor
	events           []readyEvent
	ready            chunkedIngress
	timers           timerHeap
	state            fastState

	id                   uint64
	clockResolution      time.Duration
	slowCallbackDuration time.Duration

	owner atomic.Uint64

	executorMu sync.Mutex
	closeMu    sync.Mutex

	maxExecutorWorkers int

	debug           atomic.Bool
	stopping        atomic.Bool
	debugPropagated bool
}

var loopIDCounter atomic.Uint64

// New creates a loop driven by rt.
func New(rt hub.Runtime, opts ...LoopOption) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	l := &Loop{
		rt:                   rt,
		logger:               cfg.logger,
		executor:             cfg.executor,
		id:                   loopIDCounter.Add(1),
		clockResolution:      cfg.clockResolution,
		slowCallbackDuration: cfg.slowCallbackDuration,
		maxExecutorWorkers:   cfg.maxExecutorWorkers,
	}
	if len(cfg.slowCallbackRates) != 0 {
		l.slowLimiter = catrate.NewLimiter(cfg.slowCallbackRates)
	}
	l.debug.Store(cfg.debug)

	l.selector = newSelector(rt, l.logger)
	l.sched = newScheduler(rt, l.selector.interrupt)

	l.queue, err = newThreadQueue(l, rt.Primitives())
	if err != nil {
		return nil, err
	}

	return l, nil
}

// ID returns the loop's process-unique identifier.
func (l *Loop) ID() uint64 { return l.id }

// Runtime returns the runtime the loop was created with.
func (l *Loop) Runtime() hub.Runtime { return l.rt }

// Time returns the runtime's current time. Timer deadlines are on this
// clock. Safe to call from any goroutine.
func (l *Loop) Time() time.Time { return l.rt.Now() }

// State returns the current state. Safe to call from any goroutine.
func (l *Loop) State() LoopState { return l.state.Load() }

// IsRunning reports whether the loop is inside RunForever. Safe to call
// from any goroutine.
func (l *Loop) IsRunning() bool { return l.state.Load() == StateRunning }

// IsClosed reports whether the loop was closed. Safe to call from any
// goroutine.
func (l *Loop) IsClosed() bool { return l.state.Load() == StateClosed }

// CallSoon arranges for fn to be called on the next iteration. Callbacks
// run in the order they were scheduled.
func (l *Loop) CallSoon(fn func()) (*Handle, error) {
	if err := l.checkCall("CallSoon"); err != nil {
		return nil, err
	}
	h := newHandle(l, fn)
	l.callSoonHandle(h)
	return h, nil
}

func (l *Loop) callSoonHandle(h *Handle) {
	l.ready.push(h)
	if l.IsRunning() {
		l.sched.requestSoon()
	}
}

// CallLater arranges for fn to be called after delay.
func (l *Loop) CallLater(delay time.Duration, fn func()) (*TimerHandle, error) {
	if err := l.checkCall("CallLater"); err != nil {
		return nil, err
	}
	return l.callAt(l.rt.Now().Add(delay), fn), nil
}

// CallAt arranges for fn to be called at when, on the clock of Time. Timers
// with equal deadlines run in the order they were scheduled.
func (l *Loop) CallAt(when time.Time, fn func()) (*TimerHandle, error) {
	if err := l.checkCall("CallAt"); err != nil {
		return nil, err
	}
	return l.callAt(when, fn), nil
}

func (l *Loop) callAt(when time.Time, fn func()) *TimerHandle {
	t := newTimerHandle(l, when, fn)
	l.timers.push(t)
	if l.IsRunning() {
		l.sched.requestAt(when)
	}
	return t
}

// CallSoonThreadsafe is like CallSoon, but safe to call from any goroutine.
// If the loop is not running, fn runs once it is.
func (l *Loop) CallSoonThreadsafe(fn func()) (*Handle, error) {
	if l.IsClosed() {
		return nil, usageError("CallSoonThreadsafe", ErrLoopClosed)
	}
	h := newHandle(l, fn)
	if err := l.queue.put(h); err != nil {
		return nil, usageError("CallSoonThreadsafe", err)
	}
	return h, nil
}

// AddReader calls fn whenever fd is readable, until RemoveReader. Replacing
// an existing reader cancels its handle.
func (l *Loop) AddReader(fd int, fn func()) error {
	return l.addFD("AddReader", fd, hub.Read, fn)
}

// AddWriter calls fn whenever fd is writable, until RemoveWriter. Replacing
// an existing writer cancels its handle.
func (l *Loop) AddWriter(fd int, fn func()) error {
	return l.addFD("AddWriter", fd, hub.Write, fn)
}

func (l *Loop) addFD(op string, fd int, interest hub.Interest, fn func()) error {
	if err := l.checkCall(op); err != nil {
		return err
	}
	if err := l.selector.register(fd, interest, newHandle(l, fn)); err != nil {
		if err == ErrLoopClosed {
			return usageError(op, err)
		}
		return err
	}
	return nil
}

// RemoveReader stops watching fd for reads, reporting whether it was.
func (l *Loop) RemoveReader(fd int) bool {
	if l.checkThread() != nil {
		return false
	}
	return l.selector.unregister(fd, hub.Read)
}

// RemoveWriter stops watching fd for writes, reporting whether it was.
func (l *Loop) RemoveWriter(fd int) bool {
	if l.checkThread() != nil {
		return false
	}
	return l.selector.unregister(fd, hub.Write)
}

// RunForever runs the loop until Stop is called.
func (l *Loop) RunForever() error {
	if !l.state.TryTransition(StateIdle, StateRunning) {
		if l.IsClosed() {
			return usageError("RunForever", ErrLoopClosed)
		}
		return usageError("RunForever", ErrLoopRunning)
	}

	l.owner.Store(goroutineid.Get())
	l.stopping.Store(false)

	defer func() {
		l.queue.stop()
		l.sched.cancelAll()
		l.propagateDebug(false)
		l.stopping.Store(false)
		l.owner.Store(0)
		l.state.TryTransition(StateRunning, StateIdle)
	}()

	if err := l.queue.start(); err != nil {
		return err
	}
	l.propagateDebug(l.debug.Load())
	l.reschedule()

	for !l.stopping.Load() {
		if !l.sched.consume() && !l.selector.blockUntilReady(-1) {
			continue
		}
		l.runOnce()
	}

	return nil
}

// Stop makes RunForever return, once the current callback returns. Any
// callbacks remaining in the batch run on the next RunForever. Stop has no
// effect on a loop that is not running.
func (l *Loop) Stop() {
	if !l.IsRunning() {
		return
	}
	l.stopping.Store(true)
	l.selector.interrupt()
}

// runOnce is a single iteration: collect ready I/O and due timers, then run
// everything that was ready at the start of the batch.
func (l *Loop) runOnce() {
	l.sched.cancelAll()
	l.selector.clearInterrupt()

	l.events = l.selector.drain(l.events[:0])
	for i, ev := range l.events {
		if !ev.handle.Cancelled() {
			l.ready.push(ev.handle)
		}
		l.events[i] = readyEvent{}
	}

	l.timers.drain(l.rt.Now().Add(l.clockResolution), &l.ready)

	for ntodo := l.ready.len(); ntodo > 0 && !l.stopping.Load(); ntodo-- {
		h, _ := l.ready.pop()
		if h.Cancelled() {
			continue
		}
		l.runHandle(h)
	}

	if !l.stopping.Load() {
		l.selector.rearm()
	}

	l.reschedule()
}

func (l *Loop) reschedule() {
	if l.ready.len() != 0 {
		l.sched.requestSoon()
		return
	}
	if t := l.timers.peek(); t != nil {
		l.sched.requestAt(t.when)
	}
}

func (l *Loop) runHandle(h *Handle) {
	debug := l.debug.Load()
	var start time.Time
	if debug {
		start = time.Now()
	}
	defer func() {
		if r := recover(); r != nil {
			l.CallExceptionHandler(ExceptionContext{
				Message: "eventloop: exception in callback",
				Err:     &CallbackError{Value: r, Callback: h.String()},
				Handle:  h,
			})
		}
		if debug {
			if elapsed := time.Since(start); elapsed >= l.slowCallbackDuration {
				l.reportSlowCallback(h, elapsed)
			}
		}
	}()
	h.fn()
}

// Close releases the loop's resources: readiness registrations, the
// cross-goroutine queue, pending callbacks, and the default executor. It is
// idempotent, and fails if the loop is running. Safe to call from any
// goroutine.
func (l *Loop) Close() error {
	l.closeMu.Lock()
	defer l.closeMu.Unlock()

	if l.IsClosed() {
		return nil
	}
	if !l.state.TryTransition(StateIdle, StateClosed) {
		return usageError("Close", ErrLoopRunning)
	}

	l.selector.close()
	l.queue.close()
	l.sched.cancelAll()
	l.ready.clear()
	l.timers.clear()

	return l.shutdownExecutor()
}

// SetDebug toggles debug mode. In debug mode slow callbacks are reported,
// methods that are not goroutine safe fail with ErrNonThreadSafeCall when
// called from the wrong goroutine, and blocking detection is enabled on
// runtimes implementing hub.DebugController.
func (l *Loop) SetDebug(enabled bool) {
	l.debug.Store(enabled)
	if l.IsRunning() && l.onLoopGoroutine() {
		l.propagateDebug(enabled)
	}
}

// Debug reports whether debug mode is enabled.
func (l *Loop) Debug() bool { return l.debug.Load() }

// SlowCallbackDuration returns the slow callback threshold.
func (l *Loop) SlowCallbackDuration() time.Duration { return l.slowCallbackDuration }

func (l *Loop) propagateDebug(enabled bool) {
	dc, ok := l.rt.(hub.DebugController)
	if !ok || enabled == l.debugPropagated {
		return
	}
	l.debugPropagated = enabled
	dc.SetDebugBlocking(enabled, l.slowCallbackDuration)
}

func (l *Loop) onLoopGoroutine() bool {
	owner := l.owner.Load()
	return owner != 0 && owner == goroutineid.Get()
}

func (l *Loop) checkCall(op string) error {
	if l.IsClosed() {
		return usageError(op, ErrLoopClosed)
	}
	if err := l.checkThread(); err != nil {
		return usageError(op, err)
	}
	return nil
}

// checkThread enforces, in debug mode, that the caller is on the running
// loop's goroutine.
func (l *Loop) checkThread() error {
	if !l.debug.Load() {
		return nil
	}
	if owner := l.owner.Load(); owner != 0 && owner != goroutineid.Get() {
		return ErrNonThreadSafeCall
	}
	return nil
}
