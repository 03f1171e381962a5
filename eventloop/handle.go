// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"reflect"
	"runtime"
	"sync/atomic"
	"time"
)

// Handle is a deferred, cancellable callback invocation. A handle is owned
// by the loop that created it.
type Handle struct {
	fn        func()
	loop      *Loop
	cancelled atomic.Bool
}

func newHandle(l *Loop, fn func()) *Handle {
	return &Handle{fn: fn, loop: l}
}

// Cancel prevents the callback from running, if it has not started yet.
// It is safe to call more than once, and from any goroutine.
func (h *Handle) Cancel() {
	h.cancelled.Store(true)
}

// Cancelled reports whether Cancel was called.
func (h *Handle) Cancelled() bool {
	return h.cancelled.Load()
}

// String describes the callback, using its function name when available.
func (h *Handle) String() string {
	return funcName(h.fn)
}

func funcName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return "<nil>"
	}
	if f := runtime.FuncForPC(v.Pointer()); f != nil {
		return f.Name()
	}
	return "<unknown>"
}

// TimerHandle is a Handle scheduled for an absolute deadline. Cancellation
// is lazy: a cancelled timer stays in the loop's heap until it is drained.
type TimerHandle struct {
	when time.Time
	Handle
	seq       uint64
	index     int
	scheduled bool
}

func newTimerHandle(l *Loop, when time.Time, fn func()) *TimerHandle {
	t := &TimerHandle{when: when, index: -1}
	t.fn = fn
	t.loop = l
	return t
}

// When returns the deadline, on the clock of [Loop.Time].
func (t *TimerHandle) When() time.Time {
	return t.when
}
