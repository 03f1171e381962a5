// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"errors"
	"time"
)

type futureState uint8

const (
	futurePending futureState = iota
	futureFinished
	futureCancelled
)

// Awaitable is a result that completes on a loop: a [*Future] or a [*Task].
type Awaitable interface {
	Loop() *Loop
	Done() bool
	Cancelled() bool
	Result() (any, error)
	Cancel() bool
	AddDoneCallback(fn func(f *Future)) (remove func() bool)
}

var (
	_ Awaitable = (*Future)(nil)
	_ Awaitable = (*Task)(nil)
)

// Future holds the eventual outcome of an operation: a value, an error, or
// cancellation. Once done it never changes.
//
// A future belongs to one loop, and, like the loop, must only be used from
// the loop goroutine. Other goroutines complete futures through
// [Loop.CallSoonThreadsafe], and wait on them through [Link].
type Future struct {
	loop      *Loop
	result    any
	err       error
	callbacks []*doneCallback
	state     futureState
}

type doneCallback struct {
	fn func(f *Future)
}

// NewFuture returns a pending future owned by l.
func (l *Loop) NewFuture() *Future {
	return &Future{loop: l}
}

// Loop returns the loop owning the future.
func (f *Future) Loop() *Loop { return f.loop }

// Done reports whether the future has a result, an error, or was cancelled.
func (f *Future) Done() bool { return f.state != futurePending }

// Cancelled reports whether the future was cancelled.
func (f *Future) Cancelled() bool { return f.state == futureCancelled }

// Result returns the outcome. It returns ErrFutureNotDone while pending, and
// ErrCancelled once cancelled.
func (f *Future) Result() (any, error) {
	switch f.state {
	case futurePending:
		return nil, ErrFutureNotDone
	case futureCancelled:
		return nil, ErrCancelled
	default:
		return f.result, f.err
	}
}

// SetResult completes the future with a value.
func (f *Future) SetResult(v any) error {
	if f.Done() {
		return ErrFutureDone
	}
	f.result = v
	f.state = futureFinished
	f.scheduleCallbacks()
	return nil
}

// SetError completes the future with a non-nil error.
func (f *Future) SetError(err error) error {
	if err == nil {
		return usageError("SetError", errors.New("eventloop: nil error"))
	}
	if f.Done() {
		return ErrFutureDone
	}
	f.err = err
	f.state = futureFinished
	f.scheduleCallbacks()
	return nil
}

// Cancel cancels a pending future, returning false if it was already done.
func (f *Future) Cancel() bool {
	if f.Done() {
		return false
	}
	f.state = futureCancelled
	f.scheduleCallbacks()
	return true
}

// AddDoneCallback arranges for fn to be called, via CallSoon, once the
// future is done. If it is already done, fn is scheduled immediately. The
// returned function removes the callback if it has not been scheduled yet,
// reporting whether it did.
func (f *Future) AddDoneCallback(fn func(f *Future)) (remove func() bool) {
	cb := &doneCallback{fn: fn}
	if f.Done() {
		f.scheduleCallback(cb)
		return func() bool { return false }
	}
	f.callbacks = append(f.callbacks, cb)
	return func() bool {
		for i, v := range f.callbacks {
			if v == cb {
				f.callbacks = append(f.callbacks[:i], f.callbacks[i+1:]...)
				return true
			}
		}
		return false
	}
}

func (f *Future) scheduleCallbacks() {
	callbacks := f.callbacks
	f.callbacks = nil
	for _, cb := range callbacks {
		f.scheduleCallback(cb)
	}
}

func (f *Future) scheduleCallback(cb *doneCallback) {
	if _, err := f.loop.CallSoon(func() { cb.fn(f) }); err != nil {
		f.loop.logger.Warning().
			Uint64("loop_id", f.loop.id).
			Err(err).
			Log("eventloop: dropped future done callback")
	}
}

// Task is a future resolved by running a function on its loop.
type Task struct {
	*Future
	fn func() (any, error)
}

// CreateTask schedules fn to run on the loop, returning a task that
// completes with its outcome. A panic in fn becomes the task's error.
// Cancelling the task before fn starts prevents it from running.
func (l *Loop) CreateTask(fn func() (any, error)) (*Task, error) {
	t := &Task{Future: l.NewFuture(), fn: fn}
	if _, err := l.CallSoon(t.step); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Task) step() {
	if t.Done() {
		return
	}
	result, err := t.call()
	if t.Done() {
		return
	}
	if err != nil {
		_ = t.SetError(err)
	} else {
		_ = t.SetResult(result)
	}
}

func (t *Task) call() (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, &CallbackError{Value: r, Callback: funcName(t.fn)}
		}
	}()
	return t.fn()
}

// Sleep returns a future that resolves, with nil, after delay. Cancelling
// the future cancels the underlying timer.
func (l *Loop) Sleep(delay time.Duration) (*Future, error) {
	fut := l.NewFuture()
	timer, err := l.CallLater(delay, func() {
		if !fut.Done() {
			_ = fut.SetResult(nil)
		}
	})
	if err != nil {
		return nil, err
	}
	fut.AddDoneCallback(func(f *Future) {
		if f.Cancelled() {
			timer.Cancel()
		}
	})
	return fut, nil
}

// RunUntilComplete runs the loop until aw is done, returning its outcome.
// If the loop is stopped first it returns ErrLoopStoppedEarly.
func (l *Loop) RunUntilComplete(aw Awaitable) (any, error) {
	if aw.Loop() != l {
		return nil, usageError("RunUntilComplete", ErrForeignFuture)
	}
	if err := l.checkCall("RunUntilComplete"); err != nil {
		return nil, err
	}

	remove := aw.AddDoneCallback(func(*Future) { l.Stop() })
	defer remove()

	if err := l.RunForever(); err != nil {
		return nil, err
	}
	if !aw.Done() {
		return nil, ErrLoopStoppedEarly
	}
	return aw.Result()
}
