// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrUsage matches every [UsageError], via [errors.Is].
	ErrUsage = errors.New("eventloop: usage error")

	// ErrLoopClosed is returned when scheduling on, or running, a closed loop.
	ErrLoopClosed = errors.New("eventloop: loop is closed")

	// ErrLoopRunning is returned by RunForever when the loop is already
	// running, and by Close while it is running.
	ErrLoopRunning = errors.New("eventloop: loop is already running")

	// ErrNonThreadSafeCall is returned in debug mode, when a method that may
	// only be called from the loop's goroutine is called from another
	// goroutine while the loop is running.
	ErrNonThreadSafeCall = errors.New("eventloop: non-thread-safe operation invoked from another goroutine")

	// ErrLoopStoppedEarly is returned by RunUntilComplete when the loop was
	// stopped before the awaited future completed.
	ErrLoopStoppedEarly = errors.New("eventloop: loop stopped before the future completed")

	// ErrGreenletRunning is returned by Wrap for a greenlet that was already
	// started.
	ErrGreenletRunning = errors.New("eventloop: greenlet already started")

	// ErrGreenletFinished is returned by Wrap for a greenlet that already
	// finished. Wrapping it would produce a future that never completes.
	ErrGreenletFinished = errors.New("eventloop: greenlet already finished")

	// ErrLinkFromLoop is returned by Link when called from the goroutine
	// driving the future's loop, which would deadlock.
	ErrLinkFromLoop = errors.New("eventloop: cannot link from the loop's own goroutine")

	// ErrForeignFuture is returned when a future belongs to a different loop.
	ErrForeignFuture = errors.New("eventloop: future belongs to a different loop")

	// ErrUnresolvedAddress is returned by SockConnect for any address that is
	// not a literal IP and port (or an absolute unix socket path).
	ErrUnresolvedAddress = errors.New("eventloop: address is not resolved")

	// ErrFutureNotDone is returned by Future.Result while the future is
	// pending.
	ErrFutureNotDone = errors.New("eventloop: future is not done")

	// ErrFutureDone is returned when setting the outcome of a future that
	// already has one.
	ErrFutureDone = errors.New("eventloop: future is already done")

	// ErrCancelled is the outcome of a cancelled future.
	ErrCancelled = errors.New("eventloop: cancelled")

	// ErrExecutorClosed is returned when submitting to a closed executor.
	ErrExecutorClosed = errors.New("eventloop: executor is closed")
)

// UsageError indicates programmer misuse, and is always returned
// synchronously. It matches both its wrapped sentinel and [ErrUsage].
type UsageError struct {
	Err error
	Op  string
}

func (e *UsageError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + " (" + e.Op + ")"
}

func (e *UsageError) Unwrap() error { return e.Err }

func (e *UsageError) Is(target error) bool { return target == ErrUsage }

func usageError(op string, err error) error {
	return &UsageError{Op: op, Err: err}
}

// CallbackError wraps a value recovered from a panicking callback.
type CallbackError struct {
	// Value is the recovered panic value.
	Value any
	// Callback describes the callback that panicked.
	Callback string
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("eventloop: callback %s panicked: %v", e.Callback, e.Value)
}

// Unwrap returns the panic value if it is an error.
func (e *CallbackError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
