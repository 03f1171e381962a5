// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"os"
	"time"

	"github.com/joeycumines/stumpy"
	"github.com/joeycumines/logiface"
)

func defaultLogger() *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(os.Stderr)),
		stumpy.L.WithLevel(stumpy.L.LevelWarning()),
	).Logger()
}

// ExceptionContext describes an error the loop could not return to a caller.
type ExceptionContext struct {
	// Err is the error, typically a [*CallbackError].
	Err error
	// Handle is the callback being run, if any.
	Handle *Handle
	// Future is the future involved, if any.
	Future *Future
	// Message summarises the failure.
	Message string
}

// ExceptionHandler is called, on the loop goroutine, for each
// [ExceptionContext].
type ExceptionHandler func(l *Loop, ctx ExceptionContext)

// SetExceptionHandler replaces the exception handler. A nil handler
// restores the default, which logs at error level.
func (l *Loop) SetExceptionHandler(handler ExceptionHandler) {
	if handler == nil {
		l.exceptionHandler.Store(nil)
		return
	}
	l.exceptionHandler.Store(&handler)
}

// ExceptionHandler returns the custom exception handler, or nil.
func (l *Loop) ExceptionHandler() ExceptionHandler {
	if h := l.exceptionHandler.Load(); h != nil {
		return *h
	}
	return nil
}

// CallExceptionHandler reports ctx through the current exception handler.
// A panicking handler is logged, and otherwise ignored.
func (l *Loop) CallExceptionHandler(ctx ExceptionContext) {
	handler := l.ExceptionHandler()
	if handler == nil {
		l.DefaultExceptionHandler(ctx)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.logger.Err().
				Uint64("loop_id", l.id).
				Any("panic", r).
				Err(ctx.Err).
				Log("eventloop: exception handler panicked")
		}
	}()
	handler(l, ctx)
}

// DefaultExceptionHandler logs ctx at error level.
func (l *Loop) DefaultExceptionHandler(ctx ExceptionContext) {
	msg := ctx.Message
	if msg == "" {
		msg = "eventloop: unhandled error"
	}
	b := l.logger.Err().
		Uint64("loop_id", l.id).
		Err(ctx.Err)
	if ctx.Handle != nil {
		b = b.Str("handle", ctx.Handle.String())
	}
	if ctx.Future != nil {
		b = b.Bool("future_cancelled", ctx.Future.Cancelled())
	}
	b.Log(msg)
}

func (l *Loop) reportSlowCallback(h *Handle, elapsed time.Duration) {
	if l.slowLimiter != nil {
		if _, ok := l.slowLimiter.Allow(slowCallbackCategory); !ok {
			return
		}
	}
	l.logger.Warning().
		Uint64("loop_id", l.id).
		Str("handle", h.String()).
		Dur("duration", elapsed).
		Str("category", slowCallbackCategory).
		Log("eventloop: slow callback")
}

const slowCallbackCategory = "slow_callback"
