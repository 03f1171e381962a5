// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"github.com/joeycumines/go-greenloop/hub"
)

// Wrap returns a future, owned by l, that completes with the outcome of g.
//
// The greenlet must not have been started: a running greenlet could finish
// before it is linked, and a finished one never notifies, so both return a
// UsageError. The outcome is delivered on the loop goroutine, via
// CallSoonThreadsafe, so the future is only ever written by its loop.
func Wrap(l *Loop, g *hub.Greenlet) (*Future, error) {
	if g.Dead() {
		return nil, usageError("Wrap", ErrGreenletFinished)
	}
	if g.Started() {
		return nil, usageError("Wrap", ErrGreenletRunning)
	}

	fut := l.NewFuture()

	g.Link(func(g *hub.Greenlet) {
		result, err, _ := g.Result()
		if _, e := l.CallSoonThreadsafe(func() {
			if fut.Done() {
				return
			}
			if err != nil {
				_ = fut.SetError(err)
			} else {
				_ = fut.SetResult(result)
			}
		}); e != nil {
			l.logger.Warning().
				Uint64("loop_id", l.id).
				Uint64("greenlet", g.ID()).
				Err(e).
				Log("eventloop: dropped greenlet result")
		}
	})

	return fut, nil
}

// Link blocks the calling goroutine, using an event from rt, until aw is
// done, then returns its outcome.
//
// It must not be called from the goroutine driving aw's loop, which would
// deadlock, and fails with a UsageError instead. The loop must be running,
// or later run, for Link to return.
func Link(rt hub.Runtime, aw Awaitable) (any, error) {
	l := aw.Loop()
	if l.onLoopGoroutine() {
		return nil, usageError("Link", ErrLinkFromLoop)
	}

	ev := rt.NewEvent()

	if _, err := l.CallSoonThreadsafe(func() {
		aw.AddDoneCallback(func(f *Future) {
			if result, err := f.Result(); err != nil {
				_ = ev.SendError(err)
			} else {
				_ = ev.Send(result)
			}
		})
	}); err != nil {
		return nil, err
	}

	return ev.Wait()
}

// LinkLoop is Link, additionally requiring that aw belongs to l.
func LinkLoop(l *Loop, aw Awaitable) (any, error) {
	if aw.Loop() != l {
		return nil, usageError("Link", ErrForeignFuture)
	}
	return Link(l.rt, aw)
}
