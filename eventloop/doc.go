// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package eventloop implements a reactor, in the style of a coroutine
// framework's event loop, that runs entirely on top of a green-thread
// runtime ([hub.Runtime]).
//
// # Architecture
//
// The runtime owns the OS poller and the only real timers. A [Loop] holds,
// rather than extends, the pieces that adapt its contract onto the runtime:
//
//   - a timer heap, with lazy cancellation
//   - a selector, recording readiness reported by runtime listeners until
//     the loop drains it
//   - a cross-goroutine queue, waking the loop through a socket pair
//   - a scheduler, keeping at most one pending request to resume the loop,
//     either soon or at the next timer deadline
//
// The goroutine calling [Loop.RunForever] drives the loop. Between
// iterations it blocks on a runtime event, never polling.
//
// # Thread Safety
//
// Only [Loop.CallSoonThreadsafe], [Loop.Stop], [Loop.Close], and the state
// accessors may be called from other goroutines. Everything else belongs to
// the driving goroutine, or may be used while the loop is not running. In
// debug mode ([Loop.SetDebug]) violations fail with [ErrNonThreadSafeCall].
//
// # Bridging
//
// [Wrap] exposes a greenlet's outcome as a [Future], and [Link] blocks a
// goroutine, other than the driving one, until a future completes.
//
// # Usage
//
//	h, err := hub.New()
//	if err != nil {
//	    return err
//	}
//	defer h.Close()
//
//	loop, err := eventloop.New(h)
//	if err != nil {
//	    return err
//	}
//	defer loop.Close()
//
//	loop.CallSoon(func() {
//	    fmt.Println("hello")
//	    loop.Stop()
//	})
//	return loop.RunForever()
package eventloop
