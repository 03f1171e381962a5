// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package hub implements a cooperative green-thread runtime: a single hub
// goroutine that owns an OS readiness poller (epoll on Linux, kqueue on
// Darwin) and a timer heap, plus the primitives other schedulers need to
// cooperate with it.
//
// # Primitives
//
// The [Runtime] interface is the capability set consumers depend on:
//   - [Runtime.Spawn] and [Greenlet]: green threads, optionally created
//     without being started ([NewGreenlet])
//   - [Event]: a single-shot cross-task signal carrying one value or error
//   - [Runtime.Schedule] and [Timer]: cancellable one-shot timers
//   - [Runtime.AddListener] and [Listener]: fd readiness notification
//   - [Runtime.Primitives]: raw OS operations, never rebound
//
// # Listener arming
//
// The poller is level-triggered, but each (fd, interest) listener is armed
// at most once per dispatch: after its callback is invoked the interest is
// removed from the OS poller until [Listener.Rearm] is called. Consumers that
// defer the actual I/O (such as a reactor recording notifications for later)
// therefore never cause the hub goroutine to spin on an fd that is still
// ready.
//
// # Callbacks
//
// Listener and timer callbacks run on the hub goroutine. They must not block:
// a blocked callback stalls every timer and listener in the process. When
// blocking detection is enabled ([WithDebugBlocking],
// [Hub.SetDebugBlocking]) callbacks exceeding the resolution are reported via
// the configured logger.
package hub
