// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"errors"
	"sync"

	"github.com/joeycumines/go-greenloop/hub"
	"golang.org/x/sys/unix"
)

// threadQueue hands handles from arbitrary goroutines to the loop.
//
// Producers push under mu and write a single wakeup byte to a socket pair
// obtained from the runtime's primitives. While started, the read side is
// registered with the loop's selector, and the consumer re-injects every
// queued handle into the ready queue. Handles are never dropped by stop:
// whatever is queued is delivered after the next start.
type threadQueue struct {
	loop     *Loop
	prims    hub.Primitives
	consumer *Handle
	items    chunkedIngress
	rfd      int
	wfd      int
	mu       sync.Mutex

	wakePending bool
	started     bool
	closed      bool
}

func newThreadQueue(l *Loop, prims hub.Primitives) (*threadQueue, error) {
	rfd, wfd, err := prims.Socketpair()
	if err != nil {
		return nil, err
	}
	q := &threadQueue{
		loop:  l,
		prims: prims,
		rfd:   rfd,
		wfd:   wfd,
	}
	return q, nil
}

// put enqueues h. It is safe to call from any goroutine.
func (q *threadQueue) put(h *Handle) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrLoopClosed
	}

	q.items.push(h)

	if !q.wakePending {
		_, err := q.prims.Write(q.wfd, []byte{0})
		switch {
		case err == nil, errors.Is(err, unix.EAGAIN):
			// a full buffer still has bytes for the consumer to find
			q.wakePending = true
		default:
			q.loop.logger.Err().
				Err(err).
				Int("fd", q.wfd).
				Log("eventloop: failed to write wakeup byte")
		}
	}

	return nil
}

// start binds the consumer to the loop's selector. Must be called from the
// loop goroutine.
func (q *threadQueue) start() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrLoopClosed
	}
	if q.started {
		q.mu.Unlock()
		return nil
	}
	q.started = true
	queued := q.items.len() != 0
	q.mu.Unlock()

	q.consumer = newHandle(q.loop, q.consume)
	if err := q.loop.selector.register(q.rfd, hub.Read, q.consumer); err != nil {
		q.mu.Lock()
		q.started = false
		q.mu.Unlock()
		return err
	}

	if queued {
		q.loop.callSoonHandle(newHandle(q.loop, q.consume))
	}

	return nil
}

// stop unbinds the consumer, leaving queued handles in place.
func (q *threadQueue) stop() {
	q.mu.Lock()
	started := q.started
	q.started = false
	q.mu.Unlock()
	if started {
		q.loop.selector.unregister(q.rfd, hub.Read)
	}
}

// consume drains the wakeup bytes, then moves every queued handle to the
// ready queue.
func (q *threadQueue) consume() {
	var buf [64]byte

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	for {
		n, err := q.prims.Read(q.rfd, buf[:])
		if err != nil || n <= 0 {
			break
		}
	}
	q.wakePending = false

	for {
		h, ok := q.items.pop()
		if !ok {
			break
		}
		q.loop.callSoonHandle(h)
	}
}

func (q *threadQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.len()
}

// close releases the socket pair, dropping anything still queued. It is
// idempotent.
func (q *threadQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true

	if n := q.items.len(); n != 0 {
		q.loop.logger.Debug().
			Int("count", n).
			Log("eventloop: dropping queued callbacks on close")
	}
	q.items.clear()

	_ = q.prims.Close(q.rfd)
	if q.wfd != q.rfd {
		_ = q.prims.Close(q.wfd)
	}
}
