// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"sync"
)

// chunkSize is the number of handles per node in a chunkedIngress.
const chunkSize = 128

// chunkedIngress is a FIFO of handles, stored as a linked list of
// fixed-size chunks recycled through a pool. It backs both the ready queue,
// which only the loop goroutine touches, and the cross-goroutine queue,
// which guards it with a mutex.
//
// Thread Safety: NOT thread-safe.
type chunkedIngress struct { // betteralign:ignore
	head   *chunk
	tail   *chunk
	length int
}

var chunkPool = sync.Pool{
	New: func() any {
		return &chunk{}
	},
}

// chunk is a node of a chunkedIngress. Slots [r, w) hold queued handles.
type chunk struct {
	handles [chunkSize]*Handle
	next    *chunk
	r       int
	w       int
}

func (c *chunk) full() bool { return c.w == chunkSize }

func (c *chunk) drained() bool { return c.r == c.w }

// release zeroes the chunk and returns it to the pool.
func (c *chunk) release() {
	clear(c.handles[c.r:c.w])
	c.next = nil
	c.r, c.w = 0, 0
	chunkPool.Put(c)
}

func (q *chunkedIngress) push(h *Handle) {
	switch {
	case q.tail == nil:
		q.head = chunkPool.Get().(*chunk)
		q.tail = q.head
	case q.tail.full():
		c := chunkPool.Get().(*chunk)
		q.tail.next = c
		q.tail = c
	}
	q.tail.handles[q.tail.w] = h
	q.tail.w++
	q.length++
}

// pop returns false if the queue is empty.
func (q *chunkedIngress) pop() (*Handle, bool) {
	c := q.head
	if c == nil || c.drained() {
		return nil, false
	}

	h := c.handles[c.r]
	c.handles[c.r] = nil
	c.r++
	q.length--

	if c.drained() {
		if c.next == nil {
			// last chunk: rewind in place
			c.r, c.w = 0, 0
		} else {
			q.head = c.next
			c.release()
		}
	}

	return h, true
}

func (q *chunkedIngress) len() int {
	return q.length
}

// clear drops every queued handle, releasing all chunks.
func (q *chunkedIngress) clear() {
	for c := q.head; c != nil; {
		next := c.next
		c.release()
		c = next
	}
	*q = chunkedIngress{}
}
