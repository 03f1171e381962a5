// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"container/heap"
	"time"
)

// timerQueue implements heap.Interface, ordered by deadline then insertion.
type timerQueue []*TimerHandle

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].when.Equal(q[j].when) {
		return q[i].seq < q[j].seq
	}
	return q[i].when.Before(q[j].when)
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x any) {
	t := x.(*TimerHandle)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}

// timerHeap is the loop's min-heap of timers. It is only accessed from the
// loop goroutine, or while the loop is not running.
type timerHeap struct {
	q   timerQueue
	seq uint64
}

func (h *timerHeap) push(t *TimerHandle) {
	h.seq++
	t.seq = h.seq
	t.scheduled = true
	heap.Push(&h.q, t)
}

// peek returns the earliest uncancelled timer, discarding cancelled ones
// found at the head.
func (h *timerHeap) peek() *TimerHandle {
	for len(h.q) > 0 {
		t := h.q[0]
		if !t.Cancelled() {
			return t
		}
		h.pop()
	}
	return nil
}

func (h *timerHeap) pop() *TimerHandle {
	if len(h.q) == 0 {
		return nil
	}
	t := heap.Pop(&h.q).(*TimerHandle)
	t.scheduled = false
	return t
}

func (h *timerHeap) len() int {
	return len(h.q)
}

// drain moves every uncancelled timer due at or before end to ready.
func (h *timerHeap) drain(end time.Time, ready *chunkedIngress) {
	for len(h.q) > 0 && !h.q[0].when.After(end) {
		t := h.pop()
		if t.Cancelled() {
			continue
		}
		ready.push(&t.Handle)
	}
}

func (h *timerHeap) clear() {
	for _, t := range h.q {
		t.index = -1
		t.scheduled = false
	}
	h.q = nil
}
