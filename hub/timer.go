// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux || darwin

package hub

import (
	"container/heap"
	"time"
)

type hubTimer struct {
	when  time.Time
	fn    func()
	h     *Hub
	seq   uint64
	index int // heap index, -1 once fired or cancelled
}

var _ Timer = (*hubTimer)(nil)

// timerHeap orders by deadline, then by insertion order.
type timerHeap []*hubTimer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*hubTimer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// Schedule calls fn after delay, on the hub goroutine. Timers with equal
// deadlines fire in the order they were scheduled. Scheduling on a closed hub
// returns a timer that never fires.
func (h *Hub) Schedule(delay time.Duration, fn func()) Timer {
	t := &hubTimer{h: h, fn: fn, index: -1}

	h.mu.Lock()
	if h.closed || h.closing.Load() {
		h.mu.Unlock()
		h.logger.Debug().
			Dur("delay", delay).
			Log("hub: schedule after close ignored")
		return t
	}
	h.timerSeq++
	t.seq = h.timerSeq
	t.when = time.Now().Add(delay)
	heap.Push(&h.timers, t)
	head := t.index == 0
	h.mu.Unlock()

	// the hub goroutine recomputes its timeout before polling again
	if head && !h.onHubGoroutine() {
		h.wake()
	}

	return t
}

func (t *hubTimer) Cancel() bool {
	h := t.h
	h.mu.Lock()
	defer h.mu.Unlock()
	if t.index < 0 {
		return false
	}
	heap.Remove(&h.timers, t.index)
	return true
}

func (t *hubTimer) Pending() bool {
	h := t.h
	h.mu.Lock()
	defer h.mu.Unlock()
	return t.index >= 0
}

func (h *Hub) runTimers() {
	now := time.Now()

	h.mu.Lock()
	for len(h.timers) > 0 && !h.timers[0].when.After(now) {
		h.due = append(h.due, heap.Pop(&h.timers).(*hubTimer))
	}
	due := h.due
	h.mu.Unlock()

	for i, t := range due {
		due[i] = nil
		h.invoke("timer", -1, t.fn)
	}
	h.due = due[:0]
}
