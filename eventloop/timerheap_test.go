// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runAll(q *chunkedIngress) {
	for {
		h, ok := q.pop()
		if !ok {
			return
		}
		h.fn()
	}
}

func TestTimerHeap_Order(t *testing.T) {
	var (
		th    timerHeap
		order []int
	)
	base := time.Now()
	add := func(offset time.Duration, id int) *TimerHandle {
		tm := newTimerHandle(nil, base.Add(offset), func() { order = append(order, id) })
		th.push(tm)
		return tm
	}

	add(30*time.Millisecond, 4)
	add(10*time.Millisecond, 1)
	add(10*time.Millisecond, 2)
	add(0, 0)
	add(10*time.Millisecond, 3)
	add(time.Hour, 5)

	var ready chunkedIngress
	th.drain(base.Add(30*time.Millisecond), &ready)
	assert.Equal(t, 1, th.len())
	assert.Equal(t, 5, ready.len())
	runAll(&ready)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestTimerHeap_LazyCancel(t *testing.T) {
	var th timerHeap
	base := time.Now()
	ran := map[string]bool{}
	mk := func(name string, offset time.Duration) *TimerHandle {
		tm := newTimerHandle(nil, base.Add(offset), func() { ran[name] = true })
		th.push(tm)
		return tm
	}

	a := mk("a", 0)
	b := mk("b", time.Millisecond)
	c := mk("c", 2*time.Millisecond)

	b.Cancel()
	assert.Equal(t, 3, th.len(), "cancel must not remove from the heap")
	assert.True(t, b.scheduled)

	a.Cancel()
	assert.Same(t, c, th.peek())
	assert.Equal(t, 1, th.len())
	assert.False(t, a.scheduled)
	assert.False(t, b.scheduled)

	var ready chunkedIngress
	th.drain(base.Add(time.Second), &ready)
	runAll(&ready)
	assert.Equal(t, map[string]bool{"c": true}, ran)
	assert.Nil(t, th.peek())
	assert.Nil(t, th.pop())
}

func TestTimerHeap_Clear(t *testing.T) {
	var th timerHeap
	tm := newTimerHandle(nil, time.Now(), func() {})
	th.push(tm)
	th.clear()
	assert.Zero(t, th.len())
	assert.False(t, tm.scheduled)
	assert.Equal(t, -1, tm.index)
}

func TestChunkedIngress_FIFO(t *testing.T) {
	var q chunkedIngress
	const n = chunkSize*3 + 7

	var got []int
	for i := 0; i < n; i++ {
		q.push(newHandle(nil, func() { got = append(got, i) }))
	}
	require.Equal(t, n, q.len())

	for i := 0; i < n/2; i++ {
		h, ok := q.pop()
		require.True(t, ok)
		h.fn()
	}
	for i := n; i < n+10; i++ {
		q.push(newHandle(nil, func() { got = append(got, i) }))
	}
	for {
		h, ok := q.pop()
		if !ok {
			break
		}
		h.fn()
	}

	require.Len(t, got, n+10)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
	assert.Zero(t, q.len())
}

func TestChunkedIngress_Clear(t *testing.T) {
	var q chunkedIngress
	for i := 0; i < chunkSize+1; i++ {
		q.push(newHandle(nil, func() {}))
	}
	q.clear()
	assert.Zero(t, q.len())
	_, ok := q.pop()
	assert.False(t, ok)

	q.push(newHandle(nil, func() {}))
	assert.Equal(t, 1, q.len())
}

func TestHandle_String(t *testing.T) {
	assert.Contains(t, newHandle(nil, exampleCallback).String(), "exampleCallback")
	assert.Equal(t, "<nil>", newHandle(nil, nil).String())
}

func exampleCallback() {}
