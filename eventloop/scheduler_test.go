// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler() (*scheduler, *countingRuntime, *atomic.Int32) {
	rt := &countingRuntime{fakeRuntime: newFakeRuntime()}
	var interrupts atomic.Int32
	s := newScheduler(rt, func() { interrupts.Add(1) })
	return s, rt, &interrupts
}

func TestScheduler_RequestSoon(t *testing.T) {
	s, _, interrupts := newTestScheduler()

	assert.False(t, s.consume())
	s.requestSoon()
	s.requestSoon()
	assert.Equal(t, int32(1), interrupts.Load())
	assert.True(t, s.consume())
	assert.False(t, s.consume())
}

func TestScheduler_SoonSupersedesTimer(t *testing.T) {
	s, rt, _ := newTestScheduler()

	s.requestAt(time.Now().Add(time.Hour))
	require.Equal(t, int32(1), rt.scheduled.Load())
	timer := rt.last
	assert.True(t, timer.Pending())

	s.requestSoon()
	assert.False(t, timer.Pending())
	assert.True(t, s.consume())
}

func TestScheduler_RequestAtNoopWhenSoon(t *testing.T) {
	s, rt, _ := newTestScheduler()
	s.requestSoon()
	s.requestAt(time.Now().Add(time.Hour))
	assert.Zero(t, rt.scheduled.Load())
	assert.True(t, s.consume())
}

func TestScheduler_RequestAtKeepsEarliest(t *testing.T) {
	s, rt, _ := newTestScheduler()
	now := time.Now()

	s.requestAt(now.Add(time.Hour))
	first := rt.last
	s.requestAt(now.Add(2 * time.Hour))
	assert.Equal(t, int32(1), rt.scheduled.Load())
	assert.True(t, first.Pending())

	s.requestAt(now.Add(time.Minute))
	assert.Equal(t, int32(2), rt.scheduled.Load())
	assert.False(t, first.Pending())
	assert.True(t, rt.last.Pending())

	s.cancelAll()
	assert.False(t, rt.last.Pending())
	assert.False(t, s.consume())
}

func TestScheduler_PastDeadlineIsSoon(t *testing.T) {
	s, rt, interrupts := newTestScheduler()
	s.requestAt(time.Now().Add(-time.Second))
	assert.Zero(t, rt.scheduled.Load())
	assert.Equal(t, int32(1), interrupts.Load())
	assert.True(t, s.consume())
}

func TestScheduler_TimerFirePromotesToSoon(t *testing.T) {
	s, _, interrupts := newTestScheduler()
	s.requestAt(time.Now().Add(10 * time.Millisecond))
	assert.False(t, s.consume())
	require.Eventually(t, func() bool { return interrupts.Load() == 1 }, 5*time.Second, time.Millisecond)
	assert.True(t, s.consume())
}

func TestScheduler_StaleFireIgnored(t *testing.T) {
	s, _, interrupts := newTestScheduler()
	s.requestAt(time.Now().Add(time.Hour))
	gen := s.gen
	s.cancelAll()
	s.fire(gen)
	assert.Zero(t, interrupts.Load())
	assert.False(t, s.consume())
}
