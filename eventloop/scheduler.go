// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"sync"
	"time"

	"github.com/joeycumines/go-greenloop/hub"
)

type schedulerState int

const (
	schedulerIdle schedulerState = iota
	schedulerSoon
	schedulerTimer
)

// scheduler tracks the single outstanding request to resume the loop: soon,
// at a deadline, or not at all. A soon request supersedes, and cancels, any
// deadline. Requests may come from any goroutine; transitions to soon call
// interrupt, which must not block.
type scheduler struct {
	rt        hub.Runtime
	interrupt func()
	deadline  time.Time
	timer     hub.Timer
	gen       uint64
	mu        sync.Mutex
	state     schedulerState
}

func newScheduler(rt hub.Runtime, interrupt func()) *scheduler {
	return &scheduler{rt: rt, interrupt: interrupt}
}

func (s *scheduler) requestSoon() {
	s.mu.Lock()
	if s.state == schedulerSoon {
		s.mu.Unlock()
		return
	}
	s.cancelTimerLocked()
	s.state = schedulerSoon
	s.mu.Unlock()
	s.interrupt()
}

// requestAt asks for a resumption at deadline. It is a no-op if a soon
// request, or an earlier or equal deadline, is already pending.
func (s *scheduler) requestAt(deadline time.Time) {
	s.mu.Lock()
	switch s.state {
	case schedulerSoon:
		s.mu.Unlock()
		return
	case schedulerTimer:
		if !s.deadline.After(deadline) {
			s.mu.Unlock()
			return
		}
		s.cancelTimerLocked()
	}

	delay := deadline.Sub(s.rt.Now())
	if delay <= 0 {
		s.state = schedulerSoon
		s.mu.Unlock()
		s.interrupt()
		return
	}

	s.gen++
	gen := s.gen
	s.state = schedulerTimer
	s.deadline = deadline
	s.timer = s.rt.Schedule(delay, func() { s.fire(gen) })
	s.mu.Unlock()
}

func (s *scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.state != schedulerTimer || s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.state = schedulerSoon
	s.mu.Unlock()
	s.interrupt()
}

// consume takes a pending soon request.
func (s *scheduler) consume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != schedulerSoon {
		return false
	}
	s.state = schedulerIdle
	return true
}

// cancelAll drops any pending request.
func (s *scheduler) cancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelTimerLocked()
	s.state = schedulerIdle
}

func (s *scheduler) cancelTimerLocked() {
	if s.timer != nil {
		s.timer.Cancel()
		s.timer = nil
	}
}
