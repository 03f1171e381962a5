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
	"github.com/joeycumines/logiface"
)

type selectorKey struct {
	fd       int
	interest hub.Interest
}

type registration struct {
	listener hub.Listener
	handle   *Handle
}

// readyEvent is one (fd, interest) that fired since the last drain, with the
// handle registered for it at drain time.
type readyEvent struct {
	handle   *Handle
	fd       int
	interest hub.Interest
}

// selector multiplexes the loop's readiness registrations onto the hub.
//
// Hub listeners run on the hub goroutine, and only record what fired. The
// pending set is level-triggered: any number of notifications for one
// (fd, interest) coalesce into a single flag, cleared by drain. Listeners
// that fired stay disarmed until rearm, so a descriptor the loop has not
// serviced yet is not reported again.
type selector struct {
	rt      hub.Runtime
	logger  *logiface.Logger[logiface.Event]
	regs    map[selectorKey]*registration
	pending map[int]hub.Interest
	spare   map[int]hub.Interest
	waiter  hub.Event
	fired   []selectorKey
	mu      sync.Mutex

	interrupted bool
	closed      bool
}

func newSelector(rt hub.Runtime, logger *logiface.Logger[logiface.Event]) *selector {
	return &selector{
		rt:      rt,
		logger:  logger,
		regs:    make(map[selectorKey]*registration),
		pending: make(map[int]hub.Interest),
		spare:   make(map[int]hub.Interest),
	}
}

// register associates h with (fd, interest). An existing registration is
// replaced, and its handle cancelled.
func (s *selector) register(fd int, interest hub.Interest, h *Handle) error {
	key := selectorKey{fd: fd, interest: interest}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrLoopClosed
	}

	if reg := s.regs[key]; reg != nil {
		prev := reg.handle
		reg.handle = h
		prev.Cancel()
		return nil
	}

	listener, err := s.rt.AddListener(fd, interest, s.notifier(interest))
	if err != nil {
		return err
	}
	s.regs[key] = &registration{listener: listener, handle: h}

	return nil
}

func (s *selector) notifier(interest hub.Interest) func(fd int) {
	return func(fd int) {
		s.mu.Lock()
		s.pending[fd] |= interest
		w := s.waiter
		s.waiter = nil
		s.mu.Unlock()
		if w != nil {
			_ = w.Send(nil)
		}
	}
}

// unregister removes the registration for (fd, interest), detaching it from
// the hub whether or not it ever fired. It reports whether there was one.
func (s *selector) unregister(fd int, interest hub.Interest) bool {
	key := selectorKey{fd: fd, interest: interest}

	s.mu.Lock()
	defer s.mu.Unlock()

	reg := s.regs[key]
	if reg == nil {
		return false
	}
	s.removeLocked(key, reg)
	return true
}

func (s *selector) removeLocked(key selectorKey, reg *registration) {
	delete(s.regs, key)
	reg.handle.Cancel()
	if mask := s.pending[key.fd] &^ key.interest; mask != 0 {
		s.pending[key.fd] = mask
	} else {
		delete(s.pending, key.fd)
	}
	if err := reg.listener.Cancel(); err != nil {
		s.logger.Warning().
			Err(err).
			Int("fd", key.fd).
			Stringer("interest", key.interest).
			Log("eventloop: failed to cancel listener")
	}
}

// registered reports the handle for (fd, interest), if any.
func (s *selector) registered(fd int, interest hub.Interest) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reg := s.regs[selectorKey{fd: fd, interest: interest}]; reg != nil {
		return reg.handle
	}
	return nil
}

// drain appends everything that fired since the last drain to buf, masked
// by the current registrations, and clears the pending set.
func (s *selector) drain(buf []readyEvent) []readyEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.pending
	s.pending, s.spare = s.spare, pending

	for fd, mask := range pending {
		for _, interest := range [...]hub.Interest{hub.Read, hub.Write} {
			if mask&interest == 0 {
				continue
			}
			key := selectorKey{fd: fd, interest: interest}
			reg := s.regs[key]
			if reg == nil {
				continue
			}
			buf = append(buf, readyEvent{handle: reg.handle, fd: fd, interest: interest})
			s.fired = append(s.fired, key)
		}
		delete(pending, fd)
	}

	return buf
}

// rearm re-enables the listeners returned by previous drains.
func (s *selector) rearm() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, key := range s.fired {
		s.fired[i] = selectorKey{}
		reg := s.regs[key]
		if reg == nil {
			continue
		}
		if err := reg.listener.Rearm(); err != nil {
			s.logger.Err().
				Err(err).
				Int("fd", key.fd).
				Stringer("interest", key.interest).
				Log("eventloop: failed to rearm listener")
		}
	}
	s.fired = s.fired[:0]
}

// blockUntilReady waits until a notification is pending, interrupt is
// called, or timeout elapses. A negative timeout waits indefinitely. It
// reports whether it returned for a notification or an interrupt.
func (s *selector) blockUntilReady(timeout time.Duration) bool {
	s.mu.Lock()
	if s.readyLocked() {
		s.mu.Unlock()
		return true
	}
	if timeout == 0 || s.closed {
		s.mu.Unlock()
		return false
	}
	w := s.rt.NewEvent()
	s.waiter = w
	s.mu.Unlock()

	var timer hub.Timer
	if timeout > 0 {
		timer = s.rt.Schedule(timeout, func() { _ = w.Send(nil) })
	}

	_, _ = w.Wait()

	if timer != nil {
		timer.Cancel()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waiter == w {
		s.waiter = nil
	}
	return s.readyLocked()
}

// readyLocked consumes a pending interrupt.
func (s *selector) readyLocked() bool {
	if s.interrupted {
		s.interrupted = false
		return true
	}
	return len(s.pending) != 0
}

// interrupt wakes blockUntilReady, from any goroutine. Without a waiter the
// interrupt is remembered, and the next blockUntilReady returns at once.
func (s *selector) interrupt() {
	s.mu.Lock()
	s.interrupted = true
	w := s.waiter
	s.waiter = nil
	s.mu.Unlock()
	if w != nil {
		_ = w.Send(nil)
	}
}

// clearInterrupt discards a remembered interrupt.
func (s *selector) clearInterrupt() {
	s.mu.Lock()
	s.interrupted = false
	s.mu.Unlock()
}

// close removes every registration exactly once. It is idempotent.
func (s *selector) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for key, reg := range s.regs {
		s.removeLocked(key, reg)
	}
	clear(s.pending)
	s.fired = nil
	w := s.waiter
	s.waiter = nil
	s.mu.Unlock()
	if w != nil {
		_ = w.Send(nil)
	}
}
