// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package hub

import (
	"sync"
)

// Event is a single-shot signal between tasks, delivering at most one value
// or error. Every waiter, before or after the send, observes the same
// outcome.
type Event interface {
	// Wait blocks until the event is sent, returning the value, or the error
	// passed to SendError.
	Wait() (any, error)
	// Send delivers a value. It returns ErrEventAlreadySent if the event was
	// already sent.
	Send(value any) error
	// SendError delivers an error. It returns ErrEventAlreadySent if the
	// event was already sent.
	SendError(err error) error
	// Ready reports whether the event has been sent.
	Ready() bool
}

type event struct {
	value any
	err   error
	done  chan struct{}
	mu    sync.Mutex
	sent  bool
}

var _ Event = (*event)(nil)

// NewEvent returns a new, unsent Event.
func NewEvent() Event {
	return &event{done: make(chan struct{})}
}

func (e *event) Wait() (any, error) {
	<-e.done
	return e.value, e.err
}

func (e *event) Send(value any) error {
	return e.send(value, nil)
}

func (e *event) SendError(err error) error {
	return e.send(nil, err)
}

func (e *event) send(value any, err error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sent {
		return ErrEventAlreadySent
	}
	e.sent = true
	e.value = value
	e.err = err
	close(e.done)
	return nil
}

func (e *event) Ready() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}
