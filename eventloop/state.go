// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"sync/atomic"
)

// LoopState represents the current state of the event loop.
//
//	StateIdle → StateRunning    [RunForever]
//	StateRunning → StateIdle    [Stop, once the current callback returns]
//	StateIdle → StateClosed     [Close]
//	StateClosed → (terminal)
type LoopState uint64

const (
	// StateIdle indicates the loop is not running.
	StateIdle LoopState = iota
	// StateRunning indicates the loop is inside RunForever.
	StateRunning
	// StateClosed indicates the loop has been closed.
	StateClosed
)

// String returns a human-readable representation of the state.
func (s LoopState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state machine with cache-line padding.
type fastState struct { // betteralign:ignore
	_ [64]byte      //nolint:unused
	v atomic.Uint64 // LoopState
	_ [56]byte      //nolint:unused
}

func (s *fastState) Load() LoopState {
	return LoopState(s.v.Load())
}

// Store is only valid for the terminal state.
func (s *fastState) Store(state LoopState) {
	s.v.Store(uint64(state))
}

func (s *fastState) TryTransition(from, to LoopState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}
