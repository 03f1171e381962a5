// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package hub

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrHubClosed is returned when operations are attempted on a closed hub.
	ErrHubClosed = errors.New("hub: hub closed")

	// ErrListenerExists is returned by AddListener when the (fd, interest)
	// pair already has a listener.
	ErrListenerExists = errors.New("hub: listener already registered for fd and interest")

	// ErrListenerCancelled is returned when rearming a cancelled listener.
	ErrListenerCancelled = errors.New("hub: listener cancelled")

	// ErrInvalidInterest is returned when an interest is not exactly one of
	// Read or Write.
	ErrInvalidInterest = errors.New("hub: interest must be exactly one of read or write")

	// ErrFDOutOfRange is returned for negative file descriptors.
	ErrFDOutOfRange = errors.New("hub: fd out of range")

	// ErrEventAlreadySent is returned when sending on an event a second time.
	ErrEventAlreadySent = errors.New("hub: event already sent")

	// ErrGreenletStarted is returned when starting a greenlet a second time.
	ErrGreenletStarted = errors.New("hub: greenlet already started")

	// ErrGoexit is the result error of a greenlet that exited via
	// runtime.Goexit.
	ErrGoexit = errors.New("hub: greenlet exited via runtime.Goexit")
)

// PanicError wraps a value recovered from a panicking greenlet.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("hub: greenlet panicked: %v", e.Value)
}

// Unwrap returns the panic value if it is an error, enabling errors.Is and
// errors.As through the panic.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
