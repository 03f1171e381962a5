// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux || darwin

package hub

import (
	"golang.org/x/sys/unix"
)

// Primitives are the raw operating system operations available to code that
// cooperates with the hub. They never block cooperatively and are never
// rebound: a reactor that builds its own self-wakeup channel, or performs a
// non-blocking connect, uses these rather than anything a green-thread
// aware layer may have substituted.
type Primitives interface {
	// Socketpair returns a connected, non-blocking, close-on-exec pair of
	// stream sockets.
	Socketpair() (r, w int, err error)
	Read(fd int, p []byte) (int, error)
	Write(fd int, p []byte) (int, error)
	Close(fd int) error
	// Connect starts a connect on a non-blocking socket.
	Connect(fd int, sa unix.Sockaddr) error
	// SocketError returns the pending SO_ERROR of fd, as a unix.Errno, or
	// nil.
	SocketError(fd int) error
}

// OSPrimitives implements Primitives directly over golang.org/x/sys/unix.
type OSPrimitives struct{}

var _ Primitives = OSPrimitives{}

func (OSPrimitives) Socketpair() (r, w int, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, -1, err
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
			return -1, -1, err
		}
	}
	return fds[0], fds[1], nil
}

func (OSPrimitives) Read(fd int, p []byte) (int, error) { return unix.Read(fd, p) }

func (OSPrimitives) Write(fd int, p []byte) (int, error) { return unix.Write(fd, p) }

func (OSPrimitives) Close(fd int) error { return unix.Close(fd) }

func (OSPrimitives) Connect(fd int, sa unix.Sockaddr) error { return unix.Connect(fd, sa) }

func (OSPrimitives) SocketError(fd int) error {
	v, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if v != 0 {
		return unix.Errno(v)
	}
	return nil
}
