// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/joeycumines/go-greenloop/hub"
	"golang.org/x/sys/unix"
)

// SockConnect connects the non-blocking socket fd to address, returning a
// future that resolves once the connection is established.
//
// The address must already be resolved: an IP literal and port, or an
// absolute path for unix sockets. Anything else, such as a hostname, fails
// immediately with ErrUnresolvedAddress, rather than blocking the loop on
// name resolution.
func (l *Loop) SockConnect(fd int, address string) (*Future, error) {
	if err := l.checkCall("SockConnect"); err != nil {
		return nil, err
	}

	sa, err := resolvedSockaddr(address)
	if err != nil {
		return nil, err
	}

	fut := l.NewFuture()
	prims := l.rt.Primitives()

	err = prims.Connect(fd, sa)
	switch {
	case err == nil:
		_ = fut.SetResult(nil)
		return fut, nil
	case !isTransientConnectError(err):
		_ = fut.SetError(fmt.Errorf("eventloop: connect %s: %w", address, err))
		return fut, nil
	}

	// in progress: completes, or fails, once the socket is writable
	var handle *Handle
	onWritable := func() {
		if fut.Done() {
			l.removeWriterHandle(fd, handle)
			return
		}
		err := prims.SocketError(fd)
		if err != nil && isTransientConnectError(err) {
			return
		}
		l.removeWriterHandle(fd, handle)
		if err != nil {
			_ = fut.SetError(fmt.Errorf("eventloop: connect %s: %w", address, err))
		} else {
			_ = fut.SetResult(nil)
		}
	}
	handle = newHandle(l, onWritable)
	if err := l.selector.register(fd, hub.Write, handle); err != nil {
		return nil, err
	}
	fut.AddDoneCallback(func(f *Future) {
		if f.Cancelled() {
			l.removeWriterHandle(fd, handle)
		}
	})

	return fut, nil
}

// removeWriterHandle removes the writer for fd only if it is still h.
func (l *Loop) removeWriterHandle(fd int, h *Handle) {
	if l.selector.registered(fd, hub.Write) == h {
		l.selector.unregister(fd, hub.Write)
	}
}

func isTransientConnectError(err error) bool {
	return errors.Is(err, unix.EINPROGRESS) ||
		errors.Is(err, unix.EAGAIN) ||
		errors.Is(err, unix.EINTR) ||
		errors.Is(err, unix.EALREADY)
}

func resolvedSockaddr(address string) (unix.Sockaddr, error) {
	if strings.HasPrefix(address, "/") {
		return &unix.SockaddrUnix{Name: address}, nil
	}

	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnresolvedAddress, address)
	}

	addr := ap.Addr()
	if addr.Is4() {
		return &unix.SockaddrInet4{Port: int(ap.Port()), Addr: addr.As4()}, nil
	}

	sa := &unix.SockaddrInet6{Port: int(ap.Port()), Addr: addr.As16()}
	if zone := addr.Zone(); zone != "" {
		ifi, err := net.InterfaceByName(zone)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrUnresolvedAddress, address, err)
		}
		sa.ZoneId = uint32(ifi.Index)
	}
	return sa, nil
}
