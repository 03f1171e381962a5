// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux

package hub

import (
	"time"

	"golang.org/x/sys/unix"
)

// poller wraps an epoll instance (Linux).
//
// Registration state is owned by the Hub, under its mutex. The poller only
// translates (old, new) interest masks into epoll_ctl calls, and is safe to
// modify while another goroutine is blocked in wait.
type poller struct {
	eventBuf []unix.EpollEvent
	ready    []pollEvent
	epfd     int
}

func (p *poller) init(maxEvents int) error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	p.epfd = epfd
	p.eventBuf = make([]unix.EpollEvent, maxEvents)
	p.ready = make([]pollEvent, 0, maxEvents)
	return nil
}

func (p *poller) close() error {
	return unix.Close(p.epfd)
}

// update moves the registration of fd from the old to the new interest mask.
// A descriptor closed and reused behind the hub's back is re-added.
func (p *poller) update(fd int, old, mask Interest) error {
	switch {
	case old == mask:
		return nil
	case mask == 0:
		// epoll always reports EPOLLERR and EPOLLHUP, so an fd with nothing
		// armed must leave the interest list entirely
		err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
		if err == unix.ENOENT || err == unix.EBADF {
			err = nil
		}
		return err
	case old == 0:
		err := p.ctl(unix.EPOLL_CTL_ADD, fd, mask)
		if err == unix.EEXIST {
			err = p.ctl(unix.EPOLL_CTL_MOD, fd, mask)
		}
		return err
	default:
		err := p.ctl(unix.EPOLL_CTL_MOD, fd, mask)
		if err == unix.ENOENT {
			err = p.ctl(unix.EPOLL_CTL_ADD, fd, mask)
		}
		return err
	}
}

func (p *poller) ctl(op, fd int, mask Interest) error {
	return unix.EpollCtl(p.epfd, op, fd, &unix.EpollEvent{Events: interestToEpoll(mask), Fd: int32(fd)})
}

// wait blocks for at most timeout (negative meaning forever). The returned
// slice is only valid until the next call.
func (p *poller) wait(timeout time.Duration) ([]pollEvent, error) {
	n, err := unix.EpollWait(p.epfd, p.eventBuf, timeoutMillis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	p.ready = p.ready[:0]
	for i := 0; i < n; i++ {
		p.ready = append(p.ready, pollEvent{
			fd:       int(p.eventBuf[i].Fd),
			interest: epollToInterest(p.eventBuf[i].Events),
		})
	}
	return p.ready, nil
}

func interestToEpoll(mask Interest) uint32 {
	var events uint32
	if mask&Read != 0 {
		events |= unix.EPOLLIN
	}
	if mask&Write != 0 {
		events |= unix.EPOLLOUT
	}
	return events
}

// epollToInterest maps error and hangup conditions to both interests, so that
// whichever side is listening observes them.
func epollToInterest(events uint32) Interest {
	var mask Interest
	if events&(unix.EPOLLIN|unix.EPOLLRDHUP|unix.EPOLLPRI) != 0 {
		mask |= Read
	}
	if events&unix.EPOLLOUT != 0 {
		mask |= Write
	}
	if events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		mask |= Read | Write
	}
	return mask
}
