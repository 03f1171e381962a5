// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build darwin

package hub

import (
	"time"

	"golang.org/x/sys/unix"
)

// poller wraps a kqueue instance (Darwin).
//
// Registration state is owned by the Hub, under its mutex. Read and write
// interests are separate kqueue filters, added and deleted independently.
type poller struct {
	eventBuf []unix.Kevent_t
	ready    []pollEvent
	kq       int
}

func (p *poller) init(maxEvents int) error {
	kq, err := unix.Kqueue()
	if err != nil {
		return err
	}
	unix.CloseOnExec(kq)
	p.kq = kq
	p.eventBuf = make([]unix.Kevent_t, maxEvents)
	p.ready = make([]pollEvent, 0, maxEvents)
	return nil
}

func (p *poller) close() error {
	return unix.Close(p.kq)
}

func (p *poller) update(fd int, old, mask Interest) error {
	var changes [2]unix.Kevent_t
	n := 0
	for _, f := range [...]struct {
		interest Interest
		filter   int16
	}{{Read, unix.EVFILT_READ}, {Write, unix.EVFILT_WRITE}} {
		var flags uint16
		switch {
		case mask&f.interest != 0 && old&f.interest == 0:
			flags = unix.EV_ADD | unix.EV_ENABLE
		case mask&f.interest == 0 && old&f.interest != 0:
			flags = unix.EV_DELETE
		default:
			continue
		}
		unix.SetKevent(&changes[n], fd, int(f.filter), int(flags))
		n++
	}
	if n == 0 {
		return nil
	}
	_, err := unix.Kevent(p.kq, changes[:n], nil, nil)
	return err
}

func (p *poller) wait(timeout time.Duration) ([]pollEvent, error) {
	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(int64(timeout))
		ts = &t
	}
	n, err := unix.Kevent(p.kq, nil, p.eventBuf, ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	p.ready = p.ready[:0]
	for i := 0; i < n; i++ {
		ev := &p.eventBuf[i]
		var mask Interest
		switch ev.Filter {
		case unix.EVFILT_READ:
			mask = Read
		case unix.EVFILT_WRITE:
			mask = Write
		}
		if ev.Flags&(unix.EV_EOF|unix.EV_ERROR) != 0 {
			mask |= Read | Write
		}
		p.ready = append(p.ready, pollEvent{fd: int(ev.Ident), interest: mask})
	}
	return p.ready, nil
}
