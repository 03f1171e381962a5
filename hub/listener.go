// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux || darwin

package hub

// fdState tracks the listeners of one file descriptor.
//
// armed is the subset of registered interests currently eligible for
// dispatch, and installed is what the poller was last told.
type fdState struct {
	listeners [2]*listener
	armed     Interest
	installed Interest
}

func (s *fdState) registered() Interest {
	var mask Interest
	for _, l := range s.listeners {
		if l != nil {
			mask |= l.interest
		}
	}
	return mask
}

func interestIndex(i Interest) int {
	if i == Read {
		return 0
	}
	return 1
}

type listener struct {
	h        *Hub
	fn       func(fd int)
	fd       int
	interest Interest
}

var _ Listener = (*listener)(nil)

// AddListener registers fn to be called, on the hub goroutine, when fd is
// ready for interest, which must be exactly one of Read or Write.
//
// Listeners are armed once: after the callback is invoked the listener
// stays registered, but will not fire again until Rearm is called. Consumers
// that drain a descriptor on some other goroutine rely on this, as a
// level-triggered descriptor would otherwise be reported continuously.
func (h *Hub) AddListener(fd int, interest Interest, fn func(fd int)) (Listener, error) {
	if fd < 0 {
		return nil, ErrFDOutOfRange
	}
	if interest != Read && interest != Write {
		return nil, ErrInvalidInterest
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || h.closing.Load() {
		return nil, ErrHubClosed
	}

	st := h.fds[fd]
	if st == nil {
		st = &fdState{}
		h.fds[fd] = st
	}

	idx := interestIndex(interest)
	if st.listeners[idx] != nil {
		return nil, ErrListenerExists
	}

	l := &listener{h: h, fd: fd, interest: interest, fn: fn}
	st.listeners[idx] = l
	st.armed |= interest

	if err := h.syncLocked(fd, st); err != nil {
		st.listeners[idx] = nil
		st.armed &^= interest
		if st.registered() == 0 {
			delete(h.fds, fd)
		}
		return nil, err
	}

	return l, nil
}

// syncLocked pushes the armed interests of fd to the poller.
func (h *Hub) syncLocked(fd int, st *fdState) error {
	want := st.armed & st.registered()
	if want == st.installed {
		return nil
	}
	err := h.poller.update(fd, st.installed, want)
	if err != nil && want != 0 {
		return err
	}
	st.installed = want
	return nil
}

func (h *Hub) dispatch(ev pollEvent) {
	var fire [2]*listener

	h.mu.Lock()
	if st := h.fds[ev.fd]; st != nil {
		fired := ev.interest & st.armed
		for i, l := range st.listeners {
			if l != nil && fired&l.interest != 0 {
				fire[i] = l
			}
		}
		st.armed &^= fired
		if err := h.syncLocked(ev.fd, st); err != nil {
			h.logger.Err().
				Err(err).
				Int("fd", ev.fd).
				Log("hub: failed to disarm fd")
		}
	}
	h.mu.Unlock()

	for _, l := range fire {
		if l != nil {
			h.invoke("listener", l.fd, l.call)
		}
	}
}

func (l *listener) call() { l.fn(l.fd) }

func (l *listener) FD() int { return l.fd }

func (l *listener) Interest() Interest { return l.interest }

func (l *listener) Rearm() error {
	h := l.h
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}
	st := h.fds[l.fd]
	if st == nil || st.listeners[interestIndex(l.interest)] != l {
		return ErrListenerCancelled
	}
	if st.armed&l.interest != 0 {
		return nil
	}
	st.armed |= l.interest
	if err := h.syncLocked(l.fd, st); err != nil {
		st.armed &^= l.interest
		return err
	}
	return nil
}

func (l *listener) Cancel() error {
	h := l.h
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.fds[l.fd]
	idx := interestIndex(l.interest)
	if st == nil || st.listeners[idx] != l {
		return nil
	}
	st.listeners[idx] = nil
	st.armed &^= l.interest

	var err error
	if !h.closed {
		err = h.syncLocked(l.fd, st)
	}
	if st.registered() == 0 {
		delete(h.fds, l.fd)
	}
	return err
}
