// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package hub

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-greenloop/goroutineid"
)

// GreenFunc is the body of a Greenlet.
type GreenFunc func() (any, error)

type greenletState int32

const (
	greenletNew greenletState = iota
	greenletRunning
	greenletDead
)

// Greenlet is a green thread. It may be created without being started, which
// allows observers to be attached before it can possibly finish.
type Greenlet struct {
	fn     GreenFunc
	result any
	err    error
	done   chan struct{}
	links  []func(*Greenlet)
	id     atomic.Uint64
	mu     sync.Mutex
	state  greenletState
}

// NewGreenlet returns a greenlet that will run fn once started.
func NewGreenlet(fn GreenFunc) *Greenlet {
	return &Greenlet{
		fn:   fn,
		done: make(chan struct{}),
	}
}

// Start runs the greenlet on a new goroutine. It returns ErrGreenletStarted
// if the greenlet was already started.
func (g *Greenlet) Start() error {
	g.mu.Lock()
	if g.state != greenletNew {
		g.mu.Unlock()
		return ErrGreenletStarted
	}
	g.state = greenletRunning
	g.mu.Unlock()
	go g.run()
	return nil
}

func (g *Greenlet) run() {
	g.id.Store(goroutineid.Get())

	var (
		result    any
		err       error
		completed bool
	)
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, &PanicError{Value: r}
		} else if !completed {
			result, err = nil, ErrGoexit
		}
		g.finish(result, err)
	}()

	if g.fn != nil {
		result, err = g.fn()
	}
	completed = true
}

func (g *Greenlet) finish(result any, err error) {
	g.mu.Lock()
	g.state = greenletDead
	g.result = result
	g.err = err
	links := g.links
	g.links = nil
	close(g.done)
	g.mu.Unlock()

	for _, fn := range links {
		fn(g)
	}
}

// Started reports whether Start has been called. It remains true once the
// greenlet is dead.
func (g *Greenlet) Started() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state != greenletNew
}

// Dead reports whether the greenlet has finished.
func (g *Greenlet) Dead() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == greenletDead
}

// ID returns the goroutine ID the greenlet runs on, or 0 before it starts.
func (g *Greenlet) ID() uint64 {
	return g.id.Load()
}

// Wait blocks until the greenlet finishes, returning its result.
func (g *Greenlet) Wait() (any, error) {
	<-g.done
	return g.result, g.err
}

// Result returns the result of a finished greenlet. The final value is false
// while it is still pending.
func (g *Greenlet) Result() (any, error, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != greenletDead {
		return nil, nil, false
	}
	return g.result, g.err, true
}

// Link arranges for fn to be called with the greenlet once it finishes, on
// the greenlet's own goroutine. If the greenlet is already dead fn is called
// immediately, on the calling goroutine.
func (g *Greenlet) Link(fn func(*Greenlet)) {
	g.mu.Lock()
	if g.state != greenletDead {
		g.links = append(g.links, fn)
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()
	fn(g)
}
