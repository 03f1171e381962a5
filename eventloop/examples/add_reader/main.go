// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Example: Watching a file descriptor
//
// Creates a connected socket pair, registers a reader on one end, and writes
// to the other end from a timer. The reader removes itself, and stops the
// loop, once the whole message has arrived.
//
// Run with: go run ./eventloop/examples/add_reader/
package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/joeycumines/go-greenloop/eventloop"
	"github.com/joeycumines/go-greenloop/hub"
	"golang.org/x/sys/unix"
)

func main() {
	h, err := hub.New()
	if err != nil {
		panic(err)
	}
	defer h.Close()

	loop, err := eventloop.New(h)
	if err != nil {
		panic(err)
	}
	defer loop.Close()

	rsock, wsock, err := h.Primitives().Socketpair()
	if err != nil {
		panic(err)
	}
	defer unix.Close(rsock)
	defer unix.Close(wsock)

	const message = "abc"
	var received []byte

	if err := loop.AddReader(rsock, func() {
		buf := make([]byte, 100)
		n, err := unix.Read(rsock, buf)
		if errors.Is(err, unix.EAGAIN) {
			return
		}
		if err != nil {
			panic(err)
		}
		received = append(received, buf[:n]...)
		fmt.Printf("Received: %q\n", buf[:n])
		if len(received) >= len(message) || n == 0 {
			loop.RemoveReader(rsock)
			loop.Stop()
		}
	}); err != nil {
		panic(err)
	}

	if _, err := loop.CallLater(50*time.Millisecond, func() {
		if _, err := unix.Write(wsock, []byte(message)); err != nil {
			panic(err)
		}
	}); err != nil {
		panic(err)
	}

	if err := loop.RunForever(); err != nil {
		panic(err)
	}
}
