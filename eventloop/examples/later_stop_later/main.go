// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Example: Stopping between timers
//
// Three timers: "hello", a stop, and "world". The first run prints "hello"
// and returns at the stop. The second run picks up the remaining timer.
//
// Run with: go run ./eventloop/examples/later_stop_later/
package main

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-greenloop/eventloop"
	"github.com/joeycumines/go-greenloop/hub"
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

	must(loop.CallLater(100*time.Millisecond, func() { fmt.Println("hello") }))
	must(loop.CallLater(200*time.Millisecond, loop.Stop))
	must(loop.CallLater(300*time.Millisecond, func() {
		fmt.Println("world")
		loop.Stop()
	}))

	start := time.Now()
	if err := loop.RunForever(); err != nil {
		panic(err)
	}
	fmt.Printf("first run returned after %v\n", time.Since(start).Round(10*time.Millisecond))

	if err := loop.RunForever(); err != nil {
		panic(err)
	}
	fmt.Printf("second run returned after %v\n", time.Since(start).Round(10*time.Millisecond))
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
