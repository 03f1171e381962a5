// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Example: Stopping mid-batch
//
// Three callbacks are scheduled with CallSoon, the second of which stops the
// loop. The third only runs on the next RunForever.
//
// Run with: go run ./eventloop/examples/soon_stop_soon/
package main

import (
	"fmt"

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

	for _, fn := range []func(){
		func() { fmt.Println("hello") },
		loop.Stop,
		func() {
			fmt.Println("world")
			loop.Stop()
		},
	} {
		if _, err := loop.CallSoon(fn); err != nil {
			panic(err)
		}
	}

	fmt.Println("run 1")
	if err := loop.RunForever(); err != nil {
		panic(err)
	}
	fmt.Println("run 2")
	if err := loop.RunForever(); err != nil {
		panic(err)
	}
}
