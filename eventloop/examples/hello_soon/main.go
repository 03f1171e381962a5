// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Example: Hello World
//
// Schedules a single callback, which prints and stops the loop.
//
// Run with: go run ./eventloop/examples/hello_soon/
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

	if _, err := loop.CallSoon(func() {
		fmt.Println("Hello World")
		loop.Stop()
	}); err != nil {
		panic(err)
	}

	if err := loop.RunForever(); err != nil {
		panic(err)
	}
}
