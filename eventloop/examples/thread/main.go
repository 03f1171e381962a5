// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Example: Cross-goroutine scheduling
//
// A plain goroutine wakes the loop with CallSoonThreadsafe, a blocking
// function runs on the loop's executor, and a greenlet on the hub waits for
// a task with Link.
//
// Run with: go run ./eventloop/examples/thread/
package main

import (
	"context"
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

	go func() {
		time.Sleep(50 * time.Millisecond)
		if _, err := loop.CallSoonThreadsafe(func() {
			fmt.Println("called from another goroutine")
		}); err != nil {
			panic(err)
		}
	}()

	blocking, err := loop.RunInExecutor(func(ctx context.Context) (any, error) {
		select {
		case <-time.After(100 * time.Millisecond):
			return "slow result", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	if err != nil {
		panic(err)
	}

	task, err := loop.CreateTask(func() (any, error) { return 42, nil })
	if err != nil {
		panic(err)
	}
	waiter := h.Spawn(func() (any, error) {
		return eventloop.LinkLoop(loop, task)
	})

	result, err := loop.RunUntilComplete(blocking)
	if err != nil {
		panic(err)
	}
	fmt.Println("executor:", result)

	linked, err := waiter.Wait()
	if err != nil {
		panic(err)
	}
	fmt.Println("greenlet linked:", linked)
}
