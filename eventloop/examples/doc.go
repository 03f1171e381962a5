// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package examples contains runnable programs demonstrating the eventloop
// package.
//
// # Examples
//
//   - hello_soon: Print "Hello World" from a CallSoon callback
//   - add_reader: Watch one end of a socket pair with AddReader
//   - later_stop_later: Stop, then run again, with pending timers
//   - soon_stop_soon: Stop between callbacks of a single batch
//   - thread: Schedule onto the loop from other goroutines
//
// # Running Examples
//
//	go run ./eventloop/examples/hello_soon/
//	go run ./eventloop/examples/add_reader/
//	go run ./eventloop/examples/later_stop_later/
//	go run ./eventloop/examples/soon_stop_soon/
//	go run ./eventloop/examples/thread/
package examples
