// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package goroutineid exposes the identity of the calling goroutine.
//
// It exists so that code can answer "am I running on the goroutine that owns
// this structure", e.g. to refuse a blocking call from an event loop's own
// driving goroutine. It must not be used to build goroutine-local storage.
package goroutineid

import (
	"runtime"
)

// Get returns the current goroutine's ID, or 0 if it could not be parsed.
//
// The value is parsed from the header of runtime.Stack, which has the form
// "goroutine 123 [running]:".
func Get() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parse(buf[:n])
}

func parse(b []byte) uint64 {
	const prefix = "goroutine "
	if len(b) < len(prefix) || string(b[:len(prefix)]) != prefix {
		return 0
	}
	var id uint64
	for i := len(prefix); i < len(b); i++ {
		if b[i] < '0' || b[i] > '9' {
			break
		}
		id = id*10 + uint64(b[i]-'0')
	}
	return id
}
