// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package hub

import (
	"fmt"
	"time"

	"github.com/joeycumines/logiface"
)

// hubOptions holds configuration options for Hub creation.
type hubOptions struct {
	logger             *logiface.Logger[logiface.Event]
	primitives         Primitives
	blockingResolution time.Duration
	maxEvents          int
	debugBlocking      bool
}

// Option configures a Hub instance.
type Option interface {
	applyHub(*hubOptions) error
}

type optionImpl struct {
	applyHubFunc func(*hubOptions) error
}

func (o *optionImpl) applyHub(opts *hubOptions) error {
	return o.applyHubFunc(opts)
}

// WithLogger sets the logger used to report panicking callbacks and blocking
// detection. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *hubOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithPrimitives replaces the OS primitives returned by Hub.Primitives.
// A nil value restores the default, OSPrimitives.
func WithPrimitives(p Primitives) Option {
	return &optionImpl{func(opts *hubOptions) error {
		opts.primitives = p
		return nil
	}}
}

// WithMaxEvents sets the maximum number of readiness events retrieved per
// poll. Values below 1 are rejected.
func WithMaxEvents(n int) Option {
	return &optionImpl{func(opts *hubOptions) error {
		if n < 1 {
			return fmt.Errorf("hub: max events must be positive, got %d", n)
		}
		opts.maxEvents = n
		return nil
	}}
}

// WithDebugBlocking enables reporting of hub callbacks that run for longer
// than resolution. A non-positive resolution uses DefaultBlockingResolution.
func WithDebugBlocking(enabled bool, resolution time.Duration) Option {
	return &optionImpl{func(opts *hubOptions) error {
		opts.debugBlocking = enabled
		opts.blockingResolution = resolution
		return nil
	}}
}

func resolveHubOptions(opts []Option) (*hubOptions, error) {
	cfg := &hubOptions{
		maxEvents: defaultMaxEvents,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyHub(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.primitives == nil {
		cfg.primitives = OSPrimitives{}
	}
	if cfg.blockingResolution <= 0 {
		cfg.blockingResolution = DefaultBlockingResolution
	}
	return cfg, nil
}
