// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"fmt"
	"runtime"
	"time"

	"github.com/joeycumines/logiface"
)

const (
	// DefaultSlowCallbackDuration is the default threshold for reporting slow
	// callbacks in debug mode.
	DefaultSlowCallbackDuration = 100 * time.Millisecond

	// DefaultClockResolution is the default granularity at which timers are
	// considered due.
	DefaultClockResolution = time.Millisecond
)

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	logger               *logiface.Logger[logiface.Event]
	executor             Executor
	slowCallbackRates    map[time.Duration]int
	slowCallbackDuration time.Duration
	clockResolution      time.Duration
	maxExecutorWorkers   int
	loggerSet            bool
	debug                bool
}

// LoopOption configures a Loop instance.
type LoopOption interface {
	applyLoop(*loopOptions) error
}

type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithLogger sets the logger used by the default exception handler, and for
// diagnostics. A nil logger disables logging. The default writes JSON to
// stderr, at warning level and above.
func WithLogger(logger *logiface.Logger[logiface.Event]) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		opts.loggerSet = true
		return nil
	}}
}

// WithDebug enables debug mode from creation. See [Loop.SetDebug].
func WithDebug(enabled bool) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.debug = enabled
		return nil
	}}
}

// WithSlowCallbackDuration sets the duration above which, in debug mode, a
// callback is reported as slow. It is also the blocking detection resolution
// passed to runtimes implementing hub.DebugController.
func WithSlowCallbackDuration(d time.Duration) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if d <= 0 {
			return fmt.Errorf("eventloop: slow callback duration must be positive, got %v", d)
		}
		opts.slowCallbackDuration = d
		return nil
	}}
}

// WithClockResolution sets how far ahead of the current time a timer may be
// and still be considered due.
func WithClockResolution(d time.Duration) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if d < 0 {
			return fmt.Errorf("eventloop: clock resolution must not be negative, got %v", d)
		}
		opts.clockResolution = d
		return nil
	}}
}

// WithExecutor sets the default executor, used by RunInExecutor.
func WithExecutor(executor Executor) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.executor = executor
		return nil
	}}
}

// WithMaxExecutorWorkers bounds the concurrency of the built-in default
// executor. It has no effect if WithExecutor is also used.
func WithMaxExecutorWorkers(n int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if n < 1 {
			return fmt.Errorf("eventloop: max executor workers must be positive, got %d", n)
		}
		opts.maxExecutorWorkers = n
		return nil
	}}
}

// WithSlowCallbackRates sets the rate limits, per window, for slow callback
// reports in debug mode. A nil or empty map disables rate limiting.
func WithSlowCallbackRates(rates map[time.Duration]int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.slowCallbackRates = rates
		return nil
	}}
}

func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{
		slowCallbackDuration: DefaultSlowCallbackDuration,
		clockResolution:      DefaultClockResolution,
		maxExecutorWorkers:   defaultMaxExecutorWorkers(),
		slowCallbackRates: map[time.Duration]int{
			time.Second: 5,
			time.Minute: 50,
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	if !cfg.loggerSet {
		cfg.logger = defaultLogger()
	}
	return cfg, nil
}

func defaultMaxExecutorWorkers() int {
	return min(32, runtime.NumCPU()+4)
}
