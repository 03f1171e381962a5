// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Executor runs blocking functions off the loop goroutine.
type Executor interface {
	// Go runs fn asynchronously. The context is cancelled when the executor
	// is closed, including before fn starts, in which case fn is still
	// called and should observe ctx.Err().
	Go(fn func(ctx context.Context)) error
	// Close cancels outstanding work, waits for it to return, and rejects
	// further calls to Go. It is idempotent.
	Close() error
}

// BoundedExecutor is an Executor with at most a fixed number of functions
// running concurrently.
type BoundedExecutor struct {
	ctx    context.Context
	cancel context.CancelFunc
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

var _ Executor = (*BoundedExecutor)(nil)

// NewBoundedExecutor returns an executor running at most workers functions
// at once. Values below 1 are treated as 1.
func NewBoundedExecutor(workers int) *BoundedExecutor {
	workers = max(workers, 1)
	ctx, cancel := context.WithCancel(context.Background())
	return &BoundedExecutor{
		ctx:    ctx,
		cancel: cancel,
		sem:    semaphore.NewWeighted(int64(workers)),
	}
}

func (x *BoundedExecutor) Go(fn func(ctx context.Context)) error {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return ErrExecutorClosed
	}
	x.wg.Add(1)
	go x.run(fn)
	return nil
}

func (x *BoundedExecutor) run(fn func(ctx context.Context)) {
	defer x.wg.Done()
	if err := x.sem.Acquire(x.ctx, 1); err != nil {
		fn(x.ctx)
		return
	}
	defer x.sem.Release(1)
	fn(x.ctx)
}

func (x *BoundedExecutor) Close() error {
	x.mu.Lock()
	if x.closed {
		x.mu.Unlock()
		return nil
	}
	x.closed = true
	x.mu.Unlock()
	x.cancel()
	x.wg.Wait()
	return nil
}

// SetDefaultExecutor replaces the executor used by RunInExecutor. The
// previous executor is not closed.
func (l *Loop) SetDefaultExecutor(executor Executor) {
	l.executorMu.Lock()
	defer l.executorMu.Unlock()
	l.executor = executor
}

func (l *Loop) defaultExecutor() Executor {
	l.executorMu.Lock()
	defer l.executorMu.Unlock()
	if l.executor == nil {
		l.executor = NewBoundedExecutor(l.maxExecutorWorkers)
	}
	return l.executor
}

func (l *Loop) shutdownExecutor() error {
	l.executorMu.Lock()
	executor := l.executor
	l.executor = nil
	l.executorMu.Unlock()
	if executor == nil {
		return nil
	}
	return executor.Close()
}

// RunInExecutor runs fn on the default executor, returning a future that is
// resolved on the loop goroutine. A panic in fn becomes the future's error.
func (l *Loop) RunInExecutor(fn func(ctx context.Context) (any, error)) (*Future, error) {
	if err := l.checkCall("RunInExecutor"); err != nil {
		return nil, err
	}

	fut := l.NewFuture()

	err := l.defaultExecutor().Go(func(ctx context.Context) {
		result, err := callExecutorFunc(ctx, fn)
		_, _ = l.CallSoonThreadsafe(func() {
			if fut.Done() {
				return
			}
			if err != nil {
				_ = fut.SetError(err)
			} else {
				_ = fut.SetResult(result)
			}
		})
	})
	if err != nil {
		return nil, err
	}

	return fut, nil
}

func callExecutorFunc(ctx context.Context, fn func(ctx context.Context) (any, error)) (result any, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, &CallbackError{Value: r, Callback: funcName(fn)}
		}
	}()
	return fn(ctx)
}
