// Package async runs remote calls in the background and exposes their
// pending/fulfilled/rejected outcome to a caller that keeps rendering.
package async

import (
	"context"
	"sync"
)

type State int

const (
	Pending State = iota
	Fulfilled
	Rejected
)

func (s State) String() string {
	switch s {
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	}
	return "pending"
}

type Op[T any] struct {
	done chan struct{}

	mu    sync.Mutex
	state State
	value T
	err   error
}

// Run starts fn in its own goroutine. The call is detached from ctx
// cancellation: once issued it runs to completion, and the caller may only
// stop waiting for it.
func Run[T any](ctx context.Context, fn func(context.Context) (T, error)) *Op[T] {
	op := &Op[T]{done: make(chan struct{})}
	go func() {
		defer close(op.done)
		v, err := fn(context.WithoutCancel(ctx))

		op.mu.Lock()
		defer op.mu.Unlock()
		op.value, op.err = v, err
		if err != nil {
			op.state = Rejected
			return
		}
		op.state = Fulfilled
	}()
	return op
}

func (o *Op[T]) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Op[T]) Done() <-chan struct{} {
	return o.done
}

// Wait returns the outcome, or ctx's error if ctx ends first. The operation
// keeps running in that case.
func (o *Op[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-o.done:
		o.mu.Lock()
		defer o.mu.Unlock()
		return o.value, o.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
