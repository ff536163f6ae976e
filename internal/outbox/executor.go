package outbox

import (
	"context"
	"sync"
)

// Future is the deferred completion handle an invocation returns, per
// spec.md §4.1/§9. The core only observes success vs. failure; it never
// inspects a result value.
type Future interface {
	// Wait blocks until the invocation completes or ctx is done, returning
	// the invocation's terminal error (nil on success).
	Wait(ctx context.Context) error
}

// chanFuture is the default Future, backed by a channel closed on
// completion — the idiomatic Go stand-in for the source's future/promise
// primitive (spec.md §9).
type chanFuture struct {
	done chan struct{}
	err  error
}

// NewFuture returns a Future and the resolve func that completes it. Handler
// implementations that wrap a synchronous call can use this to adapt to the
// Future contract.
func NewFuture() (Future, func(error)) {
	f := &chanFuture{done: make(chan struct{})}
	var once sync.Once
	resolve := func(err error) {
		once.Do(func() {
			f.err = err
			close(f.done)
		})
	}
	return f, resolve
}

func (f *chanFuture) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Executor runs invocation dispatch off of whatever goroutine called Submit;
// Submit must return before the invocation completes (spec.md §4.5/§9, and
// DESIGN.md Open Question 3 — the executor must never run work synchronously
// on the caller's goroutine). run receives only a context: it carries the
// whole unit of work (in this package, resolving the handler, running the
// invocation and recording its outcome). PoolExecutor discards the error run
// returns.
type Executor interface {
	Submit(ctx context.Context, run func(ctx context.Context) error)
}

// PoolExecutor is a bounded goroutine-pool Executor. Submit itself never
// blocks: each call starts a goroutine, at most size of which run their work
// at once; the others wait for a free slot, or give up without running if
// ctx is done first (spec.md §5 "a user-supplied executor (bounded, for
// invocation runs)").
type PoolExecutor struct {
	sem chan struct{}
}

var _ Executor = (*PoolExecutor)(nil)

// NewPoolExecutor returns a PoolExecutor with the given concurrency bound.
// size <= 0 means unbounded (each Submit spawns its own goroutine).
func NewPoolExecutor(size int) *PoolExecutor {
	var sem chan struct{}
	if size > 0 {
		sem = make(chan struct{}, size)
	}
	return &PoolExecutor{sem: sem}
}

func (p *PoolExecutor) Submit(ctx context.Context, run func(ctx context.Context) error) {
	go func() {
		if p.sem != nil {
			select {
			case p.sem <- struct{}{}:
				defer func() { <-p.sem }()
			case <-ctx.Done():
				return
			}
		}
		_ = run(ctx)
	}()
}
