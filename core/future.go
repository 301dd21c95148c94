package core

import (
	"context"
	"sync"
)

// Future is the pending outcome of an asynchronous dispatch.
// A Future is safe for concurrent use; every waiter observes the same Result.
type Future struct {
	done   chan struct{}
	cancel context.CancelFunc
	mapper Mapper

	mu  sync.Mutex
	res Result
}

// startFuture runs fn on its own goroutine with a cancellable child of ctx.
func startFuture(ctx context.Context, mapper Mapper, fn func(ctx context.Context) Result) *Future {
	runCtx, cancel := context.WithCancel(ctx)
	f := &Future{
		done:   make(chan struct{}),
		cancel: cancel,
		mapper: mapper,
	}
	go func() {
		defer cancel()
		res := fn(runCtx)
		f.mu.Lock()
		f.res = res
		f.mu.Unlock()
		close(f.done)
	}()
	return f
}

// Done returns a channel that is closed once the Result is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the call completes or ctx ends. If ctx ends first,
// Await returns a transport ResultError (CANCELED or TIMEOUT) and the call
// keeps running; use Cancel to abort it.
func (f *Future) Await(ctx context.Context) Result {
	select {
	case <-f.done:
		return f.load()
	default:
	}

	select {
	case <-f.done:
		return f.load()
	case <-ctx.Done():
		return f.mapper.MapTransportError(ctx.Err())
	}
}

// Result returns the Result without blocking. The boolean is false while
// the call is still in flight.
func (f *Future) Result() (Result, bool) {
	select {
	case <-f.done:
		return f.load(), true
	default:
		return nil, false
	}
}

// Cancel aborts the in-flight request. The Future then resolves to a
// transport ResultError with code CANCELED. Cancel after completion is a no-op.
func (f *Future) Cancel() {
	f.cancel()
}

func (f *Future) load() Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.res
}

// AwaitAll waits for every future and returns their Results in argument order.
func AwaitAll(ctx context.Context, futures ...*Future) []Result {
	results := make([]Result, len(futures))
	for i, f := range futures {
		results[i] = f.Await(ctx)
	}
	return results
}
