package async

import (
	"context"
	"sync"
)

// Result is the outcome of an asynchronous publish. It completes exactly once;
// callbacks attached before or after completion run exactly once each.
type Result struct {
	mu        sync.Mutex
	done      chan struct{}
	id        string
	err       error
	completed bool
	callbacks []func(id string, err error)
}

// New returns a pending Result.
func New() *Result {
	return &Result{done: make(chan struct{})}
}

// Completed returns a Result that already finished with id and err.
func Completed(id string, err error) *Result {
	r := New()
	r.Complete(id, err)
	return r
}

// Failed returns a Result that already finished with err.
func Failed(err error) *Result { return Completed("", err) }

// Complete finishes the Result. Later calls are ignored.
func (r *Result) Complete(id string, err error) {
	r.mu.Lock()
	if r.completed {
		r.mu.Unlock()
		return
	}
	r.completed = true
	r.id, r.err = id, err
	cbs := r.callbacks
	r.callbacks = nil
	close(r.done)
	r.mu.Unlock()

	for _, cb := range cbs {
		cb(id, err)
	}
}

// OnDone registers fn to run on completion. If the Result is already complete
// fn runs immediately on the caller's goroutine.
func (r *Result) OnDone(fn func(id string, err error)) {
	r.mu.Lock()
	if !r.completed {
		r.callbacks = append(r.callbacks, fn)
		r.mu.Unlock()
		return
	}
	id, err := r.id, r.err
	r.mu.Unlock()
	fn(id, err)
}

// Done is closed when the Result completes.
func (r *Result) Done() <-chan struct{} { return r.done }

// Wait blocks until completion or ctx is cancelled.
func (r *Result) Wait(ctx context.Context) (string, error) {
	select {
	case <-r.done:
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.id, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
