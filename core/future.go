package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// State is the lifecycle position of one requested script.
type State int32

const (
	Pending State = iota
	Loaded
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// LoadError is the rejection of a future. It carries only the url: the host
// does not tell network, parse and policy failures apart.
type LoadError struct {
	URL string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load script %s: failed", e.URL)
}

// Future is the shared outcome of loading one url. Every caller asking for
// the same url gets the same *Future, and any number of them may wait on it.
type Future struct {
	url   string
	state atomic.Int32
	once  sync.Once
	done  chan struct{}
}

func newFuture(url string) *Future {
	return &Future{url: url, done: make(chan struct{})}
}

// URL returns the url this future was created for.
func (f *Future) URL() string {
	return f.url
}

// Done is closed once the future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

func (f *Future) State() State {
	return State(f.state.Load())
}

// Err returns nil while pending or after a successful load.
func (f *Future) Err() error {
	if f.State() == Failed {
		return &LoadError{URL: f.url}
	}
	return nil
}

// Wait blocks until the future settles or ctx is done. A loaded future
// yields its url; a failed one yields a *LoadError for the same url.
func (f *Future) Wait(ctx context.Context) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-f.done:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if err := f.Err(); err != nil {
		return "", err
	}
	return f.url, nil
}

// settle moves the future out of Pending. Only the first call has effect.
func (f *Future) settle(ok bool) bool {
	settled := false
	f.once.Do(func() {
		next := Failed
		if ok {
			next = Loaded
		}
		f.state.Store(int32(next))
		close(f.done)
		settled = true
	})
	return settled
}
