package core

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Loader injects each distinct script url into its Host at most once.
type Loader struct {
	host     Host
	registry Registry
	stats    *LoadStats
	log      *logrus.Entry

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

type Option func(*Loader)

// WithRegistry replaces the default MemoryRegistry.
func WithRegistry(r Registry) Option {
	return func(l *Loader) {
		if r != nil {
			l.registry = r
		}
	}
}

func WithStats(s *LoadStats) Option {
	return func(l *Loader) {
		if s != nil {
			l.stats = s
		}
	}
}

// WithContext sets the parent of the context handed to the host.
func WithContext(ctx context.Context) Option {
	return func(l *Loader) {
		if ctx != nil {
			l.ctx = ctx
		}
	}
}

func NewLoader(host Host, opts ...Option) *Loader {
	l := &Loader{
		host:     host,
		registry: NewMemoryRegistry(),
		stats:    NewLoadStats(),
		log:      logrus.NewEntry(Logger),
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.ctx, l.cancel = context.WithCancel(l.ctx)
	l.log = l.log.WithField("prefix", "loader")
	return l
}

// Load returns the future for url, injecting a script node the first time
// url is seen. async only sets the node's execution mode; it plays no part
// in deduplication, so a later call with a different async value still gets
// the first call's future.
func (l *Loader) Load(url string, async bool) *Future {
	l.mu.Lock()
	defer l.mu.Unlock()

	if future, ok := l.registry.Lookup(url); ok {
		l.stats.IncrementReused()
		l.log.WithField("url", url).Debug("Reusing script request")
		return future
	}

	future := newFuture(url)
	if err := l.registry.Register(url, future); err != nil {
		// A registry shared with another writer beat us to it.
		if existing, ok := l.registry.Lookup(url); ok {
			l.stats.IncrementReused()
			return existing
		}
		l.log.WithField("url", url).Warnf("Failed to register script: %v", err)
	}
	l.stats.IncrementRequested()
	l.log.WithFields(logrus.Fields{"url": url, "async": async}).Debug("Injecting script")

	// Injecting under the lock keeps document order equal to call order.
	err := l.host.Inject(l.ctx, Script{URL: url, Async: async}, func(ok bool) {
		l.finish(future, ok)
	})
	if err != nil {
		l.log.WithField("url", url).Warnf("Failed to inject script: %v", err)
		l.finish(future, false)
	}
	return future
}

func (l *Loader) finish(future *Future, ok bool) {
	if !future.settle(ok) {
		return
	}
	entry := l.log.WithField("url", future.URL())
	if ok {
		l.stats.IncrementLoaded()
		entry.Debug("Script loaded")
		return
	}
	l.stats.IncrementFailed()
	entry.Debug("Script failed")
}

// Records lists every requested url in request order.
func (l *Loader) Records() []Record {
	return l.registry.List()
}

// Loaded reports whether url has been requested, whatever its state.
func (l *Loader) Loaded(url string) bool {
	_, ok := l.registry.Lookup(url)
	return ok
}

func (l *Loader) Stats() *LoadStats {
	return l.stats
}

// Close cancels the context given to the host. Futures still pending stay
// pending.
func (l *Loader) Close() {
	l.cancel()
}
