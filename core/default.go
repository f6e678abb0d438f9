package core

import (
	"errors"
	"sync"
)

var ErrNoDefaultLoader = errors.New("default loader not initialized")

var (
	defaultMu     sync.RWMutex
	defaultLoader *Loader
)

// Init creates the process-wide loader used by Load, closing any previous one.
func Init(host Host, opts ...Option) *Loader {
	l := NewLoader(host, opts...)
	defaultMu.Lock()
	previous := defaultLoader
	defaultLoader = l
	defaultMu.Unlock()
	if previous != nil {
		previous.Close()
	}
	return l
}

// Default returns the loader created by Init, or nil.
func Default() *Loader {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLoader
}

// Load loads url through the default loader. Without Init the returned
// future is already failed.
func Load(url string, async bool) *Future {
	if l := Default(); l != nil {
		return l.Load(url, async)
	}
	Logger.WithField("url", url).Error(ErrNoDefaultLoader)
	future := newFuture(url)
	future.settle(false)
	return future
}
