package core

import (
	"errors"
	"fmt"
	"sync"
)

var ErrAlreadyRegistered = errors.New("script already registered")

// Record pairs a requested url with its future.
type Record struct {
	URL    string
	Future *Future
}

// Registry remembers every url a loader has requested.
type Registry interface {
	Lookup(url string) (*Future, bool)
	Register(url string, future *Future) error
	List() []Record
}

// MemoryRegistry is an append-only, insertion-ordered Registry.
type MemoryRegistry struct {
	once    sync.Once
	mu      sync.RWMutex
	records []Record
	index   map[string]int
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{}
}

func (r *MemoryRegistry) ensure() {
	r.once.Do(func() {
		r.index = make(map[string]int)
	})
}

func (r *MemoryRegistry) Lookup(url string) (*Future, bool) {
	r.ensure()
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[url]
	if !ok {
		return nil, false
	}
	return r.records[i].Future, true
}

func (r *MemoryRegistry) Register(url string, future *Future) error {
	if future == nil {
		return fmt.Errorf("register %s: nil future", url)
	}
	r.ensure()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[url]; ok {
		return fmt.Errorf("register %s: %w", url, ErrAlreadyRegistered)
	}
	r.index[url] = len(r.records)
	r.records = append(r.records, Record{URL: url, Future: future})
	return nil
}

// List returns a copy of the records in request order.
func (r *MemoryRegistry) List() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}
