package stringset

import "sync"

// StringFilter is a concurrency-safe seen-set. Strings compare byte for
// byte; urls differing only in case are distinct.
type StringFilter struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewStringFilter() *StringFilter {
	return &StringFilter{seen: make(map[string]struct{})}
}

// Duplicate records s and reports whether it was already present.
func (f *StringFilter) Duplicate(s string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seen[s]; ok {
		return true
	}
	f.seen[s] = struct{}{}
	return false
}

func (f *StringFilter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}
