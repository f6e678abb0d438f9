package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRegistryRejectsDuplicates(t *testing.T) {
	r := NewMemoryRegistry()
	f := newFuture("x.js")

	_, ok := r.Lookup("x.js")
	assert.False(t, ok)

	require.NoError(t, r.Register("x.js", f))
	err := r.Register("x.js", newFuture("x.js"))
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	got, ok := r.Lookup("x.js")
	require.True(t, ok)
	assert.Same(t, f, got)
	assert.Len(t, r.List(), 1)
}

func TestMemoryRegistryTreatsURLsAsOpaque(t *testing.T) {
	r := NewMemoryRegistry()
	require.NoError(t, r.Register("/a.js", newFuture("/a.js")))
	require.NoError(t, r.Register("/a.js?", newFuture("/a.js?")))
	require.NoError(t, r.Register("/A.js", newFuture("/A.js")))
	assert.Len(t, r.List(), 3)
}

func TestLoaderWithSharedRegistry(t *testing.T) {
	shared := NewMemoryRegistry()
	hostA, hostB := newFakeHost(), newFakeHost()
	a := NewLoader(hostA, WithRegistry(shared))
	b := NewLoader(hostB, WithRegistry(shared))
	t.Cleanup(a.Close)
	t.Cleanup(b.Close)

	fa := a.Load("lib.js", false)
	fb := b.Load("lib.js", false)
	assert.Same(t, fa, fb)
	assert.Equal(t, 1, hostA.count("lib.js"))
	assert.Equal(t, 0, hostB.count("lib.js"))
}
