package core

import "context"

// Script describes one node to inject.
type Script struct {
	URL string
	// Async scripts execute as soon as they arrive. The others execute in
	// insertion order relative to each other.
	Async bool
}

// Host is the live document scripts are injected into.
//
// Inject appends a script node for s to the document head, creating the head
// when the document has none, and returns once the node is in the document.
// The host must later call settle exactly once: true when the node fires
// load, false when it fires error. A host that never hears back from the
// node never calls settle.
type Host interface {
	Inject(ctx context.Context, s Script, settle func(ok bool)) error
}

// HostFunc adapts a function to Host.
type HostFunc func(ctx context.Context, s Script, settle func(ok bool)) error

func (f HostFunc) Inject(ctx context.Context, s Script, settle func(ok bool)) error {
	return f(ctx, s, settle)
}

// ScriptNode is a script element found in a document head.
type ScriptNode struct {
	Src   string
	Async bool
	// ID is the NodeIDAttribute value, empty for scripts not injected by a loader.
	ID string
}
