package artifact

import "context"

// WriteFunc populates an artifact payload directory. It is called exactly
// once per publish, against a private staging directory.
type WriteFunc func(dir string) error

// Store is the artifact cache. It is the only shared mutable resource in the
// build graph.
//
// Put must be atomic: either the full artifact becomes visible under its key
// or nothing does, so an aborted invocation can never corrupt a previously
// valid entry. Concurrent Puts of the same key write identical content; the
// store may keep either copy.
type Store interface {
	// Get returns the entry for (kind, key), or ok=false on a cache miss.
	Get(ctx context.Context, kind, key string) (entry *Entry, ok bool, err error)
	// Put publishes a new entry. write populates the payload.
	Put(ctx context.Context, meta Meta, write WriteFunc) (*Entry, error)
}
