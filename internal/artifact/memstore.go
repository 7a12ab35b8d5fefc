package artifact

import (
	"context"
	"os"
	"sync"
)

// MemStore is an ephemeral, thread-safe, in-memory Store. It backs tests and
// one-shot invocations that should not touch a shared cache. sync.Map fits
// the access pattern: the key space is stable within a run while independent
// keys are read and written concurrently by parallel platform stages.
type MemStore struct {
	entries sync.Map // "kind/key" -> *Entry
	tmpRoot string
}

// NewMemStore creates an empty in-memory store. Payloads are staged under
// tmpRoot; pass "" to use the system temporary directory.
func NewMemStore(tmpRoot string) *MemStore {
	return &MemStore{tmpRoot: tmpRoot}
}

// Get implements Store.
func (s *MemStore) Get(_ context.Context, kind, key string) (*Entry, bool, error) {
	entry, ok := s.entries.Load(kind + "/" + key)
	if !ok {
		return nil, false, nil
	}
	return entry.(*Entry), true, nil
}

// Put implements Store. The write callback still runs against a real
// directory so builders behave identically across store implementations, but
// nothing is published until the callback succeeds.
func (s *MemStore) Put(_ context.Context, meta Meta, write WriteFunc) (*Entry, error) {
	dir, err := os.MkdirTemp(s.tmpRoot, "hermit-artifact-")
	if err != nil {
		return nil, err
	}
	if err := write(dir); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	entry := &Entry{Meta: meta, Path: dir}
	if existing, loaded := s.entries.LoadOrStore(meta.Kind+"/"+meta.Key, entry); loaded {
		// A concurrent publish of the same key produced identical content.
		os.RemoveAll(dir)
		return existing.(*Entry), nil
	}
	return entry, nil
}
