package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vk/hermit/internal/ctxlog"
)

const metaFileName = "hermit-meta.yaml"

// DiskStore is the on-disk artifact cache. Entries live under
// <root>/<kind>/<key>/ with the payload next to a YAML metadata sidecar.
// Publication is write-to-temporary-then-rename, so a crash mid-build never
// leaves a partial entry under a valid key.
type DiskStore struct {
	root string
}

// NewDiskStore opens (creating if needed) a disk cache rooted at root.
func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("cannot open artifact cache at %s: %w", root, err)
	}
	return &DiskStore{root: root}, nil
}

// Get implements Store.
func (s *DiskStore) Get(ctx context.Context, kind, key string) (*Entry, bool, error) {
	dir := s.entryDir(kind, key)
	data, err := os.ReadFile(filepath.Join(dir, metaFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var meta Meta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, false, fmt.Errorf("corrupt metadata for %s/%s: %w", kind, key, err)
	}

	ctxlog.FromContext(ctx).Debug("Artifact cache hit.", "kind", kind, "key", shortKey(key))
	return &Entry{Meta: meta, Path: dir}, true, nil
}

// Put implements Store. The payload is staged in a temporary sibling
// directory and published with a single rename. When a concurrent invocation
// already published the same key, the staged copy is discarded: last writer
// of an identical key wins and the content is identical by construction.
func (s *DiskStore) Put(ctx context.Context, meta Meta, write WriteFunc) (*Entry, error) {
	logger := ctxlog.FromContext(ctx)

	kindDir := filepath.Join(s.root, meta.Kind)
	if err := os.MkdirAll(kindDir, 0o755); err != nil {
		return nil, err
	}

	staging, err := os.MkdirTemp(kindDir, ".staging-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(staging)

	if err := write(staging); err != nil {
		return nil, err
	}

	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	data, err := yaml.Marshal(&meta)
	if err != nil {
		return nil, err
	}
	// The sidecar is written last within the staging dir, but visibility is
	// governed solely by the rename below.
	if err := os.WriteFile(filepath.Join(staging, metaFileName), data, 0o644); err != nil {
		return nil, err
	}

	final := s.entryDir(meta.Kind, meta.Key)
	if err := os.Rename(staging, final); err != nil {
		if _, statErr := os.Stat(filepath.Join(final, metaFileName)); statErr == nil {
			logger.Debug("Lost publish race, reusing existing entry.",
				"kind", meta.Kind, "key", shortKey(meta.Key))
			return &Entry{Meta: meta, Path: final}, nil
		}
		return nil, fmt.Errorf("cannot publish %s/%s: %w", meta.Kind, meta.Key, err)
	}

	logger.Debug("Artifact published.", "kind", meta.Kind, "key", shortKey(meta.Key))
	return &Entry{Meta: meta, Path: final}, nil
}

func (s *DiskStore) entryDir(kind, key string) string {
	return filepath.Join(s.root, kind, key)
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
