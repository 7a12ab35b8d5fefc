// Package artifact defines cached build artifacts and the content-addressed
// store they live in. Cache keys are content fingerprints, never timestamps:
// two invocations computing the same key either race harmlessly to identical
// bytes or one reuses the other's result.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"time"
)

// Artifact kinds stored in the cache.
const (
	// KindDeps is a dependencies-only artifact: compiled external
	// dependencies, cacheable across unrelated source edits.
	KindDeps = "deps"
	// KindPackage is a full package build.
	KindPackage = "package"
)

// Key builds a cache key by hashing its parts in order. The parts are
// themselves fingerprints or identities, so the key changes exactly when one
// of its inputs changes.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		io.WriteString(h, p)
		io.WriteString(h, "\x00")
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Meta is the artifact metadata written beside each cache entry. The YAML
// sidecar makes a populated cache inspectable without hermit.
type Meta struct {
	Kind      string            `yaml:"kind"`
	Key       string            `yaml:"key"`
	Package   string            `yaml:"package,omitempty"`
	Toolchain string            `yaml:"toolchain,omitempty"`
	Platform  string            `yaml:"platform,omitempty"`
	Inputs    map[string]string `yaml:"inputs,omitempty"`
	CreatedAt time.Time         `yaml:"created_at"`
}

// Entry is one published artifact: its metadata plus the directory holding
// the payload. Path is empty for stores without a filesystem representation.
type Entry struct {
	Meta Meta
	Path string
}

// Identity returns the value downstream cache keys incorporate to depend on
// this artifact.
func (e *Entry) Identity() string { return e.Meta.Key }
