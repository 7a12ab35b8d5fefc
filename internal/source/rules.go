// Package source implements SourceSet selection: filtering a raw source tree
// down to build-relevant files and fingerprinting their content. Selection is
// a pure function of path and file bytes; modification times never enter a
// fingerprint.
package source

import (
	"path"
	"strings"

	"github.com/vk/hermit/internal/config"
	"github.com/vk/hermit/internal/fsutil"
)

// Rules holds the compiled inclusion predicates. A file is included when it
// matches the default-source predicate OR the auxiliary patterns predicate;
// the union matters because fixture files needed only by tests are typically
// reachable through patterns alone.
type Rules struct {
	extensions    []string
	manifestGlobs []string
	patterns      []string
}

// CompileRules builds Rules from the configured source rules.
func CompileRules(cfg config.SourceRules) *Rules {
	exts := make([]string, 0, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	return &Rules{
		extensions:    exts,
		manifestGlobs: append([]string(nil), cfg.ManifestGlobs...),
		patterns:      append([]string(nil), cfg.Patterns...),
	}
}

// Extensions returns the source-file extensions of the default predicate.
func (r *Rules) Extensions() []string {
	return append([]string(nil), r.extensions...)
}

// Includes reports whether the slash-separated relative path belongs in the
// SourceSet.
func (r *Rules) Includes(relPath string) bool {
	return r.matchesDefault(relPath) || r.matchesAuxiliary(relPath)
}

// IsManifest reports whether the path is part of the dependency declaration:
// exactly these files feed the dependency-artifact cache key.
func (r *Rules) IsManifest(relPath string) bool {
	return fsutil.MatchAny(r.manifestGlobs, relPath)
}

// matchesDefault is the default-source predicate: source files by extension
// plus the dependency manifests.
func (r *Rules) matchesDefault(relPath string) bool {
	ext := path.Ext(relPath)
	for _, want := range r.extensions {
		if ext == want {
			return true
		}
	}
	return r.IsManifest(relPath)
}

// matchesAuxiliary is the auxiliary-pattern predicate.
func (r *Rules) matchesAuxiliary(relPath string) bool {
	return fsutil.MatchAny(r.patterns, relPath)
}
