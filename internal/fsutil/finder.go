// Package fsutil provides file system utility functions.
package fsutil

import (
	"github.com/bmatcuk/doublestar/v4"
)

// MatchAny reports whether the slash-separated relative path matches at least
// one of the given doublestar glob patterns. Invalid patterns never match.
func MatchAny(patterns []string, relPath string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, relPath); err == nil && ok {
			return true
		}
	}
	return false
}
