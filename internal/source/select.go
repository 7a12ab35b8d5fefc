package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vk/hermit/internal/ctxlog"
)

// skipDirs are tree roots never relevant to a build. The target directory is
// excluded separately by the selector since its location is configurable.
var skipDirs = map[string]bool{
	".git":   true,
	".hg":    true,
	".jj":    true,
	"target": true,
}

// File is one selected file: its slash-separated path relative to the source
// root and the hex SHA-256 of its content.
type File struct {
	Path string
	Hash string
}

// Set is an ordered, filtered view of the source tree plus a content
// fingerprint. Files are sorted by path so the fingerprint is deterministic.
type Set struct {
	Root  string
	Files []File
}

// SelectionError reports an unreadable source root. It is fatal: no build can
// proceed without a SourceSet.
type SelectionError struct {
	Root string
	Err  error
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("cannot select sources under %s: %v", e.Root, e.Err)
}

func (e *SelectionError) Unwrap() error { return e.Err }

// Select walks the tree under root and returns the SourceSet matched by the
// rules. Selection looks only at what is on disk: a file absent from version
// control is still included when it matches the rules.
func Select(ctx context.Context, root string, rules *Rules) (*Set, error) {
	logger := ctxlog.FromContext(ctx)

	info, err := os.Stat(root)
	if err != nil {
		return nil, &SelectionError{Root: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &SelectionError{Root: root, Err: fmt.Errorf("not a directory")}
	}

	set := &Set{Root: root}
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !rules.Includes(rel) {
			return nil
		}
		hash, err := hashFile(p)
		if err != nil {
			return err
		}
		set.Files = append(set.Files, File{Path: rel, Hash: hash})
		return nil
	})
	if err != nil {
		return nil, &SelectionError{Root: root, Err: err}
	}

	sort.Slice(set.Files, func(i, j int) bool { return set.Files[i].Path < set.Files[j].Path })
	logger.Debug("Source selection complete.", "root", root, "files", len(set.Files))
	return set, nil
}

// Fingerprint returns the content hash of the whole set.
func (s *Set) Fingerprint() string {
	return s.FingerprintOf(func(string) bool { return true })
}

// FingerprintOf returns the content hash of the subset of files whose path
// satisfies the predicate. The hash covers paths and content hashes, so both
// renames and edits change it.
func (s *Set) FingerprintOf(pred func(relPath string) bool) string {
	h := sha256.New()
	for _, f := range s.Files {
		if !pred(f.Path) {
			continue
		}
		io.WriteString(h, f.Path)
		io.WriteString(h, "\x00")
		io.WriteString(h, f.Hash)
		io.WriteString(h, "\x00")
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Contains reports whether the set includes the given relative path.
func (s *Set) Contains(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	i := sort.Search(len(s.Files), func(i int) bool { return s.Files[i].Path >= relPath })
	return i < len(s.Files) && s.Files[i].Path == relPath
}

// Paths returns the relative paths of all files in the set, optionally
// filtered by extension suffixes.
func (s *Set) Paths(suffixes ...string) []string {
	var out []string
	for _, f := range s.Files {
		if len(suffixes) == 0 {
			out = append(out, f.Path)
			continue
		}
		for _, suffix := range suffixes {
			if strings.HasSuffix(f.Path, suffix) {
				out = append(out, f.Path)
				break
			}
		}
	}
	return out
}

// hashFile returns the hex SHA-256 of the file's content.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
