// Package toolchain resolves the pinned compiler toolchain and abstracts its
// invocation. The compiler, linter, and formatter are opaque capabilities to
// the rest of the orchestrator: everything downstream sees only the Invoker
// interface and the resolved Toolchain identity.
package toolchain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Toolchain is a resolved, pinned toolchain. Immutable once resolved: it is
// created once per invocation and reused by every downstream stage.
type Toolchain struct {
	Channel    string
	Version    string
	Components []string

	identity string
}

// newToolchain constructs a Toolchain with a deterministic identity. The
// component list is sorted and deduplicated so ordering in configuration
// cannot change the identity.
func newToolchain(channel, version string, components []string) *Toolchain {
	comps := append([]string(nil), components...)
	sort.Strings(comps)
	comps = dedup(comps)

	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s", channel, version, strings.Join(comps, "\x00"))

	return &Toolchain{
		Channel:    channel,
		Version:    version,
		Components: comps,
		identity:   hex.EncodeToString(h.Sum(nil)),
	}
}

// Identity returns the toolchain's stable identity hash. Two resolutions of
// the same channel, version, and component set always share an identity.
func (t *Toolchain) Identity() string { return t.identity }

// HasComponent reports whether the named optional component was resolved.
func (t *Toolchain) HasComponent(name string) bool {
	for _, c := range t.Components {
		if c == name {
			return true
		}
	}
	return false
}

func (t *Toolchain) String() string {
	if t.Version == "" {
		return t.Channel
	}
	return t.Channel + "-" + t.Version
}

func dedup(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || sorted[i-1] != s {
			out = append(out, s)
		}
	}
	return out
}
