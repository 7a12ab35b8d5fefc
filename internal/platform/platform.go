// Package platform resolves per-platform input profiles. A profile is the
// base input sets shared by every platform plus the extras registered for one
// operating-system/architecture pair; extras are additive only and never
// override base entries.
package platform

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/vk/hermit/internal/config"
	"github.com/vk/hermit/internal/envcfg"
)

// Key identifies one operating-system/architecture pair.
type Key struct {
	OS   string
	Arch string
}

// ParseKey parses a key in "os/arch" form.
func ParseKey(s string) (Key, error) {
	osName, arch, ok := strings.Cut(s, "/")
	if !ok || osName == "" || arch == "" {
		return Key{}, fmt.Errorf("invalid platform key %q: want os/arch", s)
	}
	return Key{OS: osName, Arch: arch}, nil
}

// HostKey returns the key of the platform hermit itself runs on.
func HostKey() Key {
	return Key{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

func (k Key) String() string { return k.OS + "/" + k.Arch }

// Profile is the resolved input set for one platform.
type Profile struct {
	Key Key
	// Native inputs are needed at build time only.
	Native []string
	// Runtime inputs are needed at build and run time.
	Runtime []string
	// Linker selects an alternate linker; empty means the toolchain default.
	Linker string
	// LinkFlags are extra flags for the selected linker.
	LinkFlags []string
}

// Composer assembles profiles from the configured base inputs, the
// platform-conditional extras, and the invocation environment.
type Composer struct {
	base    config.BaseInputs
	extras  map[string]*config.PlatformExtras
	environ *envcfg.Environ
}

// NewComposer creates a Composer. The extras map is keyed by "os/arch".
func NewComposer(base config.BaseInputs, extras map[string]*config.PlatformExtras, environ *envcfg.Environ) *Composer {
	return &Composer{base: base, extras: extras, environ: environ}
}

// Compose resolves the profile for the given key. A key with no registered
// extras yields the base inputs unchanged; that is the normal case, not an
// error. Environment linker overrides apply only to their matching pair and
// win over configured linkers.
func (c *Composer) Compose(key Key) *Profile {
	profile := &Profile{
		Key:     key,
		Native:  mergeSorted(c.base.Native, nil),
		Runtime: mergeSorted(c.base.Runtime, nil),
	}

	if extras, ok := c.extras[key.String()]; ok {
		profile.Native = mergeSorted(c.base.Native, extras.Native)
		profile.Runtime = mergeSorted(c.base.Runtime, extras.Runtime)
		profile.Linker = extras.Linker
		profile.LinkFlags = append([]string(nil), extras.LinkFlags...)
	}

	if linker := c.environ.LinkerFor(key.String()); linker != "" {
		profile.Linker = linker
	}
	if flags := c.environ.LinkFlagsFor(key.String()); flags != nil {
		profile.LinkFlags = append(profile.LinkFlags, flags...)
	}

	return profile
}

// BuildEnv renders the profile as toolchain invocation environment. Linker
// settings are emitted only when an alternate linker is in effect.
func (p *Profile) BuildEnv() map[string]string {
	env := make(map[string]string)
	if p.Linker != "" {
		env["HERMIT_BUILD_LINKER"] = p.Linker
	}
	if len(p.LinkFlags) > 0 {
		env["HERMIT_BUILD_LINKFLAGS"] = strings.Join(p.LinkFlags, " ")
	}
	return env
}

// mergeSorted returns the deduplicated sorted union of base and extras.
func mergeSorted(base, extras []string) []string {
	seen := make(map[string]bool, len(base)+len(extras))
	out := make([]string, 0, len(base)+len(extras))
	for _, lists := range [][]string{base, extras} {
		for _, entry := range lists {
			if !seen[entry] {
				seen[entry] = true
				out = append(out, entry)
			}
		}
	}
	sort.Strings(out)
	return out
}
