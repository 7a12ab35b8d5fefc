// Package envcfg captures the process environment variables hermit consumes
// into one explicit struct, built once per invocation. Stages receive the
// struct instead of reading os.Environ themselves, so a build's inputs stay
// visible in one place.
package envcfg

import (
	"strings"
)

// Variable names consumed by hermit. Per-target linker variables follow the
// pattern HERMIT_LINKER_<OS>_<ARCH> / HERMIT_LINKFLAGS_<OS>_<ARCH>, for
// example HERMIT_LINKER_LINUX_AMD64=mold.
const (
	VarTargetDir = "HERMIT_TARGET_DIR"
	VarLog       = "HERMIT_LOG"

	linkerPrefix    = "HERMIT_LINKER_"
	linkFlagsPrefix = "HERMIT_LINKFLAGS_"
)

// Environ is the parsed invocation environment. The zero value means no
// overrides: the default target directory and the toolchain's built-in linker.
type Environ struct {
	// TargetDir redirects all build output when non-empty.
	TargetDir string
	// LogLevel overrides the logging verbosity for hermit's own namespace.
	LogLevel string

	// linkers maps a platform key ("linux/amd64") to an alternate linker.
	linkers map[string]string
	// linkFlags maps a platform key to extra linker flags.
	linkFlags map[string][]string
}

// Parse builds an Environ from a raw environment slice in the "KEY=value"
// form returned by os.Environ. Unknown variables are ignored.
func Parse(environ []string) *Environ {
	e := &Environ{
		linkers:   make(map[string]string),
		linkFlags: make(map[string][]string),
	}
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch {
		case name == VarTargetDir:
			e.TargetDir = value
		case name == VarLog:
			e.LogLevel = strings.ToLower(value)
		case strings.HasPrefix(name, linkerPrefix):
			if key := platformKeyFromSuffix(strings.TrimPrefix(name, linkerPrefix)); key != "" {
				e.linkers[key] = value
			}
		case strings.HasPrefix(name, linkFlagsPrefix):
			if key := platformKeyFromSuffix(strings.TrimPrefix(name, linkFlagsPrefix)); key != "" {
				e.linkFlags[key] = strings.Fields(value)
			}
		}
	}
	return e
}

// LinkerFor returns the alternate linker for the given platform key, or ""
// when the platform has no override and the toolchain default applies.
func (e *Environ) LinkerFor(platformKey string) string {
	if e == nil {
		return ""
	}
	return e.linkers[platformKey]
}

// LinkFlagsFor returns extra linker flags for the given platform key. The
// result is nil for platforms without an override.
func (e *Environ) LinkFlagsFor(platformKey string) []string {
	if e == nil {
		return nil
	}
	return e.linkFlags[platformKey]
}

// platformKeyFromSuffix converts an env-var suffix like "LINUX_AMD64" into
// the canonical "linux/amd64" platform key. The suffix must contain exactly
// one underscore separating OS and architecture.
func platformKeyFromSuffix(suffix string) string {
	osName, arch, ok := strings.Cut(suffix, "_")
	if !ok || osName == "" || arch == "" {
		return ""
	}
	return strings.ToLower(osName) + "/" + strings.ToLower(arch)
}
