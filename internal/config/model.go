package config

import "context"

// Model is the unified, format-agnostic representation of one package's
// build description: what to build, with which toolchain, from which files,
// for which platforms.
type Model struct {
	Package   Package
	Source    SourceRules
	Toolchain ToolchainPin
	Inputs    BaseInputs
	Platforms map[string]*PlatformExtras
	Shell     Shell
}

// Package identifies the single package this invocation orchestrates.
type Package struct {
	Name    string
	Version string
	// Binary is the name of the runnable produced by a full build. Defaults
	// to the package name.
	Binary string
}

// SourceRules configures the SourceSet inclusion predicates. A file is
// included when it matches either the default-source predicate (Extensions
// or ManifestGlobs) or the auxiliary Patterns predicate; the two are a set
// union, not a fallback chain.
type SourceRules struct {
	// Extensions lists source file extensions, e.g. [".rs"].
	Extensions []string
	// ManifestGlobs match the dependency-declaration files (lock manifest
	// plus dependency graph). These alone feed the dependency-artifact
	// cache key.
	ManifestGlobs []string
	// Patterns are auxiliary include globs for files a default filter would
	// drop, e.g. test fixtures ("**/*.wat", "testdata/**").
	Patterns []string
}

// ToolchainPin names the compiler toolchain and its optional components.
type ToolchainPin struct {
	Channel    string
	Version    string
	Components []string
	// Driver is the toolchain driver binary invoked for builds.
	Driver string
}

// BaseInputs are the inputs shared by every platform profile. Native inputs
// are needed at build time only; runtime inputs at build and run time.
type BaseInputs struct {
	Native  []string
	Runtime []string
}

// PlatformExtras are additive, platform-conditional inputs. They never
// override base entries.
type PlatformExtras struct {
	Native    []string
	Runtime   []string
	Linker    string
	LinkFlags []string
}

// Shell configures the development shell: extra tooling beyond the toolchain
// and environment variable overrides applied last.
type Shell struct {
	Tools []string
	Env   map[string]string
}

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads the build description at path and translates it into the
	// format-agnostic model.
	Load(ctx context.Context, path string) (*Model, error)
}
