package toolchain

import "context"

// Op names one capability of the toolchain.
type Op string

// Toolchain operations. The orchestrator never interprets what an operation
// does; it only sequences them and caches their results.
const (
	// OpBuildDeps compiles external dependencies only, without package source.
	OpBuildDeps Op = "build-deps"
	// OpBuild compiles the full package.
	OpBuild Op = "build"
	// OpTest runs the package test suite.
	OpTest Op = "test"
	// OpLint runs the linter.
	OpLint Op = "lint"
	// OpFormat produces the canonical formatting of the given files.
	OpFormat Op = "format"
)

// Invocation describes one call into the toolchain.
type Invocation struct {
	Op        Op
	Toolchain *Toolchain
	// Root is the source tree the operation runs against.
	Root string
	// OutDir is where build operations place their outputs. Empty for
	// operations that produce no artifacts.
	OutDir string
	// Files are the relative paths OpFormat operates on.
	Files []string
	// Env carries operation environment such as linker selection. It is the
	// only environment the orchestrator contributes; nothing is read from the
	// process environment inside stages.
	Env map[string]string
	// Args are extra operation arguments, e.g. the lint warning policy.
	Args []string
}

// Result is the outcome of a successful invocation.
type Result struct {
	// Output is the combined tool output.
	Output string
	// Files maps each requested path to its canonical content. Populated by
	// OpFormat only.
	Files map[string][]byte
}

// Invoker abstracts the compiler/linter/formatter processes. Implementations
// must be deterministic for identical invocations; the caching layers above
// depend on it.
type Invoker interface {
	Invoke(ctx context.Context, inv Invocation) (*Result, error)
}
