package build

import "fmt"

// Stage attributes a build failure to the phase that regressed.
type Stage string

const (
	// StageCompile is a compilation failure; it blocks package availability.
	StageCompile Stage = "compile"
	// StageTest is a test-suite failure within a build that requested tests.
	StageTest Stage = "test"
)

// Error is a full-package build failure with stage attribution.
type Error struct {
	Stage  Stage
	Output string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("package build failed at %s stage: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// DependencyError is a dependencies-only build failure. Fatal for the
// invocation; the cache is left untouched.
type DependencyError struct {
	Output string
	Err    error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("dependency build failed: %v", e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }
