// Package checks runs the verification suite: lint, format, and a package
// build, all against the same fingerprinted inputs as the build path. Check
// kinds are independent: each one runs and reports regardless of the others,
// and the aggregate passes only when every member does.
package checks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vk/hermit/internal/artifact"
	"github.com/vk/hermit/internal/build"
	"github.com/vk/hermit/internal/ctxlog"
	"github.com/vk/hermit/internal/platform"
	"github.com/vk/hermit/internal/source"
	"github.com/vk/hermit/internal/toolchain"
)

// Kind names one check.
type Kind string

// The three check kinds.
const (
	KindLint   Kind = "lint"
	KindFormat Kind = "format"
	KindBuild  Kind = "package-build"
)

// Result is the outcome of one check kind.
type Result struct {
	Kind   Kind
	Passed bool
	// Detail explains a failure: lint findings, a formatting diff, or the
	// failing build stage.
	Detail string
}

// Failure is the error form of a failed check.
type Failure struct {
	Kind   Kind
	Detail string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s check failed:\n%s", f.Kind, f.Detail)
}

// Aggregator runs the check suite.
type Aggregator struct {
	invoker toolchain.Invoker
	pkg     *build.PackageBuilder
}

// NewAggregator creates an Aggregator. The package builder is shared with the
// build path, so the package-build check reuses any artifact the current
// inputs already produced.
func NewAggregator(invoker toolchain.Invoker, pkg *build.PackageBuilder) *Aggregator {
	return &Aggregator{invoker: invoker, pkg: pkg}
}

// Run executes the requested check kinds concurrently and returns one Result
// per kind plus an aggregate error when any member failed. A failing check
// never stops the others; the context is cancelled only by the caller.
func (a *Aggregator) Run(
	ctx context.Context,
	tc *toolchain.Toolchain,
	src *source.Set,
	rules *source.Rules,
	profile *platform.Profile,
	deps *artifact.Entry,
	kinds []Kind,
) ([]Result, error) {
	logger := ctxlog.FromContext(ctx)
	if len(kinds) == 0 {
		kinds = []Kind{KindLint, KindFormat, KindBuild}
	}

	results := make([]Result, len(kinds))
	group := &errgroup.Group{}

	for i, kind := range kinds {
		group.Go(func() error {
			var failure *Failure
			switch kind {
			case KindLint:
				failure = a.lint(ctx, tc, src, profile)
			case KindFormat:
				failure = a.format(ctx, tc, src, rules)
			case KindBuild:
				failure = a.buildCheck(ctx, tc, src, profile, deps)
			default:
				return fmt.Errorf("unknown check kind %q", kind)
			}

			if failure != nil {
				logger.Warn("Check failed.", "kind", string(kind))
				results[i] = Result{Kind: kind, Passed: false, Detail: failure.Detail}
			} else {
				logger.Debug("Check passed.", "kind", string(kind))
				results[i] = Result{Kind: kind, Passed: true}
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var failures []error
	for i := range results {
		if !results[i].Passed {
			failures = append(failures, &Failure{Kind: results[i].Kind, Detail: results[i].Detail})
		}
	}
	return results, errors.Join(failures...)
}

// lint runs the linter with a zero-tolerance policy: every warning anywhere
// in source, example, test, or benchmark code is an error.
func (a *Aggregator) lint(
	ctx context.Context,
	tc *toolchain.Toolchain,
	src *source.Set,
	profile *platform.Profile,
) *Failure {
	// -D warnings is the zero-tolerance policy: the linter itself already
	// fails the run on any warning, and countWarnings below catches linters
	// that downgrade instead of failing.
	result, err := a.invoker.Invoke(ctx, toolchain.Invocation{
		Op:        toolchain.OpLint,
		Toolchain: tc,
		Root:      src.Root,
		Env:       profile.BuildEnv(),
		Args:      []string{"-D", "warnings"},
	})
	if err != nil {
		return &Failure{Kind: KindLint, Detail: err.Error()}
	}
	if warnings := countWarnings(result.Output); warnings > 0 {
		return &Failure{
			Kind:   KindLint,
			Detail: fmt.Sprintf("%d warning(s) under zero-tolerance policy:\n%s", warnings, result.Output),
		}
	}
	return nil
}

// buildCheck reuses the package builder's success as a check.
func (a *Aggregator) buildCheck(
	ctx context.Context,
	tc *toolchain.Toolchain,
	src *source.Set,
	profile *platform.Profile,
	deps *artifact.Entry,
) *Failure {
	if _, err := a.pkg.Build(ctx, tc, deps, src, profile, false); err != nil {
		return &Failure{Kind: KindBuild, Detail: err.Error()}
	}
	return nil
}

// countWarnings counts linter warning lines in tool output.
func countWarnings(output string) int {
	count := 0
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, "warning:") {
			count++
		}
	}
	return count
}
