package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/vk/hermit/internal/checks"
	"github.com/vk/hermit/internal/ctxlog"
	"github.com/vk/hermit/internal/pipeline"
	"github.com/vk/hermit/internal/platform"
	"github.com/vk/hermit/internal/shell"
)

// Package builds the full package for every requested platform, optionally
// running the test suite as part of the build step.
func (a *App) Package(ctx context.Context, runTests bool) (*pipeline.Outcome, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	return a.pipe.Evaluate(ctx, pipeline.Options{
		Platforms:   a.platforms,
		WithPackage: true,
		RunTests:    runTests,
	})
}

// Checks runs the verification suite. The outcome carries per-platform check
// results even when the returned error is non-nil; the error aggregates
// every failing kind.
func (a *App) Checks(ctx context.Context, kinds []checks.Kind) (*pipeline.Outcome, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	if len(kinds) == 0 {
		kinds = []checks.Kind{checks.KindLint, checks.KindFormat, checks.KindBuild}
	}
	return a.pipe.Evaluate(ctx, pipeline.Options{
		Platforms: a.platforms,
		Checks:    kinds,
	})
}

// DevShell composes the development environment descriptor for the first
// requested platform. It derives from the same toolchain and profile values
// as the build path.
func (a *App) DevShell(ctx context.Context) (*shell.Descriptor, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	outcome, err := a.pipe.Evaluate(ctx, pipeline.Options{
		Platforms: a.platforms[:1],
		WithShell: true,
	})
	if err != nil {
		return nil, err
	}
	return outcome.Platforms[a.platforms[0].String()].Shell, nil
}

// AppHandle builds the package for the host platform and returns the path of
// the runnable binary inside the published artifact.
func (a *App) AppHandle(ctx context.Context) (string, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	host := platform.HostKey()

	outcome, err := a.pipe.Evaluate(ctx, pipeline.Options{
		Platforms:   []platform.Key{host},
		WithPackage: true,
	})
	if err != nil {
		return "", err
	}

	pkg := outcome.Platforms[host.String()].Package
	if pkg == nil {
		return "", fmt.Errorf("no package artifact produced for %s", host)
	}
	return filepath.Join(pkg.Path, a.model.Package.Binary), nil
}

// FormatDiff returns the unified diff between the SourceSet and its canonical
// formatting, or "" when clean.
func (a *App) FormatDiff(ctx context.Context) (string, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	outcome, err := a.resolveInputs(ctx)
	if err != nil {
		return "", err
	}
	return checks.FormatDiff(ctx, a.invoker, outcome.Toolchain, outcome.Source, a.pipe.Rules())
}

// FormatWrite applies canonical formatting in place and returns the rewritten
// paths.
func (a *App) FormatWrite(ctx context.Context) ([]string, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	outcome, err := a.resolveInputs(ctx)
	if err != nil {
		return nil, err
	}
	return checks.FormatWrite(ctx, a.invoker, outcome.Toolchain, outcome.Source, a.pipe.Rules())
}

// resolveInputs evaluates only the shared input stages: source selection and
// toolchain resolution.
func (a *App) resolveInputs(ctx context.Context) (*pipeline.Outcome, error) {
	return a.pipe.Evaluate(ctx, pipeline.Options{Platforms: a.platforms[:1]})
}
