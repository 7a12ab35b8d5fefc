package build

import (
	"context"

	"github.com/vk/hermit/internal/artifact"
	"github.com/vk/hermit/internal/ctxlog"
	"github.com/vk/hermit/internal/platform"
	"github.com/vk/hermit/internal/source"
	"github.com/vk/hermit/internal/toolchain"
)

// PackageBuilder builds the full package on top of a cached dependency
// artifact. A package is keyed by (dependency artifact identity, source
// fingerprint): any source edit rebuilds the package while the dependency
// artifact is reused unchanged.
type PackageBuilder struct {
	store   artifact.Store
	invoker toolchain.Invoker
	name    string
	binary  string
}

// NewPackageBuilder creates a PackageBuilder for the named package whose
// runnable output is the given binary name.
func NewPackageBuilder(store artifact.Store, invoker toolchain.Invoker, name, binary string) *PackageBuilder {
	return &PackageBuilder{store: store, invoker: invoker, name: name, binary: binary}
}

// Binary returns the name of the runnable this builder produces.
func (b *PackageBuilder) Binary() string { return b.binary }

// Build compiles the package against the dependency artifact. When runTests
// is set, the test suite runs in the same build step and a test failure is
// reported as a distinct stage from a compile failure. Identical inputs
// yield the cached artifact without re-invoking the toolchain.
func (b *PackageBuilder) Build(
	ctx context.Context,
	tc *toolchain.Toolchain,
	deps *artifact.Entry,
	src *source.Set,
	profile *platform.Profile,
	runTests bool,
) (*artifact.Entry, error) {
	logger := ctxlog.FromContext(ctx)

	sourceFP := src.Fingerprint()
	key := artifact.Key(deps.Identity(), sourceFP)

	if entry, ok, err := b.store.Get(ctx, artifact.KindPackage, key); err != nil {
		return nil, err
	} else if ok {
		logger.Debug("Package artifact reused.", "platform", profile.Key.String())
		if runTests {
			if err := b.runTests(ctx, tc, deps, src, profile); err != nil {
				return nil, err
			}
		}
		return entry, nil
	}

	logger.Info("Building package.", "package", b.name,
		"platform", profile.Key.String(), "tests", runTests)

	meta := artifact.Meta{
		Kind:      artifact.KindPackage,
		Key:       key,
		Package:   b.name,
		Toolchain: tc.Identity(),
		Platform:  profile.Key.String(),
		Inputs: map[string]string{
			"deps":   deps.Identity(),
			"source": sourceFP,
		},
	}

	entry, err := b.store.Put(ctx, meta, func(dir string) error {
		env := depsEnv(profile, deps)

		result, err := b.invoker.Invoke(ctx, toolchain.Invocation{
			Op:        toolchain.OpBuild,
			Toolchain: tc,
			Root:      src.Root,
			OutDir:    dir,
			Env:       env,
		})
		if err != nil {
			return &Error{Stage: StageCompile, Output: toolOutput(result), Err: err}
		}

		if runTests {
			result, err := b.invoker.Invoke(ctx, toolchain.Invocation{
				Op:        toolchain.OpTest,
				Toolchain: tc,
				Root:      src.Root,
				OutDir:    dir,
				Env:       env,
			})
			if err != nil {
				return &Error{Stage: StageTest, Output: toolOutput(result), Err: err}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// runTests executes the test suite against an already-built artifact. Used on
// cache hits: the artifact key deliberately excludes the test toggle, so a
// hit with tests requested still runs them.
func (b *PackageBuilder) runTests(
	ctx context.Context,
	tc *toolchain.Toolchain,
	deps *artifact.Entry,
	src *source.Set,
	profile *platform.Profile,
) error {
	result, err := b.invoker.Invoke(ctx, toolchain.Invocation{
		Op:        toolchain.OpTest,
		Toolchain: tc,
		Root:      src.Root,
		Env:       depsEnv(profile, deps),
	})
	if err != nil {
		return &Error{Stage: StageTest, Output: toolOutput(result), Err: err}
	}
	return nil
}
