package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/hermit/internal/artifact"
	"github.com/vk/hermit/internal/envcfg"
	"github.com/vk/hermit/internal/platform"
	"github.com/vk/hermit/internal/source"
	"github.com/vk/hermit/internal/testutil"
	"github.com/vk/hermit/internal/toolchain"
)

type buildEnv struct {
	root    string
	rules   *source.Rules
	tc      *toolchain.Toolchain
	profile *platform.Profile
	store   artifact.Store
	invoker *testutil.FakeInvoker
	deps    *DepsBuilder
	pkg     *PackageBuilder
}

func newBuildEnv(t *testing.T) *buildEnv {
	t.Helper()
	model := testutil.Model()

	resolver := toolchain.NewResolver(testutil.Locator())
	tc, err := resolver.Resolve(context.Background(), model.Toolchain)
	require.NoError(t, err)

	composer := platform.NewComposer(model.Inputs, model.Platforms, envcfg.Parse(nil))
	invoker := testutil.NewFakeInvoker()
	store := artifact.NewMemStore(t.TempDir())

	return &buildEnv{
		root:    testutil.WriteTree(t, testutil.Tree()),
		rules:   source.CompileRules(model.Source),
		tc:      tc,
		profile: composer.Compose(platform.Key{OS: "linux", Arch: "amd64"}),
		store:   store,
		invoker: invoker,
		deps:    NewDepsBuilder(store, invoker),
		pkg:     NewPackageBuilder(store, invoker, model.Package.Name, model.Package.Binary),
	}
}

func (e *buildEnv) selectSources(t *testing.T) *source.Set {
	t.Helper()
	set, err := source.Select(context.Background(), e.root, e.rules)
	require.NoError(t, err)
	return set
}

func (e *buildEnv) edit(t *testing.T, rel, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(e.root, filepath.FromSlash(rel)), []byte(content), 0o644))
}

// The two-phase caching scenario: application edits reuse the dependency
// artifact; manifest edits rebuild it.
func TestTwoPhaseCacheInvalidation(t *testing.T) {
	env := newBuildEnv(t)
	ctx := context.Background()

	// Build once.
	src := env.selectSources(t)
	depsFirst, err := env.deps.Build(ctx, env.tc, src, env.rules, env.profile)
	require.NoError(t, err)
	pkgFirst, err := env.pkg.Build(ctx, env.tc, depsFirst, src, env.profile, false)
	require.NoError(t, err)
	assert.Equal(t, 1, env.invoker.CountOp(toolchain.OpBuildDeps))
	assert.Equal(t, 1, env.invoker.CountOp(toolchain.OpBuild))

	// Edit application source only: dependency cache hit, package rebuilt.
	env.edit(t, "src/main.rs", "fn main() { edited() }\n")
	src = env.selectSources(t)

	depsSecond, err := env.deps.Build(ctx, env.tc, src, env.rules, env.profile)
	require.NoError(t, err)
	assert.Equal(t, depsFirst.Identity(), depsSecond.Identity())
	assert.Equal(t, 1, env.invoker.CountOp(toolchain.OpBuildDeps), "no dependency rebuild")

	pkgSecond, err := env.pkg.Build(ctx, env.tc, depsSecond, src, env.profile, false)
	require.NoError(t, err)
	assert.NotEqual(t, pkgFirst.Identity(), pkgSecond.Identity())
	assert.Equal(t, 2, env.invoker.CountOp(toolchain.OpBuild))

	// Edit the lock manifest: full dependency rebuild, new package key.
	env.edit(t, "Cargo.lock", "# lock v2\n")
	src = env.selectSources(t)

	depsThird, err := env.deps.Build(ctx, env.tc, src, env.rules, env.profile)
	require.NoError(t, err)
	assert.NotEqual(t, depsSecond.Identity(), depsThird.Identity())
	assert.Equal(t, 2, env.invoker.CountOp(toolchain.OpBuildDeps), "manifest edit forces rebuild")

	pkgThird, err := env.pkg.Build(ctx, env.tc, depsThird, src, env.profile, false)
	require.NoError(t, err)
	assert.NotEqual(t, pkgSecond.Identity(), pkgThird.Identity())
}

func TestPackageBuild_Idempotent(t *testing.T) {
	env := newBuildEnv(t)
	ctx := context.Background()
	src := env.selectSources(t)

	deps, err := env.deps.Build(ctx, env.tc, src, env.rules, env.profile)
	require.NoError(t, err)

	first, err := env.pkg.Build(ctx, env.tc, deps, src, env.profile, false)
	require.NoError(t, err)
	second, err := env.pkg.Build(ctx, env.tc, deps, src, env.profile, false)
	require.NoError(t, err)

	assert.Equal(t, first.Identity(), second.Identity())
	assert.Equal(t, 1, env.invoker.CountOp(toolchain.OpBuild), "second build must be a cache hit")

	a, err := os.ReadFile(filepath.Join(first.Path, "package.out"))
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(second.Path, "package.out"))
	require.NoError(t, err)
	assert.Equal(t, a, b, "identical inputs must yield byte-identical content")
}

func TestDepsBuild_KeyCoversToolchainAndPlatform(t *testing.T) {
	env := newBuildEnv(t)
	ctx := context.Background()
	src := env.selectSources(t)

	linux, err := env.deps.Build(ctx, env.tc, src, env.rules, env.profile)
	require.NoError(t, err)

	composer := platform.NewComposer(testutil.Model().Inputs, testutil.Model().Platforms, envcfg.Parse(nil))
	darwin, err := env.deps.Build(ctx, env.tc, src, env.rules, composer.Compose(platform.Key{OS: "darwin", Arch: "arm64"}))
	require.NoError(t, err)

	assert.NotEqual(t, linux.Identity(), darwin.Identity())
	assert.Equal(t, 2, env.invoker.CountOp(toolchain.OpBuildDeps))
}

func TestDepsBuild_FailureIsNeverCached(t *testing.T) {
	env := newBuildEnv(t)
	ctx := context.Background()
	src := env.selectSources(t)

	env.invoker.Fail[toolchain.OpBuildDeps] = errors.New("missing system library")
	_, err := env.deps.Build(ctx, env.tc, src, env.rules, env.profile)
	var depErr *DependencyError
	require.ErrorAs(t, err, &depErr)

	// Clearing the failure must lead to a real rebuild, not a stale hit.
	delete(env.invoker.Fail, toolchain.OpBuildDeps)
	_, err = env.deps.Build(ctx, env.tc, src, env.rules, env.profile)
	require.NoError(t, err)
	assert.Equal(t, 2, env.invoker.CountOp(toolchain.OpBuildDeps))
}

func TestPackageBuild_StageAttribution(t *testing.T) {
	env := newBuildEnv(t)
	ctx := context.Background()
	src := env.selectSources(t)

	deps, err := env.deps.Build(ctx, env.tc, src, env.rules, env.profile)
	require.NoError(t, err)

	env.invoker.Fail[toolchain.OpBuild] = errors.New("type mismatch")
	_, err = env.pkg.Build(ctx, env.tc, deps, src, env.profile, true)
	var buildErr *Error
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, StageCompile, buildErr.Stage)

	delete(env.invoker.Fail, toolchain.OpBuild)
	env.invoker.Fail[toolchain.OpTest] = errors.New("assertion failed")
	_, err = env.pkg.Build(ctx, env.tc, deps, src, env.profile, true)
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, StageTest, buildErr.Stage)
}

func TestPackageBuild_CacheHitStillRunsRequestedTests(t *testing.T) {
	env := newBuildEnv(t)
	ctx := context.Background()
	src := env.selectSources(t)

	deps, err := env.deps.Build(ctx, env.tc, src, env.rules, env.profile)
	require.NoError(t, err)

	_, err = env.pkg.Build(ctx, env.tc, deps, src, env.profile, false)
	require.NoError(t, err)

	env.invoker.Fail[toolchain.OpTest] = errors.New("flaky no more")
	_, err = env.pkg.Build(ctx, env.tc, deps, src, env.profile, true)
	var buildErr *Error
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, StageTest, buildErr.Stage)
	assert.Equal(t, 1, env.invoker.CountOp(toolchain.OpBuild), "hit must not recompile")
}

func TestManifestFingerprint_CoversOnlyManifests(t *testing.T) {
	env := newBuildEnv(t)
	src := env.selectSources(t)

	fp := ManifestFingerprint(src, env.rules)
	env.edit(t, "tests/fixtures/add.wat", "(module (func))\n")
	after := env.selectSources(t)

	assert.Equal(t, fp, ManifestFingerprint(after, env.rules))
}

func TestErrors_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	assert.True(t, errors.Is(&Error{Stage: StageCompile, Err: inner}, inner))
	assert.True(t, errors.Is(&DependencyError{Err: inner}, inner))
}

func TestErrorMessages_NameTheStage(t *testing.T) {
	err := &Error{Stage: StageTest, Err: errors.New("x")}
	assert.Contains(t, err.Error(), "test")
	err = &Error{Stage: StageCompile, Err: errors.New("x")}
	assert.Contains(t, err.Error(), "compile")
}
