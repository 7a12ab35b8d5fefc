package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/hermit/internal/artifact"
	"github.com/vk/hermit/internal/build"
	"github.com/vk/hermit/internal/checks"
	"github.com/vk/hermit/internal/envcfg"
	"github.com/vk/hermit/internal/platform"
	"github.com/vk/hermit/internal/testutil"
	"github.com/vk/hermit/internal/toolchain"
)

func newPipeline(t *testing.T) (*Pipeline, *testutil.FakeInvoker) {
	t.Helper()
	return newPipelineWorkers(t, 4)
}

func newPipelineWorkers(t *testing.T, workers int) (*Pipeline, *testutil.FakeInvoker) {
	t.Helper()
	invoker := testutil.NewFakeInvoker()
	pipe := New(
		testutil.Model(),
		envcfg.Parse(nil),
		testutil.WriteTree(t, testutil.Tree()),
		toolchain.NewResolver(testutil.Locator()),
		invoker,
		artifact.NewMemStore(t.TempDir()),
		workers,
	)
	return pipe, invoker
}

var testKeys = []platform.Key{
	{OS: "linux", Arch: "amd64"},
	{OS: "darwin", Arch: "arm64"},
}

func TestEvaluate_MultiPlatformPackages(t *testing.T) {
	pipe, invoker := newPipeline(t)

	outcome, err := pipe.Evaluate(context.Background(), Options{
		Platforms:   testKeys,
		WithPackage: true,
	})
	require.NoError(t, err)

	require.NotNil(t, outcome.Source)
	require.NotNil(t, outcome.Toolchain)
	require.Len(t, outcome.Platforms, 2)

	for _, key := range testKeys {
		po := outcome.Platforms[key.String()]
		require.NotNil(t, po, "platform %s", key)
		assert.NotNil(t, po.Profile)
		assert.NotNil(t, po.Deps)
		assert.NotNil(t, po.Package)
		assert.Nil(t, po.Shell, "not requested")
	}

	// One dependency and one package build per platform: the branches share
	// nothing except the source set and toolchain.
	assert.Equal(t, 2, invoker.CountOp(toolchain.OpBuildDeps))
	assert.Equal(t, 2, invoker.CountOp(toolchain.OpBuild))
}

func TestEvaluate_DefaultsToHostPlatform(t *testing.T) {
	pipe, _ := newPipeline(t)

	outcome, err := pipe.Evaluate(context.Background(), Options{WithPackage: true})
	require.NoError(t, err)
	require.Len(t, outcome.Platforms, 1)
	assert.NotNil(t, outcome.Platforms[platform.HostKey().String()])
}

func TestEvaluate_DuplicatePlatformsCollapse(t *testing.T) {
	pipe, invoker := newPipeline(t)

	outcome, err := pipe.Evaluate(context.Background(), Options{
		Platforms:   []platform.Key{testKeys[0], testKeys[0]},
		WithPackage: true,
	})
	require.NoError(t, err)
	assert.Len(t, outcome.Platforms, 1)
	assert.Equal(t, 1, invoker.CountOp(toolchain.OpBuildDeps))
}

func TestEvaluate_ChecksWithoutPackage(t *testing.T) {
	pipe, invoker := newPipeline(t)

	outcome, err := pipe.Evaluate(context.Background(), Options{
		Platforms: testKeys[:1],
		Checks:    []checks.Kind{checks.KindLint, checks.KindFormat, checks.KindBuild},
	})
	require.NoError(t, err)

	po := outcome.Platforms[testKeys[0].String()]
	require.Len(t, po.Checks, 3)
	for _, r := range po.Checks {
		assert.True(t, r.Passed, "kind %s", r.Kind)
	}
	assert.Nil(t, po.Package, "checks build through the builder, not the package stage")
	assert.Equal(t, 1, invoker.CountOp(toolchain.OpBuildDeps), "checks consume the dependency artifact")
}

func TestEvaluate_NoProductsSkipsDepsBuild(t *testing.T) {
	pipe, invoker := newPipeline(t)

	outcome, err := pipe.Evaluate(context.Background(), Options{Platforms: testKeys[:1]})
	require.NoError(t, err)
	assert.NotNil(t, outcome.Source)
	assert.NotNil(t, outcome.Platforms[testKeys[0].String()].Profile)
	assert.Zero(t, invoker.CountOp(toolchain.OpBuildDeps), "nothing consumes deps, nothing builds them")
}

func TestEvaluate_ShellDescriptor(t *testing.T) {
	pipe, _ := newPipeline(t)

	outcome, err := pipe.Evaluate(context.Background(), Options{
		Platforms: testKeys[:1],
		WithShell: true,
	})
	require.NoError(t, err)

	d := outcome.Platforms[testKeys[0].String()].Shell
	require.NotNil(t, d)
	assert.Equal(t, outcome.Toolchain.Identity(), d.Toolchain.Identity)
	assert.Equal(t, []string{"just"}, d.Tools)
	assert.Equal(t, "debug", d.Env["RUST_LOG"])
}

func TestEvaluate_TypedErrorsPropagate(t *testing.T) {
	pipe, invoker := newPipeline(t)
	invoker.Fail[toolchain.OpBuildDeps] = errors.New("missing header")

	outcome, err := pipe.Evaluate(context.Background(), Options{
		Platforms:   testKeys[:1],
		WithPackage: true,
	})
	require.Error(t, err)
	var depErr *build.DependencyError
	assert.ErrorAs(t, err, &depErr)
	assert.Contains(t, err.Error(), "deps/linux/amd64", "the error names the failing stage")

	// The package stage was skipped, not attempted.
	assert.Zero(t, invoker.CountOp(toolchain.OpBuild))
	assert.Nil(t, outcome.Platforms[testKeys[0].String()].Package)
}

func TestEvaluate_ToolchainUnavailable(t *testing.T) {
	invoker := testutil.NewFakeInvoker()
	model := testutil.Model()
	pipe := New(
		model,
		envcfg.Parse(nil),
		testutil.WriteTree(t, testutil.Tree()),
		toolchain.NewResolver(&toolchain.StaticLocator{Channels: map[string][]string{}}),
		invoker,
		artifact.NewMemStore(t.TempDir()),
		2,
	)

	_, err := pipe.Evaluate(context.Background(), Options{WithPackage: true})
	require.Error(t, err)
	var unavailable *toolchain.UnavailableError
	assert.ErrorAs(t, err, &unavailable)
	assert.Zero(t, invoker.CountOp(toolchain.OpBuildDeps), "no build without a pinned toolchain")
}

func TestEvaluate_CheckFailureStillFillsResults(t *testing.T) {
	pipe, invoker := newPipeline(t)
	invoker.LintOutput = "warning: unused import\n"

	outcome, err := pipe.Evaluate(context.Background(), Options{
		Platforms: testKeys[:1],
		Checks:    []checks.Kind{checks.KindLint, checks.KindFormat},
	})
	require.Error(t, err)
	var failure *checks.Failure
	assert.ErrorAs(t, err, &failure)

	po := outcome.Platforms[testKeys[0].String()]
	require.Len(t, po.Checks, 2, "results survive a failing aggregate")
}

func TestEvaluate_CheckFailureDoesNotCancelOtherPlatforms(t *testing.T) {
	// A single worker serializes the stages, so one platform's failing lint
	// finishes before the other platform's checks have started.
	pipe, invoker := newPipelineWorkers(t, 1)
	invoker.LintOutput = "warning: unused import\n"

	outcome, err := pipe.Evaluate(context.Background(), Options{
		Platforms: testKeys,
		Checks:    []checks.Kind{checks.KindLint, checks.KindFormat, checks.KindBuild},
	})
	require.Error(t, err)
	var failure *checks.Failure
	assert.ErrorAs(t, err, &failure)

	for _, key := range testKeys {
		po := outcome.Platforms[key.String()]
		require.NotNil(t, po)
		require.Len(t, po.Checks, 3, "full suite on %s despite a failure elsewhere", key)
		for _, r := range po.Checks {
			if r.Kind == checks.KindLint {
				assert.False(t, r.Passed, "lint on %s", key)
			} else {
				assert.True(t, r.Passed, "kind %s on %s", r.Kind, key)
			}
		}
	}
	assert.Equal(t, 2, invoker.CountOp(toolchain.OpBuildDeps), "both platforms reach their dependency builds")
}
