package app_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/hermit/internal/app"
	"github.com/vk/hermit/internal/artifact"
	"github.com/vk/hermit/internal/checks"
	"github.com/vk/hermit/internal/hclconf"
	"github.com/vk/hermit/internal/platform"
	"github.com/vk/hermit/internal/testutil"
	"github.com/vk/hermit/internal/toolchain"
)

const appConfig = `
package "demo" {}

source {
  extensions = [".rs"]
  manifests  = ["Cargo.toml", "Cargo.lock"]
  patterns   = ["**/*.wat"]
}

toolchain "stable" {
  version    = "1.76.0"
  components = ["clippy", "rustfmt"]
}

shell {
  tools = ["just"]
}
`

func newTestApp(t *testing.T, platforms ...string) (*app.App, *testutil.FakeInvoker, string) {
	t.Helper()
	root := testutil.WriteTree(t, testutil.Tree())
	configPath := filepath.Join(root, "hermit.hcl")
	require.NoError(t, os.WriteFile(configPath, []byte(appConfig), 0o644))

	invoker := testutil.NewFakeInvoker()
	logs := &testutil.SafeBuffer{}
	a, err := app.New(logs, app.Config{
		ConfigPath: configPath,
		LogLevel:   "debug",
		Platforms:  platforms,
		Workers:    4,
	}, hclconf.NewLoader(),
		app.WithEnviron([]string{}),
		app.WithLocator(testutil.Locator()),
		app.WithInvoker(invoker),
		app.WithStore(artifact.NewMemStore(t.TempDir())),
	)
	require.NoError(t, err)
	return a, invoker, root
}

func TestNew_LoadsModelAndDefaults(t *testing.T) {
	a, _, _ := newTestApp(t)
	assert.Equal(t, "demo", a.Model().Package.Name)
	assert.Equal(t, "demo", a.Model().Package.Binary)
	assert.Equal(t, "cargo", a.Model().Toolchain.Driver)
}

func TestNew_RejectsBadConfigPath(t *testing.T) {
	_, err := app.New(&testutil.SafeBuffer{}, app.Config{
		ConfigPath: filepath.Join(t.TempDir(), "absent.hcl"),
	}, hclconf.NewLoader(), app.WithEnviron([]string{}))
	assert.Error(t, err)
}

func TestNew_RejectsBadPlatform(t *testing.T) {
	root := testutil.WriteTree(t, testutil.Tree())
	configPath := filepath.Join(root, "hermit.hcl")
	require.NoError(t, os.WriteFile(configPath, []byte(appConfig), 0o644))

	_, err := app.New(&testutil.SafeBuffer{}, app.Config{
		ConfigPath: configPath,
		Platforms:  []string{"linuxamd64"},
	}, hclconf.NewLoader(),
		app.WithEnviron([]string{}),
		app.WithStore(artifact.NewMemStore(t.TempDir())),
	)
	assert.Error(t, err)
}

func TestPackage_BuildsEveryRequestedPlatform(t *testing.T) {
	a, invoker, _ := newTestApp(t, "linux/amd64", "darwin/arm64")

	outcome, err := a.Package(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, outcome.Platforms, 2)
	for key, po := range outcome.Platforms {
		assert.NotNil(t, po.Package, "platform %s", key)
	}
	assert.Equal(t, 2, invoker.CountOp(toolchain.OpBuild))
	assert.Zero(t, invoker.CountOp(toolchain.OpTest))
}

func TestPackage_WithTests(t *testing.T) {
	a, invoker, _ := newTestApp(t, "linux/amd64")

	_, err := a.Package(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, invoker.CountOp(toolchain.OpTest))
}

func TestChecks_DefaultSuite(t *testing.T) {
	a, _, _ := newTestApp(t, "linux/amd64")

	outcome, err := a.Checks(context.Background(), nil)
	require.NoError(t, err)

	po := outcome.Platforms["linux/amd64"]
	require.NotNil(t, po)
	require.Len(t, po.Checks, 3)

	kinds := make(map[checks.Kind]bool, 3)
	for _, r := range po.Checks {
		kinds[r.Kind] = true
	}
	assert.True(t, kinds[checks.KindLint])
	assert.True(t, kinds[checks.KindFormat])
	assert.True(t, kinds[checks.KindBuild])
}

func TestAppHandle_PointsIntoArtifact(t *testing.T) {
	a, _, _ := newTestApp(t)

	path, err := a.AppHandle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "demo", filepath.Base(path))
	// The handle lives inside a published artifact, proven by the sibling
	// output the build wrote there.
	_, statErr := os.Stat(filepath.Join(filepath.Dir(path), "package.out"))
	assert.NoError(t, statErr)
}

func TestDevShell_FirstPlatformOnly(t *testing.T) {
	a, invoker, _ := newTestApp(t, "linux/amd64", "darwin/arm64")

	d, err := a.DevShell(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "linux/amd64", d.Platform)
	assert.Equal(t, []string{"just"}, d.Tools)
	assert.Zero(t, invoker.CountOp(toolchain.OpBuildDeps), "the shell never triggers builds")
}

func TestFormatDiffAndWrite(t *testing.T) {
	a, invoker, root := newTestApp(t)
	invoker.Canonical = func(content []byte) []byte {
		return append([]byte("// fmt\n"), content...)
	}

	diff, err := a.FormatDiff(context.Background())
	require.NoError(t, err)
	assert.Contains(t, diff, "src/main.rs")

	rewritten, err := a.FormatWrite(context.Background())
	require.NoError(t, err)
	assert.Contains(t, rewritten, "src/main.rs")

	content, err := os.ReadFile(filepath.Join(root, "src/main.rs"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "// fmt")
}

func TestHostPlatformDefault(t *testing.T) {
	a, _, _ := newTestApp(t)

	outcome, err := a.Package(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, outcome.Platforms, 1)
	assert.NotNil(t, outcome.Platforms[platform.HostKey().String()])
}
