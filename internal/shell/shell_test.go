package shell

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/vk/hermit/internal/envcfg"
	"github.com/vk/hermit/internal/platform"
	"github.com/vk/hermit/internal/testutil"
	"github.com/vk/hermit/internal/toolchain"
)

func fixtureProfile(t *testing.T) (*toolchain.Toolchain, *platform.Profile) {
	t.Helper()
	model := testutil.Model()

	tc, err := toolchain.NewResolver(testutil.Locator()).Resolve(context.Background(), model.Toolchain)
	require.NoError(t, err)

	composer := platform.NewComposer(model.Inputs, model.Platforms, envcfg.Parse(nil))
	return tc, composer.Compose(platform.Key{OS: "linux", Arch: "amd64"})
}

func TestCompose_MirrorsBuildInputs(t *testing.T) {
	tc, profile := fixtureProfile(t)

	d := Compose(context.Background(), tc, profile, []string{"just"}, nil)

	assert.Equal(t, tc.Identity(), d.Toolchain.Identity)
	assert.Equal(t, "linux/amd64", d.Platform)
	assert.Equal(t, profile.Native, d.NativeInputs)
	assert.Equal(t, profile.Runtime, d.RuntimeInputs)
	assert.Equal(t, []string{"just"}, d.Tools)

	// The shell exposes exactly the build invocation environment plus the
	// toolchain marker, so shell builds and CI builds see the same inputs.
	assert.Equal(t, "mold", d.Env["HERMIT_BUILD_LINKER"])
	assert.Equal(t, tc.String(), d.Env["HERMIT_TOOLCHAIN"])
}

func TestCompose_OverridesApplyLast(t *testing.T) {
	tc, profile := fixtureProfile(t)

	d := Compose(context.Background(), tc, profile, nil, map[string]string{
		"RUST_LOG":            "trace",
		"HERMIT_BUILD_LINKER": "lld",
		"HERMIT_TOOLCHAIN":    "",
	})

	assert.Equal(t, "trace", d.Env["RUST_LOG"])
	assert.Equal(t, "lld", d.Env["HERMIT_BUILD_LINKER"], "overrides win over profile values")
	_, ok := d.Env["HERMIT_TOOLCHAIN"]
	assert.False(t, ok, "empty override clears the variable")
	assert.Equal(t, []string{"HERMIT_TOOLCHAIN"}, d.Cleared)
}

func TestSpawnEnv_DropsClearedVariables(t *testing.T) {
	tc, profile := fixtureProfile(t)

	d := Compose(context.Background(), tc, profile, nil, map[string]string{
		"HERMIT_TOOLCHAIN": "",
		"RUST_LOG":         "trace",
	})

	env := d.spawnEnv([]string{
		"HERMIT_TOOLCHAIN=stale-from-parent",
		"HOME=/home/dev",
	})

	assert.NotContains(t, env, "HERMIT_TOOLCHAIN=stale-from-parent",
		"a cleared variable must not leak in from the parent environment")
	assert.Contains(t, env, "HOME=/home/dev")
	assert.Contains(t, env, "RUST_LOG=trace")
	assert.Contains(t, env, "HERMIT_BUILD_LINKER=mold")
}

func TestExportScript_SortedAndQuoted(t *testing.T) {
	d := &Descriptor{Env: map[string]string{
		"B_VAR": "plain",
		"A_VAR": "has 'quotes'",
	}}

	script := d.ExportScript()
	assert.Equal(t,
		"export A_VAR='has '\\''quotes'\\'''\nexport B_VAR='plain'\n",
		script)
}

func TestYAML_RoundTrip(t *testing.T) {
	tc, profile := fixtureProfile(t)
	d := Compose(context.Background(), tc, profile, []string{"just"}, map[string]string{"RUST_LOG": "debug"})

	raw, err := d.YAML()
	require.NoError(t, err)

	var decoded Descriptor
	require.NoError(t, yaml.Unmarshal(raw, &decoded))
	if diff := cmp.Diff(d, &decoded); diff != "" {
		t.Fatalf("descriptor changed across YAML round trip (-want +got):\n%s", diff)
	}
}
