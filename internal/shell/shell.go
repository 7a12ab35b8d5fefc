// Package shell composes the development environment descriptor. The
// descriptor is derived from the same resolved Toolchain and PlatformProfile
// values the build path uses, never re-resolved, so a shell-built artifact is
// comparable bit for bit with a CI-built one.
package shell

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vk/hermit/internal/ctxlog"
	"github.com/vk/hermit/internal/platform"
	"github.com/vk/hermit/internal/toolchain"
)

// Descriptor is the composed development environment: toolchain, inputs,
// auxiliary tools, and environment variables. It serves both interactive
// shells and CI checks.
type Descriptor struct {
	Toolchain     ToolchainInfo     `yaml:"toolchain"`
	Platform      string            `yaml:"platform"`
	NativeInputs  []string          `yaml:"native_inputs,omitempty"`
	RuntimeInputs []string          `yaml:"runtime_inputs,omitempty"`
	Tools         []string          `yaml:"tools,omitempty"`
	Env           map[string]string `yaml:"env,omitempty"`
	// Cleared lists the variables an override removed. Spawn drops them from
	// the inherited environment too, keeping the shell in step with
	// ExportScript.
	Cleared []string `yaml:"cleared,omitempty"`
}

// ToolchainInfo is the serialized identity of the pinned toolchain.
type ToolchainInfo struct {
	Channel    string   `yaml:"channel"`
	Version    string   `yaml:"version,omitempty"`
	Components []string `yaml:"components,omitempty"`
	Identity   string   `yaml:"identity"`
}

// Compose builds the descriptor from the already-resolved toolchain and
// profile. Overrides are applied last and may set or clear any variable;
// they tune the developer loop (alternate linker, incremental compilation,
// verbosity) and never enter any artifact fingerprint. An override with an
// empty value removes the variable.
func Compose(
	ctx context.Context,
	tc *toolchain.Toolchain,
	profile *platform.Profile,
	tools []string,
	overrides map[string]string,
) *Descriptor {
	logger := ctxlog.FromContext(ctx)

	env := profile.BuildEnv()
	env["HERMIT_TOOLCHAIN"] = tc.String()

	var cleared []string
	for name, value := range overrides {
		if value == "" {
			delete(env, name)
			cleared = append(cleared, name)
			continue
		}
		env[name] = value
	}
	sort.Strings(cleared)

	d := &Descriptor{
		Toolchain: ToolchainInfo{
			Channel:    tc.Channel,
			Version:    tc.Version,
			Components: tc.Components,
			Identity:   tc.Identity(),
		},
		Platform:      profile.Key.String(),
		NativeInputs:  append([]string(nil), profile.Native...),
		RuntimeInputs: append([]string(nil), profile.Runtime...),
		Tools:         append([]string(nil), tools...),
		Env:           env,
		Cleared:       cleared,
	}
	logger.Debug("Shell environment composed.", "platform", d.Platform, "tools", len(d.Tools))
	return d
}

// YAML serializes the descriptor.
func (d *Descriptor) YAML() ([]byte, error) {
	return yaml.Marshal(d)
}

// ExportScript renders the environment as POSIX export lines in sorted
// order, suitable for eval in a shell.
func (d *Descriptor) ExportScript() string {
	names := make([]string, 0, len(d.Env))
	for name := range d.Env {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "export %s=%s\n", name, shellQuote(d.Env[name]))
	}
	return b.String()
}

// Spawn starts an interactive shell with the descriptor's environment
// layered over the current one and blocks until it exits.
func (d *Descriptor) Spawn(ctx context.Context, shellPath string) error {
	if shellPath == "" {
		shellPath = os.Getenv("SHELL")
	}
	if shellPath == "" {
		shellPath = "/bin/sh"
	}

	cmd := exec.CommandContext(ctx, shellPath)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = d.spawnEnv(os.Environ())
	return cmd.Run()
}

// spawnEnv layers the descriptor environment over base. Variables an
// override cleared are dropped from base too; otherwise the inherited value
// would resurface in the shell even though ExportScript never emits it.
func (d *Descriptor) spawnEnv(base []string) []string {
	env := make([]string, 0, len(base)+len(d.Env))
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if slices.Contains(d.Cleared, name) {
			continue
		}
		env = append(env, kv)
	}
	for name, value := range d.Env {
		env = append(env, name+"="+value)
	}
	return env
}

// shellQuote single-quotes a value for POSIX shells.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
