package testutil

import (
	"github.com/vk/hermit/internal/config"
	"github.com/vk/hermit/internal/toolchain"
)

// Model returns a minimal, normalized build description for a cargo-style
// package with one platform override.
func Model() *config.Model {
	m := &config.Model{
		Package: config.Package{Name: "demo", Version: "0.1.0"},
		Source: config.SourceRules{
			Extensions:    []string{".rs"},
			ManifestGlobs: []string{"Cargo.toml", "Cargo.lock", "**/Cargo.toml"},
			Patterns:      []string{"**/*.wat"},
		},
		Toolchain: config.ToolchainPin{
			Channel:    "stable",
			Version:    "1.76.0",
			Components: []string{"clippy", "rustfmt"},
		},
		Inputs: config.BaseInputs{
			Native:  []string{"pkg-config"},
			Runtime: []string{"zlib"},
		},
		Platforms: map[string]*config.PlatformExtras{
			"linux/amd64": {
				Native:    []string{"mold"},
				Linker:    "mold",
				LinkFlags: []string{"-fuse-ld=mold"},
			},
		},
		Shell: config.Shell{
			Tools: []string{"just"},
			Env:   map[string]string{"RUST_LOG": "debug"},
		},
	}
	if err := m.Normalize(); err != nil {
		panic(err)
	}
	return m
}

// Locator returns a static locator serving the fixture model's channel.
func Locator() toolchain.Locator {
	return &toolchain.StaticLocator{
		Channels: map[string][]string{
			"stable": {"clippy", "rustfmt", "rust-src"},
		},
	}
}

// Tree returns a small cargo-style source tree matching the fixture model:
// two manifests, application source, and a fixture file reachable only
// through the auxiliary pattern.
func Tree() map[string]string {
	return map[string]string{
		"Cargo.toml":             "[package]\nname = \"demo\"\n",
		"Cargo.lock":             "# lock v1\n",
		"src/main.rs":            "fn main() {}\n",
		"src/lib.rs":             "pub fn answer() -> u32 { 42 }\n",
		"tests/fixtures/add.wat": "(module)\n",
		"README.md":              "demo\n",
	}
}
