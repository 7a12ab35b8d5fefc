package hclconf

import "github.com/hashicorp/hcl/v2"

// fileRoot is the top-level HCL structure of a hermit.hcl file.
type fileRoot struct {
	Package   *packageBlock    `hcl:"package,block"`
	Source    *sourceBlock     `hcl:"source,block"`
	Toolchain *toolchainBlock  `hcl:"toolchain,block"`
	Inputs    *inputsBlock     `hcl:"inputs,block"`
	Platforms []*platformBlock `hcl:"platform,block"`
	Shell     *shellBlock      `hcl:"shell,block"`
	Remain    hcl.Body         `hcl:",remain"`
}

// packageBlock identifies the package under orchestration.
type packageBlock struct {
	Name    string `hcl:"name,label"`
	Version string `hcl:"version,optional"`
	Binary  string `hcl:"binary,optional"`
}

// sourceBlock declares the SourceSet inclusion predicates.
type sourceBlock struct {
	Extensions []string `hcl:"extensions,optional"`
	Manifests  []string `hcl:"manifests,optional"`
	Patterns   []string `hcl:"patterns,optional"`
}

// toolchainBlock pins the compiler toolchain.
type toolchainBlock struct {
	Channel    string   `hcl:"channel,label"`
	Version    string   `hcl:"version,optional"`
	Components []string `hcl:"components,optional"`
	Driver     string   `hcl:"driver,optional"`
}

// inputsBlock lists the base inputs shared by every platform.
type inputsBlock struct {
	Native  []string `hcl:"native,optional"`
	Runtime []string `hcl:"runtime,optional"`
}

// platformBlock carries platform-conditional extras. Its body is kept raw so
// it can be decoded against an evaluation context exposing the block's own
// platform key.
type platformBlock struct {
	Key  string   `hcl:"key,label"`
	Body hcl.Body `hcl:",remain"`
}

// platformBody is the decoded content of a platform block.
type platformBody struct {
	Native    []string `hcl:"native,optional"`
	Runtime   []string `hcl:"runtime,optional"`
	Linker    string   `hcl:"linker,optional"`
	LinkFlags []string `hcl:"link_flags,optional"`
}

// shellBlock configures the development shell.
type shellBlock struct {
	Tools []string          `hcl:"tools,optional"`
	Env   map[string]string `hcl:"env,optional"`
}
