// Package hclconf provides the concrete HCL implementation for the
// configuration loading interface defined in the config package. It is
// responsible for file parsing, evaluation-context construction, and
// HCL-to-model translation.
package hclconf

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/hermit/internal/config"
	"github.com/vk/hermit/internal/ctxlog"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses the hermit.hcl file at path and translates it into the
// format-agnostic model.
func (l *Loader) Load(ctx context.Context, path string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse %s: %w", path, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode %s: %w", path, diags)
	}

	model, err := l.translate(ctx, &root)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := model.Normalize(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	logger.Debug("Configuration loaded and translated into unified model.",
		"package", model.Package.Name, "platforms", len(model.Platforms))
	return model, nil
}

// translate converts the HCL-specific schema into the agnostic model.
func (l *Loader) translate(ctx context.Context, root *fileRoot) (*config.Model, error) {
	model := &config.Model{
		Platforms: make(map[string]*config.PlatformExtras),
	}

	if root.Package == nil {
		return nil, fmt.Errorf("missing required 'package' block")
	}
	model.Package = config.Package{
		Name:    root.Package.Name,
		Version: root.Package.Version,
		Binary:  root.Package.Binary,
	}

	if root.Source != nil {
		model.Source = config.SourceRules{
			Extensions:    root.Source.Extensions,
			ManifestGlobs: root.Source.Manifests,
			Patterns:      root.Source.Patterns,
		}
	}

	if root.Toolchain == nil {
		return nil, fmt.Errorf("missing required 'toolchain' block")
	}
	model.Toolchain = config.ToolchainPin{
		Channel:    root.Toolchain.Channel,
		Version:    root.Toolchain.Version,
		Components: root.Toolchain.Components,
		Driver:     root.Toolchain.Driver,
	}

	if root.Inputs != nil {
		model.Inputs = config.BaseInputs{
			Native:  root.Inputs.Native,
			Runtime: root.Inputs.Runtime,
		}
	}

	for _, block := range root.Platforms {
		extras, err := l.translatePlatform(ctx, block)
		if err != nil {
			return nil, err
		}
		if _, dup := model.Platforms[block.Key]; dup {
			return nil, fmt.Errorf("duplicate platform block %q", block.Key)
		}
		model.Platforms[block.Key] = extras
	}

	if root.Shell != nil {
		model.Shell = config.Shell{
			Tools: root.Shell.Tools,
			Env:   root.Shell.Env,
		}
	}

	return model, nil
}

// translatePlatform decodes one platform block body against an evaluation
// context exposing the block's own key, so expressions inside the block can
// branch on platform.os and platform.arch.
func (l *Loader) translatePlatform(ctx context.Context, block *platformBlock) (*config.PlatformExtras, error) {
	logger := ctxlog.FromContext(ctx)

	evalCtx, err := platformEvalContext(block.Key)
	if err != nil {
		return nil, err
	}

	var body platformBody
	if diags := gohcl.DecodeBody(block.Body, evalCtx, &body); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode platform block %q: %w", block.Key, diags)
	}
	logger.Debug("Decoded platform block.", "key", block.Key)

	return &config.PlatformExtras{
		Native:    body.Native,
		Runtime:   body.Runtime,
		Linker:    body.Linker,
		LinkFlags: body.LinkFlags,
	}, nil
}

// platformEvalContext builds the HCL evaluation context for a platform block.
func platformEvalContext(key string) (*hcl.EvalContext, error) {
	osName, arch, ok := strings.Cut(key, "/")
	if !ok {
		return nil, fmt.Errorf("platform key %q must be of the form os/arch", key)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"platform": cty.ObjectVal(map[string]cty.Value{
				"key":  cty.StringVal(key),
				"os":   cty.StringVal(osName),
				"arch": cty.StringVal(arch),
			}),
		},
	}, nil
}
