// Package build implements the two-phase package build: a cached
// dependencies-only artifact keyed by the dependency manifest, and the full
// package build that consumes it. The split is what keeps dependency
// compilation out of the edit-compile loop: application-only edits never
// invalidate the dependency artifact.
package build

import (
	"context"
	"path/filepath"

	"github.com/vk/hermit/internal/artifact"
	"github.com/vk/hermit/internal/ctxlog"
	"github.com/vk/hermit/internal/platform"
	"github.com/vk/hermit/internal/source"
	"github.com/vk/hermit/internal/toolchain"
)

// DepsBuilder builds and caches dependencies-only artifacts.
type DepsBuilder struct {
	store   artifact.Store
	invoker toolchain.Invoker
}

// NewDepsBuilder creates a DepsBuilder over the given cache and toolchain.
func NewDepsBuilder(store artifact.Store, invoker toolchain.Invoker) *DepsBuilder {
	return &DepsBuilder{store: store, invoker: invoker}
}

// ManifestFingerprint returns the cache-key fingerprint of the dependency
// declaration files within the set. It covers exactly the files matched by
// the manifest predicate: wider and unrelated edits would thrash the cache,
// narrower and a manifest change could reuse stale dependencies.
func ManifestFingerprint(src *source.Set, rules *source.Rules) string {
	return src.FingerprintOf(rules.IsManifest)
}

// Build returns the dependency artifact for (toolchain, manifest, platform),
// reusing the cache when the key is already published. On a miss it runs a
// full dependency compilation and publishes the result atomically; a failed
// compilation publishes nothing.
func (b *DepsBuilder) Build(
	ctx context.Context,
	tc *toolchain.Toolchain,
	src *source.Set,
	rules *source.Rules,
	profile *platform.Profile,
) (*artifact.Entry, error) {
	logger := ctxlog.FromContext(ctx)

	manifest := ManifestFingerprint(src, rules)
	key := artifact.Key(tc.Identity(), manifest, profile.Key.String())

	if entry, ok, err := b.store.Get(ctx, artifact.KindDeps, key); err != nil {
		return nil, err
	} else if ok {
		logger.Debug("Dependency artifact reused.", "platform", profile.Key.String())
		return entry, nil
	}

	logger.Info("Building dependency artifact.", "platform", profile.Key.String())
	meta := artifact.Meta{
		Kind:      artifact.KindDeps,
		Key:       key,
		Toolchain: tc.Identity(),
		Platform:  profile.Key.String(),
		Inputs:    map[string]string{"manifest": manifest},
	}

	entry, err := b.store.Put(ctx, meta, func(dir string) error {
		result, err := b.invoker.Invoke(ctx, toolchain.Invocation{
			Op:        toolchain.OpBuildDeps,
			Toolchain: tc,
			Root:      src.Root,
			OutDir:    dir,
			Env:       profile.BuildEnv(),
		})
		if err != nil {
			return &DependencyError{Output: toolOutput(result), Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// depsDirEnv names the environment variable handing the dependency artifact
// location to the full build.
const depsDirEnv = "HERMIT_DEPS_DIR"

func toolOutput(result *toolchain.Result) string {
	if result == nil {
		return ""
	}
	return result.Output
}

func depsEnv(profile *platform.Profile, deps *artifact.Entry) map[string]string {
	env := profile.BuildEnv()
	env[depsDirEnv] = filepath.Clean(deps.Path)
	return env
}
