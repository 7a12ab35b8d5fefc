// Package pipeline assembles the build graph for one invocation: source
// selection and toolchain resolution feed per-platform input composition,
// dependency builds, package builds, checks, and shell composition. Every
// downstream product derives from the same SourceSet and Toolchain values,
// so dev and CI outputs can never diverge.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/hermit/internal/artifact"
	"github.com/vk/hermit/internal/build"
	"github.com/vk/hermit/internal/checks"
	"github.com/vk/hermit/internal/config"
	"github.com/vk/hermit/internal/ctxlog"
	"github.com/vk/hermit/internal/dag"
	"github.com/vk/hermit/internal/envcfg"
	"github.com/vk/hermit/internal/platform"
	"github.com/vk/hermit/internal/shell"
	"github.com/vk/hermit/internal/source"
	"github.com/vk/hermit/internal/toolchain"
)

// Options selects which products one evaluation derives.
type Options struct {
	// Platforms to evaluate. Independent platforms build concurrently.
	Platforms []platform.Key
	// WithPackage adds the full package build per platform.
	WithPackage bool
	// RunTests runs the test suite inside the package build step.
	RunTests bool
	// Checks adds the named check kinds per platform; nil means no checks.
	Checks []checks.Kind
	// WithShell composes the development environment descriptor.
	WithShell bool
}

// PlatformOutcome carries one platform's products. Fields are populated by
// exactly one stage each and read only by stages ordered after it.
type PlatformOutcome struct {
	Profile *platform.Profile
	Deps    *artifact.Entry
	Package *artifact.Entry
	Checks  []checks.Result
	Shell   *shell.Descriptor
}

// Outcome is the result of one graph evaluation.
type Outcome struct {
	Source    *source.Set
	Toolchain *toolchain.Toolchain
	Platforms map[string]*PlatformOutcome
}

// Pipeline evaluates build graphs for one configured package.
type Pipeline struct {
	cfg      *config.Model
	environ  *envcfg.Environ
	root     string
	rules    *source.Rules
	resolver *toolchain.Resolver
	invoker  toolchain.Invoker
	store    artifact.Store
	workers  int
}

// New creates a Pipeline rooted at the given source directory.
func New(
	cfg *config.Model,
	environ *envcfg.Environ,
	root string,
	resolver *toolchain.Resolver,
	invoker toolchain.Invoker,
	store artifact.Store,
	workers int,
) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		environ:  environ,
		root:     root,
		rules:    source.CompileRules(cfg.Source),
		resolver: resolver,
		invoker:  invoker,
		store:    store,
		workers:  workers,
	}
}

// Rules exposes the compiled source rules shared by every stage.
func (p *Pipeline) Rules() *source.Rules { return p.rules }

// Evaluate builds and runs the stage graph for the requested products. The
// returned Outcome is complete on success; on failure the error names the
// failing stage and wraps its typed cause.
func (p *Pipeline) Evaluate(ctx context.Context, opts Options) (*Outcome, error) {
	logger := ctxlog.FromContext(ctx)

	if len(opts.Platforms) == 0 {
		opts.Platforms = []platform.Key{platform.HostKey()}
	}
	opts.Platforms = dedupKeys(opts.Platforms)

	outcome := &Outcome{Platforms: make(map[string]*PlatformOutcome, len(opts.Platforms))}
	for _, key := range opts.Platforms {
		outcome.Platforms[key.String()] = &PlatformOutcome{}
	}

	composer := platform.NewComposer(p.cfg.Inputs, p.cfg.Platforms, p.environ)
	depsBuilder := build.NewDepsBuilder(p.store, p.invoker)
	pkgBuilder := build.NewPackageBuilder(p.store, p.invoker, p.cfg.Package.Name, p.cfg.Package.Binary)
	aggregator := checks.NewAggregator(p.invoker, pkgBuilder)

	graph := dag.New()

	must := func(err error) {
		if err != nil {
			panic(fmt.Sprintf("pipeline graph construction: %v", err))
		}
	}

	must(graph.Add(dag.Stage{
		ID: "select",
		Run: func() error {
			src, err := source.Select(ctx, p.root, p.rules)
			if err != nil {
				return err
			}
			outcome.Source = src
			return nil
		},
	}))

	must(graph.Add(dag.Stage{
		ID: "toolchain",
		Run: func() error {
			tc, err := p.resolver.Resolve(ctx, p.cfg.Toolchain)
			if err != nil {
				return err
			}
			outcome.Toolchain = tc
			return nil
		},
	}))

	for _, key := range opts.Platforms {
		p.addPlatformStages(ctx, graph, must, outcome, key, opts,
			composer, depsBuilder, pkgBuilder, aggregator)
	}

	if err := graph.Finalize(); err != nil {
		return nil, err
	}

	logger.Debug("Evaluating build graph.", "stages", graph.Len(), "workers", p.workers)
	if err := dag.NewExecutor(graph, p.workers).Run(ctx); err != nil {
		return outcome, err
	}
	return outcome, outcome.checkFailures(opts.Platforms)
}

// checkFailures joins the failed check results across platforms, in platform
// order. Check failures never cancel other stages, so they surface here
// rather than as stage errors.
func (o *Outcome) checkFailures(keys []platform.Key) error {
	var failures []error
	for _, key := range keys {
		po := o.Platforms[key.String()]
		if po == nil {
			continue
		}
		for _, r := range po.Checks {
			if !r.Passed {
				failures = append(failures, &checks.Failure{Kind: r.Kind, Detail: r.Detail})
			}
		}
	}
	return errors.Join(failures...)
}

// dedupKeys drops repeated platform keys, keeping first occurrences in order.
func dedupKeys(keys []platform.Key) []platform.Key {
	seen := make(map[string]bool, len(keys))
	out := keys[:0]
	for _, key := range keys {
		if !seen[key.String()] {
			seen[key.String()] = true
			out = append(out, key)
		}
	}
	return out
}

// addPlatformStages registers one platform's slice of the graph.
func (p *Pipeline) addPlatformStages(
	ctx context.Context,
	graph *dag.Graph,
	must func(error),
	outcome *Outcome,
	key platform.Key,
	opts Options,
	composer *platform.Composer,
	depsBuilder *build.DepsBuilder,
	pkgBuilder *build.PackageBuilder,
	aggregator *checks.Aggregator,
) {
	k := key.String()
	po := outcome.Platforms[k]

	must(graph.Add(dag.Stage{
		ID: "compose/" + k,
		Run: func() error {
			po.Profile = composer.Compose(key)
			return nil
		},
	}))

	// The dependency artifact exists to be consumed; compose it only when a
	// package build or check will read it.
	if opts.WithPackage || len(opts.Checks) > 0 {
		must(graph.Add(dag.Stage{
			ID:    "deps/" + k,
			After: []string{"select", "toolchain", "compose/" + k},
			Run: func() error {
				entry, err := depsBuilder.Build(ctx, outcome.Toolchain, outcome.Source, p.rules, po.Profile)
				if err != nil {
					return err
				}
				po.Deps = entry
				return nil
			},
		}))
	}

	if opts.WithPackage {
		must(graph.Add(dag.Stage{
			ID:    "package/" + k,
			After: []string{"deps/" + k},
			Run: func() error {
				entry, err := pkgBuilder.Build(ctx, outcome.Toolchain, po.Deps, outcome.Source, po.Profile, opts.RunTests)
				if err != nil {
					return err
				}
				po.Package = entry
				return nil
			},
		}))
	}

	if len(opts.Checks) > 0 {
		must(graph.Add(dag.Stage{
			ID:    "checks/" + k,
			After: []string{"deps/" + k},
			Run: func() error {
				results, err := aggregator.Run(ctx, outcome.Toolchain, outcome.Source, p.rules, po.Profile, po.Deps, opts.Checks)
				po.Checks = results
				// A failing check is not fatal to the graph: other
				// platforms still run their full suites. Failures are
				// collected from the results after evaluation.
				var failed *checks.Failure
				if err != nil && !errors.As(err, &failed) {
					return err
				}
				return nil
			},
		}))
	}

	if opts.WithShell {
		must(graph.Add(dag.Stage{
			ID:    "shell/" + k,
			After: []string{"toolchain", "compose/" + k},
			Run: func() error {
				po.Shell = shell.Compose(ctx, outcome.Toolchain, po.Profile, p.cfg.Shell.Tools, p.cfg.Shell.Env)
				return nil
			},
		}))
	}
}
