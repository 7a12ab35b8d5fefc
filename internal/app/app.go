package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vk/hermit/internal/artifact"
	"github.com/vk/hermit/internal/config"
	"github.com/vk/hermit/internal/ctxlog"
	"github.com/vk/hermit/internal/envcfg"
	"github.com/vk/hermit/internal/pipeline"
	"github.com/vk/hermit/internal/platform"
	"github.com/vk/hermit/internal/toolchain"
)

// Config holds everything an App instance needs to run.
type Config struct {
	// ConfigPath locates the hermit.hcl build description.
	ConfigPath string
	// Root is the source tree root. Defaults to the build description's
	// directory.
	Root string

	LogFormat string
	LogLevel  string

	// Platforms to evaluate, in "os/arch" form. Empty means the host.
	Platforms []string
	// Workers bounds the stage executor's concurrency.
	Workers int
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW    io.Writer
	logger  *slog.Logger
	model   *config.Model
	environ *envcfg.Environ
	pipe    *pipeline.Pipeline

	platforms []platform.Key
	invoker   toolchain.Invoker
}

// Option overrides one of the App's collaborators, primarily for tests.
type Option func(*overrides)

type overrides struct {
	environ []string
	locator toolchain.Locator
	invoker toolchain.Invoker
	store   artifact.Store
}

// WithEnviron substitutes the raw process environment.
func WithEnviron(environ []string) Option {
	return func(o *overrides) { o.environ = environ }
}

// WithLocator substitutes the toolchain locator.
func WithLocator(locator toolchain.Locator) Option {
	return func(o *overrides) { o.locator = locator }
}

// WithInvoker substitutes the toolchain invoker.
func WithInvoker(invoker toolchain.Invoker) Option {
	return func(o *overrides) { o.invoker = invoker }
}

// WithStore substitutes the artifact store.
func WithStore(store artifact.Store) Option {
	return func(o *overrides) { o.store = store }
}

// New constructs a fully initialized App: logger, invocation environment,
// loaded build description, artifact store, and pipeline.
func New(outW io.Writer, cfg Config, loader config.Loader, opts ...Option) (*App, error) {
	var ov overrides
	for _, opt := range opts {
		opt(&ov)
	}

	environRaw := ov.environ
	if environRaw == nil {
		environRaw = os.Environ()
	}
	environ := envcfg.Parse(environRaw)

	logger := newLogger(cfg.LogLevel, environ.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)

	model, err := loader.Load(ctx, cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	root := cfg.Root
	if root == "" {
		root = filepath.Dir(cfg.ConfigPath)
	}

	platforms, err := parsePlatforms(cfg.Platforms)
	if err != nil {
		return nil, err
	}

	store := ov.store
	if store == nil {
		store, err = artifact.NewDiskStore(filepath.Join(targetDir(root, environ), "hermit-cache"))
		if err != nil {
			return nil, err
		}
	}

	locator := ov.locator
	if locator == nil {
		locator = &toolchain.PathLocator{
			Driver:            model.Toolchain.Driver,
			ComponentBinaries: componentBinaries(model.Toolchain.Components),
		}
	}

	invoker := ov.invoker
	if invoker == nil {
		invoker = toolchain.NewExecInvoker(toolchain.DefaultCommands(model.Toolchain.Driver))
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 8
	}

	pipe := pipeline.New(model, environ, root,
		toolchain.NewResolver(locator), invoker, store, workers)

	logger.Debug("App initialized.", "package", model.Package.Name, "root", root)
	return &App{
		outW:      outW,
		logger:    logger,
		model:     model,
		environ:   environ,
		pipe:      pipe,
		platforms: platforms,
		invoker:   invoker,
	}, nil
}

// Logger returns the app's logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Model returns the loaded build description.
func (a *App) Model() *config.Model { return a.model }

// targetDir resolves where build output lives: the environment override when
// set, otherwise <root>/target.
func targetDir(root string, environ *envcfg.Environ) string {
	if environ.TargetDir != "" {
		return environ.TargetDir
	}
	return filepath.Join(root, "target")
}

// componentBinaries maps each configured component to the binary that proves
// its presence on PATH. Cargo plugin components install as cargo-<name>;
// everything else answers to its own name.
func componentBinaries(components []string) map[string]string {
	bins := make(map[string]string, len(components))
	for _, name := range components {
		switch name {
		case "clippy", "miri":
			bins[name] = "cargo-" + name
		default:
			bins[name] = name
		}
	}
	return bins
}

// parsePlatforms converts "os/arch" strings to keys, defaulting to the host.
func parsePlatforms(specs []string) ([]platform.Key, error) {
	if len(specs) == 0 {
		return []platform.Key{platform.HostKey()}, nil
	}
	keys := make([]platform.Key, 0, len(specs))
	for _, spec := range specs {
		key, err := platform.ParseKey(spec)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}
