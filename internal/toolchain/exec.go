package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/vk/hermit/internal/ctxlog"
)

// ExecInvoker invokes the real toolchain processes. Each operation maps to an
// argv prefix; the invoker appends per-invocation arguments and runs the
// command inside the source root.
type ExecInvoker struct {
	// Commands maps each operation to its argv prefix, e.g.
	// OpBuild -> ["cargo", "build", "--release", "--locked"].
	Commands map[Op][]string
	// OutDirEnv is the environment variable that redirects the driver's
	// build output into the staging directory.
	OutDirEnv string
}

// NewExecInvoker creates an ExecInvoker with the given command table.
func NewExecInvoker(commands map[Op][]string) *ExecInvoker {
	return &ExecInvoker{Commands: commands, OutDirEnv: "CARGO_TARGET_DIR"}
}

// DefaultCommands returns the command table for a cargo-style driver. The
// lint prefix ends with "--" so per-invocation arguments land on the linter
// itself, and the formatter reads stdin and writes the canonical form to
// stdout.
func DefaultCommands(driver string) map[Op][]string {
	return map[Op][]string{
		OpBuildDeps: {driver, "chef", "cook", "--release", "--locked"},
		OpBuild:     {driver, "build", "--release", "--locked"},
		OpTest:      {driver, "test", "--release", "--locked"},
		OpLint:      {driver, "clippy", "--all-targets", "--"},
		OpFormat:    {"rustfmt"},
	}
}

// Invoke runs the configured command for the operation. OpFormat is special:
// the formatter is run once per file with the file content on stdin and its
// canonical form captured from stdout.
func (e *ExecInvoker) Invoke(ctx context.Context, inv Invocation) (*Result, error) {
	argv, ok := e.Commands[inv.Op]
	if !ok || len(argv) == 0 {
		return nil, fmt.Errorf("no command configured for operation %q", inv.Op)
	}

	if inv.Op == OpFormat {
		return e.formatFiles(ctx, argv, inv)
	}

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Invoking toolchain.", "op", string(inv.Op), "argv0", argv[0])

	cmd := exec.CommandContext(ctx, argv[0], append(argv[1:], inv.Args...)...)
	cmd.Dir = inv.Root
	cmd.Env = mergedEnv(inv)
	if inv.OutDir != "" && e.OutDirEnv != "" {
		// Build operations must write into the staging directory so the
		// artifact store can publish it atomically.
		cmd.Env = append(cmd.Env, e.OutDirEnv+"="+inv.OutDir)
	}

	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%s: %w\n%s", inv.Op, err, out)
	}
	return &Result{Output: string(out)}, nil
}

// formatFiles runs the formatter per file, stdin to stdout.
func (e *ExecInvoker) formatFiles(ctx context.Context, argv []string, inv Invocation) (*Result, error) {
	result := &Result{Files: make(map[string][]byte, len(inv.Files))}
	for _, rel := range inv.Files {
		content, err := os.ReadFile(filepath.Join(inv.Root, filepath.FromSlash(rel)))
		if err != nil {
			return nil, err
		}

		cmd := exec.CommandContext(ctx, argv[0], append(argv[1:], inv.Args...)...)
		cmd.Dir = inv.Root
		cmd.Env = mergedEnv(inv)
		cmd.Stdin = bytes.NewReader(content)

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("format %s: %w\n%s", rel, err, stderr.String())
		}
		result.Files[rel] = stdout.Bytes()
	}
	return result, nil
}

// mergedEnv layers the invocation environment over the process environment.
// Keys are emitted in sorted order so repeated invocations are identical.
func mergedEnv(inv Invocation) []string {
	env := os.Environ()
	keys := make([]string, 0, len(inv.Env))
	for k := range inv.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+inv.Env[k])
	}
	return env
}
