package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/vk/hermit/internal/toolchain"
)

// FakeInvoker is a scripted stand-in for the real toolchain. It records every
// invocation, fails on demand per operation, and writes deterministic output
// files so published artifacts have byte-identical content across runs.
type FakeInvoker struct {
	mu    sync.Mutex
	calls []toolchain.Invocation

	// Fail maps an operation to the error its next invocations return.
	Fail map[toolchain.Op]error
	// LintOutput is returned as the OpLint tool output.
	LintOutput string
	// Canonical rewrites file content for OpFormat. Nil means already
	// canonical (identity).
	Canonical func(content []byte) []byte
}

// NewFakeInvoker creates an empty, always-succeeding fake.
func NewFakeInvoker() *FakeInvoker {
	return &FakeInvoker{Fail: make(map[toolchain.Op]error)}
}

// Invoke implements toolchain.Invoker.
func (f *FakeInvoker) Invoke(_ context.Context, inv toolchain.Invocation) (*toolchain.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, inv)
	failErr := f.Fail[inv.Op]
	f.mu.Unlock()

	if failErr != nil {
		return nil, failErr
	}

	switch inv.Op {
	case toolchain.OpBuildDeps, toolchain.OpBuild:
		if inv.OutDir != "" {
			name := "deps.out"
			if inv.Op == toolchain.OpBuild {
				name = "package.out"
			}
			if err := os.WriteFile(filepath.Join(inv.OutDir, name), []byte(string(inv.Op)+"\n"), 0o644); err != nil {
				return nil, err
			}
		}
		return &toolchain.Result{}, nil

	case toolchain.OpLint:
		return &toolchain.Result{Output: f.LintOutput}, nil

	case toolchain.OpFormat:
		result := &toolchain.Result{Files: make(map[string][]byte, len(inv.Files))}
		for _, rel := range inv.Files {
			content, err := os.ReadFile(filepath.Join(inv.Root, filepath.FromSlash(rel)))
			if err != nil {
				return nil, err
			}
			if f.Canonical != nil {
				content = f.Canonical(content)
			}
			result.Files[rel] = content
		}
		return result, nil

	default:
		return &toolchain.Result{}, nil
	}
}

// Calls returns a snapshot of all recorded invocations.
func (f *FakeInvoker) Calls() []toolchain.Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]toolchain.Invocation(nil), f.calls...)
}

// CountOp returns how many times the operation was invoked.
func (f *FakeInvoker) CountOp(op toolchain.Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, inv := range f.calls {
		if inv.Op == op {
			n++
		}
	}
	return n
}
