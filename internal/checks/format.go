package checks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/vk/hermit/internal/source"
	"github.com/vk/hermit/internal/toolchain"
)

// format verifies that every source file in the set is already in canonical
// formatted form. It never rewrites anything; the failure detail is a unified
// diff of what the formatter would change.
func (a *Aggregator) format(
	ctx context.Context,
	tc *toolchain.Toolchain,
	src *source.Set,
	rules *source.Rules,
) *Failure {
	diff, err := FormatDiff(ctx, a.invoker, tc, src, rules)
	if err != nil {
		return &Failure{Kind: KindFormat, Detail: err.Error()}
	}
	if diff != "" {
		return &Failure{Kind: KindFormat, Detail: diff}
	}
	return nil
}

// FormatDiff returns a unified diff between the on-disk source files and
// their canonical formatting, or "" when the set is already canonical. The
// fmt subcommand shares this with the format check so the two can never
// disagree.
func FormatDiff(
	ctx context.Context,
	invoker toolchain.Invoker,
	tc *toolchain.Toolchain,
	src *source.Set,
	rules *source.Rules,
) (string, error) {
	files := src.Paths(rules.Extensions()...)
	if len(files) == 0 {
		return "", nil
	}

	result, err := invoker.Invoke(ctx, toolchain.Invocation{
		Op:        toolchain.OpFormat,
		Toolchain: tc,
		Root:      src.Root,
		Files:     files,
	})
	if err != nil {
		return "", err
	}

	var out strings.Builder
	for _, rel := range files {
		canonical, ok := result.Files[rel]
		if !ok {
			return "", fmt.Errorf("formatter returned no content for %s", rel)
		}
		current, err := os.ReadFile(filepath.Join(src.Root, filepath.FromSlash(rel)))
		if err != nil {
			return "", err
		}
		if string(current) == string(canonical) {
			continue
		}

		diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(current)),
			B:        difflib.SplitLines(string(canonical)),
			FromFile: rel,
			ToFile:   rel + " (formatted)",
			Context:  3,
		})
		if err != nil {
			return "", err
		}
		out.WriteString(diff)
	}
	return out.String(), nil
}

// FormatWrite applies canonical formatting in place and returns the paths it
// rewrote. Only the fmt subcommand calls this; checks never auto-fix.
func FormatWrite(
	ctx context.Context,
	invoker toolchain.Invoker,
	tc *toolchain.Toolchain,
	src *source.Set,
	rules *source.Rules,
) ([]string, error) {
	files := src.Paths(rules.Extensions()...)
	if len(files) == 0 {
		return nil, nil
	}

	result, err := invoker.Invoke(ctx, toolchain.Invocation{
		Op:        toolchain.OpFormat,
		Toolchain: tc,
		Root:      src.Root,
		Files:     files,
	})
	if err != nil {
		return nil, err
	}

	var rewritten []string
	for _, rel := range files {
		canonical, ok := result.Files[rel]
		if !ok {
			continue
		}
		abs := filepath.Join(src.Root, filepath.FromSlash(rel))
		current, err := os.ReadFile(abs)
		if err != nil {
			return nil, err
		}
		if string(current) == string(canonical) {
			continue
		}
		if err := os.WriteFile(abs, canonical, 0o644); err != nil {
			return nil, err
		}
		rewritten = append(rewritten, rel)
	}
	return rewritten, nil
}
