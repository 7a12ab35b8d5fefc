package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/vk/hermit/internal/checks"
	"github.com/vk/hermit/internal/cli"
)

var flagOnly []string

var checksCmd = &cobra.Command{
	Use:   "checks",
	Short: "Run the verification suite: lint, format, and package-build",
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds, err := parseKinds(flagOnly)
		if err != nil {
			return cli.Errorf(cli.CodeUsage, "checks: %v", err)
		}

		a, err := newApp()
		if err != nil {
			return err
		}

		outcome, runErr := a.Checks(cmd.Context(), kinds)

		failed := false
		if outcome != nil {
			keys := make([]string, 0, len(outcome.Platforms))
			for key := range outcome.Platforms {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				for _, result := range outcome.Platforms[key].Checks {
					status := "ok"
					if !result.Passed {
						status = "FAIL"
						failed = true
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", key, result.Kind, status)
					if !result.Passed && result.Detail != "" {
						fmt.Fprintln(cmd.ErrOrStderr(), result.Detail)
					}
				}
			}
		}

		if runErr != nil {
			return cli.Errorf(cli.CodeFailure, "checks: %v", runErr)
		}
		if failed {
			return &cli.ExitError{Code: cli.CodeFailure}
		}
		return nil
	},
}

func init() {
	checksCmd.Flags().StringSliceVar(&flagOnly, "only", nil, "restrict to the named check kinds: lint, format, package-build")
}

func parseKinds(names []string) ([]checks.Kind, error) {
	var kinds []checks.Kind
	for _, name := range names {
		switch checks.Kind(name) {
		case checks.KindLint, checks.KindFormat, checks.KindBuild:
			kinds = append(kinds, checks.Kind(name))
		default:
			return nil, fmt.Errorf("unknown check kind %q", name)
		}
	}
	return kinds, nil
}
