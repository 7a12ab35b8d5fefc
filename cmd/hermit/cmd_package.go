package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/vk/hermit/internal/cli"
)

var flagWithTests bool

var packageCmd = &cobra.Command{
	Use:   "package",
	Short: "Build the full package, reusing the cached dependency artifact",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		outcome, err := a.Package(cmd.Context(), flagWithTests)
		if err != nil {
			return cli.Errorf(cli.CodeFailure, "package: %v", err)
		}

		keys := make([]string, 0, len(outcome.Platforms))
		for key := range outcome.Platforms {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			pkg := outcome.Platforms[key].Package
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", key, pkg.Path)
		}
		return nil
	},
}

func init() {
	packageCmd.Flags().BoolVar(&flagWithTests, "with-tests", false, "run the test suite as part of the build step")
}
