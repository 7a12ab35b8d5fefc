package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vk/hermit/internal/cli"
)

var flagFmtWrite bool

var fmtCmd = &cobra.Command{
	Use:   "fmt",
	Short: "Show (or apply) the canonical formatting of the source set",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		if flagFmtWrite {
			rewritten, err := a.FormatWrite(cmd.Context())
			if err != nil {
				return cli.Errorf(cli.CodeFailure, "fmt: %v", err)
			}
			for _, path := range rewritten {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		}

		diff, err := a.FormatDiff(cmd.Context())
		if err != nil {
			return cli.Errorf(cli.CodeFailure, "fmt: %v", err)
		}
		if diff != "" {
			fmt.Fprint(cmd.OutOrStdout(), diff)
			return &cli.ExitError{Code: cli.CodeFailure}
		}
		return nil
	},
}

func init() {
	fmtCmd.Flags().BoolVar(&flagFmtWrite, "write", false, "rewrite files to canonical form instead of diffing")
}
