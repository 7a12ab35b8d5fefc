package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vk/hermit/internal/cli"
)

var (
	flagShellPrint  bool
	flagShellExport bool
)

var devShellCmd = &cobra.Command{
	Use:   "devshell",
	Short: "Enter a development shell matching the CI build environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		descriptor, err := a.DevShell(cmd.Context())
		if err != nil {
			return cli.Errorf(cli.CodeFailure, "devshell: %v", err)
		}

		switch {
		case flagShellPrint:
			out, err := descriptor.YAML()
			if err != nil {
				return cli.Errorf(cli.CodeFailure, "devshell: %v", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		case flagShellExport:
			fmt.Fprint(cmd.OutOrStdout(), descriptor.ExportScript())
			return nil
		default:
			if err := descriptor.Spawn(cmd.Context(), ""); err != nil {
				return cli.Errorf(cli.CodeFailure, "devshell: %v", err)
			}
			return nil
		}
	},
}

func init() {
	devShellCmd.Flags().BoolVar(&flagShellPrint, "print", false, "print the environment descriptor as YAML")
	devShellCmd.Flags().BoolVar(&flagShellExport, "export", false, "print POSIX export lines for eval")
}
