package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/vk/hermit/internal/cli"
)

var flagAppPrint bool

var appCmd = &cobra.Command{
	Use:   "app [-- args...]",
	Short: "Build the package and run (or print) the application binary",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		binary, err := a.AppHandle(cmd.Context())
		if err != nil {
			return cli.Errorf(cli.CodeFailure, "app: %v", err)
		}

		if flagAppPrint {
			fmt.Fprintln(cmd.OutOrStdout(), binary)
			return nil
		}

		run := exec.CommandContext(cmd.Context(), binary, args...)
		run.Stdin = os.Stdin
		run.Stdout = os.Stdout
		run.Stderr = os.Stderr
		if err := run.Run(); err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				// Propagate the application's own exit code unchanged.
				return &cli.ExitError{Code: exitErr.ExitCode()}
			}
			return cli.Errorf(cli.CodeFailure, "app: %v", err)
		}
		return nil
	},
}

func init() {
	appCmd.Flags().BoolVar(&flagAppPrint, "print", false, "print the binary path instead of running it")
}
