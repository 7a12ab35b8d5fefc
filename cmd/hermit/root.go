package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/vk/hermit/internal/app"
	"github.com/vk/hermit/internal/cli"
	"github.com/vk/hermit/internal/hclconf"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	flagConfig    string
	flagRoot      string
	flagLogLevel  string
	flagLogFormat string
	flagPlatforms []string
	flagWorkers   int
)

var rootCmd = &cobra.Command{
	Use:   "hermit",
	Short: "Reproducible build orchestrator",
	Long: "Hermit orchestrates one package's build graph: a cached dependencies-only\n" +
		"artifact, the full package build that reuses it, a verification suite, a\n" +
		"runnable handle, and a development shell, all derived from the same\n" +
		"fingerprinted inputs.",
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "hermit.hcl", "path to the build description")
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", "", "source tree root (default: directory of --config)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, or error")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().StringSliceVar(&flagPlatforms, "platform", nil, "platform key os/arch (repeatable; default: host)")
	rootCmd.PersistentFlags().IntVar(&flagWorkers, "workers", 0, "stage executor concurrency (0 = default)")

	rootCmd.AddCommand(packageCmd)
	rootCmd.AddCommand(appCmd)
	rootCmd.AddCommand(checksCmd)
	rootCmd.AddCommand(devShellCmd)
	rootCmd.AddCommand(fmtCmd)
	rootCmd.Version = version
}

// newApp builds the App from the global flags. Configuration problems are
// usage errors, exit code 2.
func newApp() (*app.App, error) {
	a, err := app.New(os.Stderr, app.Config{
		ConfigPath: flagConfig,
		Root:       flagRoot,
		LogLevel:   flagLogLevel,
		LogFormat:  flagLogFormat,
		Platforms:  flagPlatforms,
		Workers:    flagWorkers,
	}, hclconf.NewLoader())
	if err != nil {
		return nil, cli.Errorf(cli.CodeUsage, "hermit: %v", err)
	}
	return a, nil
}
