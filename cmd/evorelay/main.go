package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/joshp123/evorelay/internal/config"
)

var version = "dev"

var (
	configPath string
	envFile    string
	jsonOutput bool
)

// errAlreadyReported marks failures whose details were already printed.
var errAlreadyReported = errors.New("already reported")

var errorLabel = color.New(color.FgRed)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "evorelay",
		Short: "Relay evohome heating status into Salesforce and other sinks",
		Long: `evorelay polls the Honeywell evohome cloud for zone temperatures and
setpoints and stores every snapshot in the configured sinks.

Examples:
  # Run the polling daemon
  evorelay run --config /etc/evorelay/config.yaml

  # Poll once and exit
  evorelay once

  # Show zones of the selected installation
  evorelay zones

  # Ask a running daemon for its health
  evorelay status --addr 127.0.0.1:9000`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the YAML configuration file")
	root.PersistentFlags().StringVar(&envFile, "env-file", config.DefaultEnvFile, "Optional .env file loaded before the configuration")
	root.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")

	root.AddCommand(
		newRunCmd(),
		newOnceCmd(),
		newZonesCmd(),
		newStatusCmd(),
		newReplayCmd(),
		newConfigCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errAlreadyReported) {
			errorLabel.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func printf(format string, args ...any) {
	fmt.Fprintf(os.Stdout, format, args...)
}
