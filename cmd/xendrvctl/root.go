package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xcp-ng/xenclean/pkg/actions"
	"github.com/xcp-ng/xenclean/pkg/config"
	"github.com/xcp-ng/xenclean/pkg/logging"
	"github.com/xcp-ng/xenclean/pkg/version"
)

var (
	// Global flags
	configPath string
	verbose    bool
	dryRun     bool
)

var rootCmd = &cobra.Command{
	Use:   "xendrvctl",
	Short: "Install and remove the PV drivers as installer steps",
	Long: `xendrvctl runs the driver steps of the guest tools installer: staging
and removing driver packages, checking for incompatible devices from other
builds, and reporting whether a reboot was scheduled.`,
	Version:       version.Version().Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.ConfigPath, "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Log driver store changes without making them")
}

// exitCode lets a command choose the process exit status.
type exitCode int

func (e exitCode) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

func execute() {
	err := rootCmd.Execute()
	logging.CloseLogger()

	var code exitCode
	switch {
	case err == nil:
	case errors.As(err, &code):
		os.Exit(int(code))
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newRunner loads the configuration and opens the run log. A log directory
// that cannot be created falls back to stderr.
func newRunner() (*actions.Runner, error) {
	cfg, err := config.LoadConfigFrom(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.DryRun = dryRun
	if verbose {
		cfg.LogLevel = "DEBUG"
	}
	if err := logging.Init(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
	}
	return actions.NewRunner(cfg, logging.Default()), nil
}
