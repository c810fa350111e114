// cmd/xenclean/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/xcp-ng/xenclean/pkg/cleanup"
	"github.com/xcp-ng/xenclean/pkg/config"
	"github.com/xcp-ng/xenclean/pkg/logging"
	"github.com/xcp-ng/xenclean/pkg/preflight"
	"github.com/xcp-ng/xenclean/pkg/version"
)

func main() {
	logging.EnableANSIConsole()

	configPath := pflag.String("config", config.ConfigPath, "Path to the configuration file.")
	dryRun := pflag.Bool("dry-run", false, "List what would be removed without changing anything.")
	skipProducts := pflag.Bool("skip-products", false, "Do not uninstall installer products.")
	skipRegistry := pflag.Bool("skip-registry", false, "Do not clean leftover registry state.")
	showConfig := pflag.Bool("show-config", false, "Display the current configuration and exit.")
	versionFlag := pflag.Bool("version", false, "Print the version and exit.")

	var verbosity int
	pflag.CountVarP(&verbosity, "verbose", "v", "Increase verbosity (e.g. -v, -vv)")
	pflag.Parse()

	if *versionFlag {
		version.PrintFull(os.Stdout)
		os.Exit(0)
	}

	cfg, err := config.LoadConfigFrom(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, verbosity, *dryRun, *skipProducts, *skipRegistry)

	if *showConfig {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to marshal configuration: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Current configuration:\n%s\n", data)
		os.Exit(0)
	}

	if err := logging.Init(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	log := logging.Default()
	os.Exit(run(cfg, log))
}

// applyFlags overrides the loaded configuration with command-line choices.
// 0 keeps the configured level, 1 => INFO, 2+ => DEBUG
func applyFlags(cfg *config.Configuration, verbosity int, dryRun, skipProducts, skipRegistry bool) {
	switch verbosity {
	case 0:
	case 1:
		cfg.LogLevel = "INFO"
	default:
		cfg.LogLevel = "DEBUG"
	}
	cfg.DryRun = dryRun
	cfg.SkipProducts = cfg.SkipProducts || skipProducts
	cfg.SkipRegistry = cfg.SkipRegistry || skipRegistry
}

func run(cfg *config.Configuration, log *logging.Logger) int {
	defer logging.CloseLogger()
	log.Info("Starting", "version", version.Version().String(), "dryRun", cfg.DryRun)

	if problems := preflight.Run(cfg, log); len(problems) > 0 && !cfg.DryRun {
		for _, p := range problems {
			fmt.Fprintf(os.Stderr, "Preflight: %v\n", p)
		}
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sum, err := cleanup.New(cfg, log).Run(ctx)
	if werr := log.WriteSummary(sum); werr != nil {
		log.Warn("Failed to write run summary", "error", werr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cleanup failed: %v\n", err)
		return 1
	}

	for _, f := range sum.Failures {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", f)
	}
	switch {
	case cfg.DryRun:
		fmt.Println("Dry run finished, nothing was changed.")
	case sum.Changed() || sum.RebootRequired:
		fmt.Println("Finished, you must restart!")
	default:
		fmt.Println("Nothing to clean.")
	}
	return 0
}
