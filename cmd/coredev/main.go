package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/coredevops/coredev/cmd/coredev/commands"
	"github.com/coredevops/coredev/internal/config"
	dserrors "github.com/coredevops/coredev/internal/errors"
	"github.com/coredevops/coredev/internal/logging"
	"github.com/coredevops/coredev/internal/metrics"
	"github.com/coredevops/coredev/internal/secure"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	err := run()
	secure.Purge()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", dserrors.SimplifyError(err))
		os.Exit(1)
	}
}

func run() error {
	// Global flags
	var (
		configFile      string
		noColor         bool
		debug           bool
		nonInteractive  bool
		metricsTextfile string
	)

	cfg := &config.Config{Metrics: metrics.New()}

	rootCmd := &cobra.Command{
		Use:   "coredev",
		Short: "Database credential and health-check tooling for Oracle environments",
		Long: `coredev resolves Oracle database passwords from a local encrypted cache,
a secret store (Vault, AWS Secrets Manager or SSM) or manual entry, and runs
PL/SQL health-check procedures against environments listed in tnsnames.ora.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.Logger = logging.New(debug, noColor)
			cfg.NonInteractive = nonInteractive
			cfg.MetricsTextfile = metricsTextfile
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "coredev.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&nonInteractive, "non-interactive", false, "Never prompt; missing passwords are reported as not configured")
	rootCmd.PersistentFlags().StringVar(&metricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file on exit")

	rootCmd.AddCommand(
		commands.NewEnvCommand(cfg),
		commands.NewPasswordCommand(cfg),
		commands.NewHealthCheckCommand(cfg),
		commands.NewLogsCommand(cfg),
		commands.NewSettingsCommand(cfg),
		commands.NewCredentialsCommand(cfg),
		commands.NewDoctorCommand(cfg),
		commands.NewCompletionCommand(cfg),
	)

	err := rootCmd.Execute()
	if cfg.Logger != nil {
		if werr := cfg.Metrics.WriteTextfile(cfg.MetricsTextfile); werr != nil {
			cfg.Logger.Warn("Failed to write metrics textfile: %v", werr)
		}
		_ = cfg.Logger.Close()
	}
	return err
}
