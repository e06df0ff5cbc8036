package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/coredevops/coredev/internal/config"
	dserrors "github.com/coredevops/coredev/internal/errors"
	"github.com/coredevops/coredev/internal/healthcheck"
	"github.com/coredevops/coredev/internal/oracle"
)

const connectTimeout = 30 * time.Second

// NewHealthCheckCommand manages and runs health-check options.
func NewHealthCheckCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "healthcheck",
		Aliases: []string{"hc"},
		Short:   "Manage and run PL/SQL health checks",
	}
	cmd.AddCommand(
		newHealthCheckListCommand(cfg),
		newHealthCheckShowCommand(cfg),
		newHealthCheckAddCommand(cfg),
		newHealthCheckEditCommand(cfg),
		newHealthCheckDeleteCommand(cfg),
		newHealthCheckRunCommand(cfg),
	)
	return cmd
}

func loadOptions(cfg *config.Config) (*healthcheck.OptionStore, error) {
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	return healthcheck.LoadOptions(cfg.DataPath(healthcheck.DefaultFileName))
}

func newHealthCheckListCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List health-check options",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadOptions(cfg)
			if err != nil {
				return err
			}
			rows := [][]string{}
			for _, name := range store.Names() {
				opt, _ := store.Get(name)
				rows = append(rows, []string{
					name,
					strings.Join(opt.UserList(), ","),
					yesNo(opt.RunAsSysDBA),
					yesNo(opt.OnlyLocal),
					yesNo(opt.OracleClient),
				})
			}
			renderTable(cmd.OutOrStdout(), []string{"NAME", "USERS", "SYSDBA", "LOCAL ONLY", "DESCRIPTOR"}, rows)
			return nil
		},
	}
}

func newHealthCheckShowCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:               "show NAME",
		Short:             "Show a health-check option",
		ValidArgsFunction: completeOptions(cfg),
		Args:              cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadOptions(cfg)
			if err != nil {
				return err
			}
			opt, err := store.Get(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Name:        %s\n", args[0])
			_, _ = fmt.Fprintf(out, "Procedure:   %s\n", opt.ProcedureName)
			_, _ = fmt.Fprintf(out, "Users:       %s\n", strings.Join(opt.UserList(), ", "))
			_, _ = fmt.Fprintf(out, "SYSDBA:      %s\n", yesNo(opt.RunAsSysDBA))
			_, _ = fmt.Fprintf(out, "Local only:  %s\n", yesNo(opt.OnlyLocal))
			_, _ = fmt.Fprintf(out, "Descriptor:  %s\n", yesNo(opt.OracleClient))
			_, _ = fmt.Fprintf(out, "PL/SQL:\n%s\n", opt.PLSQLBlock)
			return nil
		},
	}
}

// optionFlags are shared by add and edit.
type optionFlags struct {
	procedure    string
	users        string
	sysdba       bool
	onlyLocal    bool
	oracleClient bool
	plsql        string
	plsqlFile    string
}

func (f *optionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.procedure, "procedure", "", "Procedure name, informational")
	cmd.Flags().StringVar(&f.users, "users", "", "Comma separated database users")
	cmd.Flags().BoolVar(&f.sysdba, "sysdba", false, "Connect as SYSDBA")
	cmd.Flags().BoolVar(&f.onlyLocal, "only-local", false, "Refuse to run against non-local databases")
	cmd.Flags().BoolVar(&f.oracleClient, "oracle-client", false, "Connect through the full tnsnames descriptor")
	cmd.Flags().StringVar(&f.plsql, "plsql", "", "PL/SQL block to run")
	cmd.Flags().StringVar(&f.plsqlFile, "plsql-file", "", "Read the PL/SQL block from a file")
}

// apply copies the flags the user set onto opt.
func (f *optionFlags) apply(cmd *cobra.Command, opt *healthcheck.Option) error {
	changed := cmd.Flags().Changed
	if changed("procedure") {
		opt.ProcedureName = f.procedure
	}
	if changed("users") {
		opt.Users = f.users
	}
	if changed("sysdba") {
		opt.RunAsSysDBA = f.sysdba
	}
	if changed("only-local") {
		opt.OnlyLocal = f.onlyLocal
	}
	if changed("oracle-client") {
		opt.OracleClient = f.oracleClient
	}
	if changed("plsql") && changed("plsql-file") {
		return dserrors.UserError{
			Message:    "--plsql and --plsql-file are mutually exclusive",
			Suggestion: "Pass the block inline or from a file, not both",
		}
	}
	if changed("plsql") {
		opt.PLSQLBlock = f.plsql
	}
	if changed("plsql-file") {
		data, err := os.ReadFile(f.plsqlFile)
		if err != nil {
			return fmt.Errorf("failed to read PL/SQL file: %w", err)
		}
		opt.PLSQLBlock = string(data)
	}
	return nil
}

func newHealthCheckAddCommand(cfg *config.Config) *cobra.Command {
	var flags optionFlags

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a health-check option",
		Long: `Add a named health-check option.

Example:
  coredev healthcheck add "Invalid objects" --users PRM_APP01,PRM_APP02 \
    --plsql "BEGIN check_invalid_objects; END;"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadOptions(cfg)
			if err != nil {
				return err
			}
			var opt healthcheck.Option
			if err := flags.apply(cmd, &opt); err != nil {
				return err
			}
			if err := store.Add(args[0], opt); err != nil {
				return err
			}
			cfg.Logger.Info("Added health check %q", args[0])
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newHealthCheckEditCommand(cfg *config.Config) *cobra.Command {
	var flags optionFlags

	cmd := &cobra.Command{
		Use:   "edit NAME",
		Short: "Change fields of a health-check option",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadOptions(cfg)
			if err != nil {
				return err
			}
			opt, err := store.Get(args[0])
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, &opt); err != nil {
				return err
			}
			if err := store.Edit(args[0], opt); err != nil {
				return err
			}
			cfg.Logger.Info("Updated health check %q", args[0])
			return nil
		},
	}
	flags.register(cmd)
	cmd.ValidArgsFunction = completeOptions(cfg)
	return cmd
}

func newHealthCheckDeleteCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:               "delete NAME",
		Short:             "Delete a health-check option",
		ValidArgsFunction: completeOptions(cfg),
		Args:              cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadOptions(cfg)
			if err != nil {
				return err
			}
			if err := store.Delete(args[0]); err != nil {
				return err
			}
			cfg.Logger.Info("Deleted health check %q", args[0])
			return nil
		},
	}
}

func newHealthCheckRunCommand(cfg *config.Config) *cobra.Command {
	var (
		envName    string
		showOutput bool
	)

	cmd := &cobra.Command{
		Use:   "run NAME",
		Short: "Run a health-check option against an environment",
		Long: `Run a health-check option once per configured user.

Passwords are resolved the same way as 'coredev password get'. Output
written with DBMS_OUTPUT goes to task_logs/<name>_<timestamp>.log in the
data directory. A run stops at the first user that cannot be resolved or
connected. When a cached password is rejected, the cached entries of that
environment are deleted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag(envName, "env", "Use 'coredev env list' to see available environments"); err != nil {
				return err
			}

			a, err := loadApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			options, err := healthcheck.LoadOptions(cfg.DataPath(healthcheck.DefaultFileName))
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			resolver, err := a.resolver(ctx)
			if err != nil {
				return err
			}
			dir, err := a.directory()
			if err != nil {
				return err
			}

			runner := healthcheck.NewRunner(healthcheck.RunnerConfig{
				Options:   options,
				Directory: dir,
				Resolver:  resolver,
				Connector: &oracle.DriverConnector{ConnectTimeout: connectTimeout, Logger: a.logger},
				Cache:     a.cache,
				LogDir:    cfg.TaskLogDir(),
				Logger:    a.logger,
				Recorder:  cfg.Metrics,
			})

			res := <-runner.Start(ctx, envName, args[0])
			if res.Err != nil {
				return res.Err
			}
			report := res.Report

			out := cmd.OutOrStdout()
			if showOutput {
				for _, line := range report.Lines {
					_, _ = fmt.Fprintln(out, line)
				}
			}
			if report.LogPath != "" {
				_, _ = fmt.Fprintf(out, "Log: %s\n", report.LogPath)
			}
			_, _ = fmt.Fprintf(out, "%s %s on %s (run %s, %s)\n",
				statusMark(report.Complete), report.Option, report.Environment,
				report.RunID, report.Duration.Round(time.Millisecond))

			if !report.Complete {
				return fmt.Errorf("%s has finished with errors: %w", report.Option, report.Err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&envName, "env", "", "Environment name (required)")
	cmd.Flags().BoolVar(&showOutput, "show-output", false, "Print the DBMS_OUTPUT lines")
	cmd.ValidArgsFunction = completeOptions(cfg)
	_ = cmd.RegisterFlagCompletionFunc("env", completeEnvironments(cfg))
	return cmd
}
