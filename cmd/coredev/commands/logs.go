package commands

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/coredevops/coredev/internal/config"
	dserrors "github.com/coredevops/coredev/internal/errors"
	"github.com/coredevops/coredev/internal/healthcheck"
)

// NewLogsCommand browses the health-check run logs in task_logs/.
func NewLogsCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Browse health-check run logs",
	}
	cmd.AddCommand(newLogsListCommand(cfg), newLogsShowCommand(cfg))
	return cmd
}

func newLogsListCommand(cfg *config.Config) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List run logs, newest first",
		Long: `List the run logs written by 'coredev healthcheck run', newest first.

The filter matches case-insensitively and treats underscores as spaces, so
--filter "invalid objects" finds Invalid_objects_20240305_140709.log.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}
			dir := cfg.TaskLogDir()
			logs, err := healthcheck.ListTaskLogs(dir, filter)
			if err != nil {
				return err
			}
			if len(logs) == 0 {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "No task logs in %s\n", dir)
				return nil
			}

			rows := make([][]string, 0, len(logs))
			for _, l := range logs {
				started := styles.Muted.Render("unknown")
				if !l.Started.IsZero() {
					started = fmt.Sprintf("%s (%s)", l.Started.Format("2006-01-02 15:04:05"), humanize.Time(l.Started))
				}
				rows = append(rows, []string{l.Name, started, humanize.Bytes(uint64(l.Size))})
			}
			renderTable(cmd.OutOrStdout(), []string{"NAME", "STARTED", "SIZE"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "Only list logs whose name contains this text")
	return cmd
}

func newLogsShowCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:               "show NAME",
		Short:             "Print a run log",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeLogs(cfg),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}
			data, err := healthcheck.ReadTaskLog(cfg.TaskLogDir(), args[0])
			if errors.Is(err, healthcheck.ErrLogNotFound) {
				return dserrors.UserError{
					Message:    fmt.Sprintf("No task log named %q", args[0]),
					Suggestion: "Use 'coredev logs list' to see available logs",
					Err:        err,
				}
			}
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
