package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coredevops/coredev/internal/config"
	"github.com/coredevops/coredev/internal/environments"
)

// NewEnvCommand lists the environments of tnsnames.ora.
func NewEnvCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Inspect environments from tnsnames.ora",
	}
	cmd.AddCommand(newEnvListCommand(cfg), newEnvShowCommand(cfg))
	return cmd
}

func newEnvListCommand(cfg *config.Config) *cobra.Command {
	var rdsOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List environments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			dir, err := a.directory()
			if err != nil {
				return err
			}
			classifier := environments.NewHostClassifier(dir)

			names := dir.Names()
			if rdsOnly {
				names = dir.Filter(func(e environments.Environment) bool {
					return classifier.HostIsRDS(e.Host)
				})
			}

			rows := make([][]string, 0, len(names))
			for _, name := range names {
				env, _ := dir.Get(name)
				rows = append(rows, []string{
					name, env.Host, env.Port, env.ServiceName,
					yesNo(classifier.HostIsRDS(env.Host)),
				})
			}
			renderTable(cmd.OutOrStdout(), []string{"NAME", "HOST", "PORT", "SERVICE", "RDS"}, rows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&rdsOnly, "rds", false, "Only list RDS environments")
	return cmd
}

func newEnvShowCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:               "show NAME",
		Short:             "Show one environment",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeEnvironments(cfg),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			dir, err := a.directory()
			if err != nil {
				return err
			}
			env, err := dir.Get(args[0])
			if err != nil {
				return err
			}
			classifier := environments.NewHostClassifier(dir)

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Name:       %s\n", env.Name)
			_, _ = fmt.Fprintf(out, "Host:       %s\n", env.Host)
			_, _ = fmt.Fprintf(out, "Port:       %s\n", env.Port)
			_, _ = fmt.Fprintf(out, "Service:    %s\n", env.ServiceName)
			_, _ = fmt.Fprintf(out, "RDS:        %s\n", yesNo(classifier.HostIsRDS(env.Host)))
			_, _ = fmt.Fprintf(out, "Local:      %s\n", yesNo(classifier.HostIsLocal(env.Host)))
			_, _ = fmt.Fprintf(out, "Cache key:  %s\n", env.UniqueName())
			_, _ = fmt.Fprintf(out, "Cached:     %d users\n", len(a.cache.Users(env.UniqueName())))
			return nil
		},
	}
}
