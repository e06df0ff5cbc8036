package commands

import (
	"github.com/spf13/cobra"

	"github.com/coredevops/coredev/internal/config"
)

// NewCredentialsCommand inspects the local credential cache. Passwords are
// never printed.
func NewCredentialsCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Inspect and prune the local credential cache",
	}
	cmd.AddCommand(newCredentialsListCommand(cfg), newCredentialsForgetCommand(cfg))
	return cmd
}

// cacheKey maps an environment name to its cache key. Names that are not
// in tnsnames.ora are taken as raw keys.
func (a *app) cacheKey(name string) string {
	dir, err := a.directory()
	if err != nil {
		return name
	}
	env, err := dir.Get(name)
	if err != nil {
		return name
	}
	return env.UniqueName()
}

func newCredentialsListCommand(cfg *config.Config) *cobra.Command {
	var envName string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached users per environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			keys := a.cache.Environments()
			if envName != "" {
				keys = []string{a.cacheKey(envName)}
			}
			rows := [][]string{}
			for _, key := range keys {
				for _, user := range a.cache.Users(key) {
					rows = append(rows, []string{key, user})
				}
			}
			renderTable(cmd.OutOrStdout(), []string{"ENVIRONMENT", "USER"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&envName, "env", "", "Only list this environment")
	return cmd
}

func newCredentialsForgetCommand(cfg *config.Config) *cobra.Command {
	var envName, user string

	cmd := &cobra.Command{
		Use:   "forget",
		Short: "Delete cached passwords of an environment or a single user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag(envName, "env", "Use 'coredev credentials list' to see cached environments"); err != nil {
				return err
			}

			a, err := loadApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			key := a.cacheKey(envName)
			if user != "" {
				if err := a.cache.DeleteUser(key, user); err != nil {
					return err
				}
				cfg.Logger.Info("Forgot %s on %s", user, key)
				return nil
			}
			if err := a.cache.DeleteEnvironment(key); err != nil {
				return err
			}
			cfg.Logger.Info("Forgot all cached passwords of %s", key)
			return nil
		},
	}

	cmd.Flags().StringVar(&envName, "env", "", "Environment name or cache key (required)")
	cmd.Flags().StringVar(&user, "user", "", "Only forget this user")
	return cmd
}
