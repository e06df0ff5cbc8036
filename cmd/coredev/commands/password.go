package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coredevops/coredev/internal/config"
	dserrors "github.com/coredevops/coredev/internal/errors"
	"github.com/coredevops/coredev/internal/resolve"
	"github.com/coredevops/coredev/internal/retrieve"
	"github.com/coredevops/coredev/internal/secretpath"
)

// NewPasswordCommand resolves database passwords.
func NewPasswordCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Resolve database passwords",
	}
	cmd.AddCommand(newPasswordGetCommand(cfg), newPasswordPathCommand(cfg))
	return cmd
}

func newPasswordGetCommand(cfg *config.Config) *cobra.Command {
	var (
		envName    string
		users      []string
		group      string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Get passwords for database users",
		Long: `Resolve passwords for one or more database users on an environment.

Each user is looked up in the local cache first, then in the secret store
(RDS environments only), and finally you are asked to type it in. The
command stops at the first user that cannot be resolved and prints nothing.

Examples:
  coredev password get --env PRDPD1 --user PRM_APP01
  coredev password get --env PRDPD1 --group rds --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag(envName, "env", "Use 'coredev env list' to see available environments"); err != nil {
				return err
			}
			if len(users) == 0 && group == "" {
				return dserrors.UserError{
					Message:    "No users given",
					Suggestion: "Use --user NAME (repeatable) or --group NAME",
				}
			}

			a, err := loadApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if group != "" {
				members, err := cfg.GetUserGroup(group)
				if err != nil {
					return err
				}
				users = append(users, members...)
			}

			ctx := commandContext(cmd)
			resolver, err := a.resolver(ctx)
			if err != nil {
				return err
			}
			creds, err := retrieve.New(resolver, a.logger).Retrieve(ctx, envName, users)
			var unresolved *resolve.UnresolvedError
			if errors.As(err, &unresolved) {
				return dserrors.UserError{
					Message:    fmt.Sprintf("No password for %s on %s", unresolved.Username, unresolved.Environment),
					Details:    unresolved.Result.String(),
					Suggestion: unresolvedSuggestion(unresolved.Result.Outcome),
					Err:        err,
				}
			}
			if err != nil {
				return err
			}
			if len(creds) == 0 {
				return dserrors.UserError{
					Message:    fmt.Sprintf("No passwords resolved on %s", envName),
					Suggestion: "Run with --debug to see why each user was skipped",
				}
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				type entry struct {
					Username string `json:"username"`
					Password string `json:"password"`
					Source   string `json:"source"`
				}
				entries := make([]entry, 0, len(creds))
				for _, c := range creds {
					entries = append(entries, entry{Username: c.Username, Password: c.Password, Source: string(c.Source)})
				}
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(entries); err != nil {
					return fmt.Errorf("failed to encode JSON: %w", err)
				}
				return nil
			}

			rows := make([][]string, 0, len(creds))
			for _, c := range creds {
				rows = append(rows, []string{c.Username, c.Password, string(c.Source)})
			}
			renderTable(out, []string{"USER", "PASSWORD", "SOURCE"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&envName, "env", "", "Environment name (required)")
	cmd.Flags().StringSliceVar(&users, "user", nil, "Database user (repeatable)")
	cmd.Flags().StringVar(&group, "group", "", "User group from coredev.yaml (app, admin, rds, ...)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	_ = cmd.RegisterFlagCompletionFunc("env", completeEnvironments(cfg))
	return cmd
}

func unresolvedSuggestion(outcome resolve.Outcome) string {
	switch outcome {
	case resolve.OutcomeUpstreamFailed:
		return "Run 'coredev doctor' to check secret store access"
	case resolve.OutcomeNotConfigured:
		return "Run without --non-interactive to type the password, or configure the secret store with 'coredev settings set-vault'"
	default:
		return "Run the command again and enter the password"
	}
}

func newPasswordPathCommand(cfg *config.Config) *cobra.Command {
	var username, service string

	cmd := &cobra.Command{
		Use:   "path",
		Short: "Print the secret-store path of a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag(username, "user", "Pass the database username"); err != nil {
				return err
			}
			if err := requireFlag(service, "service", "Pass the SERVICE_NAME of the environment"); err != nil {
				return err
			}
			if err := cfg.Load(); err != nil {
				return err
			}
			builder, err := secretpath.NewBuilder(cfg.Definition.SecretPath)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), builder.Build(username, service))
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "user", "", "Database user (required)")
	cmd.Flags().StringVar(&service, "service", "", "Service name (required)")
	return cmd
}
