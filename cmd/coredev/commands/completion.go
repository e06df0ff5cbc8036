package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/coredevops/coredev/internal/config"
	"github.com/coredevops/coredev/internal/environments"
	"github.com/coredevops/coredev/internal/healthcheck"
)

// NewCompletionCommand prints a shell completion script. Environment,
// health-check option and log names complete from the data files.
func NewCompletionCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:                   "completion bash|zsh|fish|powershell",
		Short:                 "Generate shell completion scripts",
		Example:               "  source <(coredev completion bash)",
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, out := cmd.Root(), cmd.OutOrStdout()
			switch args[0] {
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(out)
			default:
				return root.GenBashCompletionV2(out, true)
			}
		},
	}
}

// completeEnvironments completes environment names from tnsnames.ora.
func completeEnvironments(cfg *config.Config) cobra.CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if err := cfg.Load(); err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		path, err := cfg.LocateTNSNames()
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		dir, err := environments.LoadDirectory(path)
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return withPrefix(dir.Names(), toComplete), cobra.ShellCompDirectiveNoFileComp
	}
}

// completeOptions completes health-check option names.
func completeOptions(cfg *config.Config) cobra.CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		store, err := loadOptions(cfg)
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return withPrefix(store.Names(), toComplete), cobra.ShellCompDirectiveNoFileComp
	}
}

// completeLogs completes run log names from task_logs/.
func completeLogs(cfg *config.Config) cobra.CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 || cfg.Load() != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		logs, err := healthcheck.ListTaskLogs(cfg.TaskLogDir(), "")
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		names := make([]string, 0, len(logs))
		for _, l := range logs {
			names = append(names, l.Name)
		}
		return withPrefix(names, toComplete), cobra.ShellCompDirectiveNoFileComp
	}
}

func withPrefix(names []string, prefix string) []string {
	var out []string
	upper := strings.ToUpper(prefix)
	for _, n := range names {
		if strings.HasPrefix(strings.ToUpper(n), upper) {
			out = append(out, n)
		}
	}
	return out
}
