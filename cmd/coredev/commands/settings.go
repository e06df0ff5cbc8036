package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coredevops/coredev/internal/config"
	dserrors "github.com/coredevops/coredev/internal/errors"
)

// NewSettingsCommand manages settings.json.
func NewSettingsCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage the Vault login and local caching preference",
	}
	cmd.AddCommand(
		newSettingsShowCommand(cfg),
		newSettingsSetVaultCommand(cfg),
		newSettingsClearVaultCommand(cfg),
		newSettingsSaveLocallyCommand(cfg),
	)
	return cmd
}

func newSettingsShowCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			snap := a.settings.Snapshot()
			vaultURL := snap.VaultURL
			if vaultURL == "" && cfg.Definition.SecretStore.VaultAddr != "" {
				vaultURL = cfg.Definition.SecretStore.VaultAddr + " (VAULT_ADDR)"
			}
			rows := [][]string{
				{"secret store", cfg.Definition.SecretStore.Type},
				{"vault url", vaultURL},
				{"role id", configured(snap.RoleID)},
				{"secret id", configured(snap.SecretID)},
				{"save locally", yesNo(snap.SaveLocally)},
				{"data dir", cfg.Definition.DataDir},
				{"settings file", a.settings.Path()},
			}
			renderTable(cmd.OutOrStdout(), []string{"SETTING", "VALUE"}, rows)
			return nil
		},
	}
}

func configured(sealed string) string {
	if sealed == "" {
		return styles.Muted.Render("not set")
	}
	return "set"
}

func newSettingsSetVaultCommand(cfg *config.Config) *cobra.Command {
	var vaultURL, roleID, secretID string

	cmd := &cobra.Command{
		Use:   "set-vault",
		Short: "Store the Vault URL and AppRole login",
		Long: `Store the Vault URL and AppRole credentials. The role id and secret id
are encrypted before they are written. Omitted ids are prompted for.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag(vaultURL, "url", "Pass the Vault address, e.g. https://vault.example.com:8200"); err != nil {
				return err
			}

			a, err := loadApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := commandContext(cmd)
			prompter := a.promptOwner()
			if roleID == "" {
				if roleID, err = prompter.Password(ctx, "Vault role id"); err != nil {
					return missingSecretFlag("role-id", err)
				}
			}
			if secretID == "" {
				if secretID, err = prompter.Password(ctx, "Vault secret id"); err != nil {
					return missingSecretFlag("secret-id", err)
				}
			}
			if strings.TrimSpace(roleID) == "" || strings.TrimSpace(secretID) == "" {
				return dserrors.UserError{
					Message:    "Role id and secret id must not be empty",
					Suggestion: "Ask the Vault administrators for the AppRole credentials",
				}
			}

			if err := a.settings.SetVault(vaultURL, roleID, secretID); err != nil {
				return err
			}
			cfg.Logger.Info("Vault settings saved to %s", a.settings.Path())
			return nil
		},
	}

	cmd.Flags().StringVar(&vaultURL, "url", "", "Vault address (required)")
	cmd.Flags().StringVar(&roleID, "role-id", "", "AppRole role id")
	cmd.Flags().StringVar(&secretID, "secret-id", "", "AppRole secret id")
	return cmd
}

func missingSecretFlag(flag string, err error) error {
	return dserrors.UserError{
		Message:    fmt.Sprintf("No %s given", flag),
		Suggestion: fmt.Sprintf("Pass --%s or run interactively", flag),
		Err:        err,
	}
}

func newSettingsClearVaultCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-vault",
		Short: "Remove the stored Vault login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.settings.ClearVault(); err != nil {
				return err
			}
			cfg.Logger.Info("Vault settings cleared")
			return nil
		},
	}
}

func newSettingsSaveLocallyCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:       "save-locally on|off",
		Short:     "Cache resolved passwords in the local encrypted store",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			on := args[0] == "on"
			if err := a.settings.SetSaveLocally(on); err != nil {
				return err
			}
			cfg.Logger.Info("Save locally: %s", args[0])
			return nil
		},
	}
}
