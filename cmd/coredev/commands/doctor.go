package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/coredevops/coredev/internal/cipher"
	"github.com/coredevops/coredev/internal/config"
	"github.com/coredevops/coredev/internal/credstore"
	"github.com/coredevops/coredev/internal/healthcheck"
	"github.com/coredevops/coredev/internal/schema"
	"github.com/coredevops/coredev/internal/secretstore"
	"github.com/coredevops/coredev/internal/settings"
)

// newSTSClient is replaced in tests.
var newSTSClient = secretstore.NewSTSClient

// CheckResult is one line of the doctor report.
type CheckResult struct {
	Name        string
	OK          bool
	Message     string
	Suggestions []string
}

func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, data files and secret-store access",
		Long: `Verify that coredev is properly configured.

This command checks:
- Configuration file validity
- tnsnames.ora location and parsing
- Data files against their schemas
- The encryption key
- Secret store configuration (and AWS identity for AWS backends)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			out := cmd.OutOrStdout()

			a, err := loadApp(cfg)
			if err != nil {
				results := []CheckResult{{Name: "configuration", Message: err.Error()}}
				displayCheckResults(out, results, verbose)
				return fmt.Errorf("failed to load config: %w", err)
			}
			defer a.Close()

			results := []CheckResult{{Name: "configuration", OK: true, Message: configMessage(cfg)}}
			results = append(results, checkTNSNames(a))
			results = append(results, checkDataFiles(cfg)...)
			results = append(results, checkKey(cfg))
			results = append(results, checkSecretStore(ctx, a))

			displayCheckResults(out, results, verbose)

			passed := 0
			for _, r := range results {
				if r.OK {
					passed++
				}
			}
			_, _ = fmt.Fprintf(out, "\nSummary: %d/%d checks passed\n", passed, len(results))
			if passed < len(results) {
				return fmt.Errorf("some checks failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show suggestions for failed checks")
	return cmd
}

func configMessage(cfg *config.Config) string {
	if _, err := os.Stat(cfg.Path); err != nil {
		return "no config file, using defaults"
	}
	return "loaded " + cfg.Path
}

func checkTNSNames(a *app) CheckResult {
	dir, err := a.directory()
	if err != nil {
		return CheckResult{
			Name:        "tnsnames",
			Message:     err.Error(),
			Suggestions: []string{"Set 'tnsnames:' in coredev.yaml", "Or export TNS_ADMIN or ORACLE_HOME"},
		}
	}
	return CheckResult{
		Name:    "tnsnames",
		OK:      true,
		Message: fmt.Sprintf("%d environments from %s", dir.Len(), dir.Source()),
	}
}

func checkDataFiles(cfg *config.Config) []CheckResult {
	files := map[schema.Document]string{
		schema.Settings:    cfg.DataPath(settings.DefaultFileName),
		schema.Credentials: cfg.DataPath(credstore.DefaultFileName),
		schema.HealthCheck: cfg.DataPath(healthcheck.DefaultFileName),
	}

	var results []CheckResult
	for _, doc := range schema.Documents() {
		path := files[doc]
		result := CheckResult{Name: string(doc) + " file", OK: true}

		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			result.Message = "not created yet"
		case err != nil:
			result.OK = false
			result.Message = err.Error()
		default:
			if verr := schema.Validate(doc, data); verr != nil {
				result.OK = false
				result.Message = verr.Error()
				result.Suggestions = []string{fmt.Sprintf("Fix or remove %s", path)}
			} else {
				result.Message = path
			}
		}
		results = append(results, result)
	}
	return results
}

func checkKey(cfg *config.Config) CheckResult {
	source := cfg.Definition.KeySource
	if source == "" {
		source = cipher.SourceFile
	}
	msg := "key from " + source
	if source == cipher.SourceFile {
		msg += " " + cfg.KeyFilePath()
	}
	return CheckResult{Name: "encryption key", OK: true, Message: msg}
}

func checkSecretStore(ctx context.Context, a *app) CheckResult {
	storeCfg := a.cfg.Definition.SecretStore
	result := CheckResult{Name: "secret store (" + storeCfg.Type + ")"}

	switch storeCfg.Type {
	case config.StoreSecretsManager, config.StoreSSM:
		client, err := newSTSClient(ctx, secretstore.AWSConfigFrom(storeCfg))
		if err == nil {
			var id secretstore.Identity
			id, err = secretstore.CallerIdentity(ctx, client)
			if err == nil {
				result.OK = true
				result.Message = "AWS identity " + id.ARN
				return result
			}
		}
		result.Message = err.Error()
		result.Suggestions = []string{
			"Run: aws configure",
			"Or set AWS_PROFILE, AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY",
			"Verify with: aws sts get-caller-identity",
		}
		return result

	default:
		store, err := a.secretStore(ctx)
		switch {
		case err != nil:
			result.Message = err.Error()
		case store == nil:
			// Manual entry still works without Vault.
			result.OK = true
			result.Message = "not configured, passwords are entered manually"
			result.Suggestions = []string{"Run: coredev settings set-vault --url URL"}
		default:
			result.OK = true
			result.Message = "configured"
		}
		return result
	}
}

func displayCheckResults(w io.Writer, results []CheckResult, verbose bool) {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{statusMark(r.OK), r.Name, r.Message})
	}
	renderTable(w, []string{"", "CHECK", "MESSAGE"}, rows)

	if !verbose {
		return
	}
	for _, r := range results {
		if len(r.Suggestions) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(w, "\n%s suggestions:\n", r.Name)
		for _, s := range r.Suggestions {
			_, _ = fmt.Fprintf(w, "  • %s\n", s)
		}
	}
}
