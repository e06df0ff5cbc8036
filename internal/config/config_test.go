package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/coredevops/coredev/internal/errors"
	"github.com/coredevops/coredev/internal/logging"
	"github.com/coredevops/coredev/internal/secretpath"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Path:   filepath.Join(t.TempDir(), "coredev.yaml"),
		Logger: logging.Discard(),
		Getenv: envFrom(map[string]string{"COREDEV_DATA_DIR": "/data"}),
	}
	require.NoError(t, cfg.Load())

	def := cfg.Definition
	assert.Equal(t, "/data", def.DataDir)
	assert.Equal(t, StoreVault, def.SecretStore.Type)
	assert.Equal(t, 30*time.Second, def.SecretStore.Timeout())
	assert.True(t, def.SecretStore.SkipTLSVerify())
	assert.Equal(t, secretpath.DefaultRules(), def.SecretPath)
	assert.Equal(t, filepath.Join("/data", "Logging", "log.txt"), cfg.LogFilePath())
	assert.Equal(t, filepath.Join("/data", "task_logs"), cfg.TaskLogDir())
	assert.Equal(t, filepath.Join("/data", ".secret.key"), cfg.KeyFilePath())

	users, err := cfg.GetUserGroup("RDS")
	require.NoError(t, err)
	assert.Equal(t, []string{"TCTCD1", "TCTCD2"}, users)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	content := `data_dir: /srv/coredev
tnsnames: /opt/oracle/tnsnames.ora
key_source: keyring
secret_store:
  type: aws.secretsmanager
  region: eu-central-1
  timeout_ms: 5000
  tls_skip_verify: false
secret_path:
  region_prefix: eu-central-1-
user_groups:
  app: [PRM_APP01, PRM_APP02]
  admin: [PRM_ADM01]
`
	path := filepath.Join(t.TempDir(), "coredev.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := &Config{Path: path, Getenv: envFrom(map[string]string{"VAULT_ADDR": "https://vault:8200"})}
	require.NoError(t, cfg.Load())

	def := cfg.Definition
	assert.Equal(t, "/srv/coredev", def.DataDir)
	assert.Equal(t, "keyring", def.KeySource)
	assert.Equal(t, StoreSecretsManager, def.SecretStore.Type)
	assert.Equal(t, "eu-central-1", def.SecretStore.Region)
	assert.Equal(t, 5*time.Second, def.SecretStore.Timeout())
	assert.False(t, def.SecretStore.SkipTLSVerify())
	assert.Equal(t, "https://vault:8200", def.SecretStore.VaultAddr)
	assert.Equal(t, "eu-central-1-", def.SecretPath.RegionPrefix)
	assert.Equal(t, secretpath.DefaultTemplate, def.SecretPath.Template, "unset rules keep defaults")

	users, err := cfg.GetUserGroup("app")
	require.NoError(t, err)
	assert.Equal(t, []string{"PRM_APP01", "PRM_APP02"}, users)

	path, err = cfg.LocateTNSNames()
	assert.Error(t, err, "configured tnsnames file does not exist")
	assert.Empty(t, path)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"store type", "secret_store:\n  type: bitwarden\n", "secret_store.type"},
		{"timeout", "secret_store:\n  timeout_ms: -1\n", "secret_store.timeout_ms"},
		{"key source", "key_source: tpm\n", "key_source"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "coredev.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			cfg := &Config{Path: path, Getenv: envFrom(nil)}
			err := cfg.Load()
			var cfgErr dserrors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "coredev.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: [unterminated"), 0o644))

	cfg := &Config{Path: path, Getenv: envFrom(nil)}
	err := cfg.Load()
	var cfgErr dserrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Message, "invalid YAML")
}

func TestGetUserGroupUnknown(t *testing.T) {
	t.Parallel()

	cfg := &Config{Path: filepath.Join(t.TempDir(), "none.yaml"), Getenv: envFrom(nil)}
	require.NoError(t, cfg.Load())

	_, err := cfg.GetUserGroup("admin")
	var cfgErr dserrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Suggestion, "rds")
}
