package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	dserrors "github.com/coredevops/coredev/internal/errors"
	"github.com/coredevops/coredev/internal/environments"
	"github.com/coredevops/coredev/internal/logging"
	"github.com/coredevops/coredev/internal/metrics"
	"github.com/coredevops/coredev/internal/secretpath"
)

// Secret store backends.
const (
	StoreVault          = "vault"
	StoreSecretsManager = "aws.secretsmanager"
	StoreSSM            = "aws.ssm"
)

const (
	defaultTimeoutMs = 30000
	defaultLogFile   = "Logging/log.txt"
	defaultTaskLogs  = "task_logs"
)

// Config holds the runtime configuration
type Config struct {
	Path            string
	Logger          *logging.Logger
	NonInteractive  bool
	MetricsTextfile string
	Metrics         *metrics.Recorder
	Definition      *Definition

	// Getenv is used for environment overrides; nil means os.Getenv.
	Getenv func(string) string
}

// Definition represents the coredev.yaml structure
type Definition struct {
	DataDir     string              `yaml:"data_dir"`
	TNSNames    string              `yaml:"tnsnames,omitempty"`
	KeySource   string              `yaml:"key_source,omitempty"`
	LogFile     string              `yaml:"log_file,omitempty"`
	SecretStore SecretStoreConfig   `yaml:"secret_store"`
	SecretPath  secretpath.Rules    `yaml:"secret_path"`
	UserGroups  map[string][]string `yaml:"user_groups,omitempty"`
}

// SecretStoreConfig selects and tunes the secret-store backend
type SecretStoreConfig struct {
	Type          string `yaml:"type"`
	Region        string `yaml:"region,omitempty"`
	Profile       string `yaml:"profile,omitempty"`
	Endpoint      string `yaml:"endpoint,omitempty"`
	TimeoutMs     int    `yaml:"timeout_ms,omitempty"`
	TLSSkipVerify *bool  `yaml:"tls_skip_verify,omitempty"`

	// Static credentials for LocalStack or testing
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`

	// VaultAddr is filled from VAULT_ADDR and used when settings has no URL.
	VaultAddr string `yaml:"-"`
}

// Default returns the definition used when no coredev.yaml exists.
func Default() *Definition {
	return &Definition{
		SecretStore: SecretStoreConfig{Type: StoreVault},
		SecretPath:  secretpath.DefaultRules(),
		UserGroups: map[string][]string{
			"rds": {"TCTCD1", "TCTCD2"},
		},
	}
}

// Load reads and parses the coredev.yaml file. A missing file yields the
// defaults; environment overrides are applied in both cases.
func (c *Config) Load() error {
	def := Default()

	data, err := os.ReadFile(c.Path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, def); err != nil {
			return dserrors.ConfigError{
				Message:    "invalid YAML syntax in configuration file",
				Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
			}
		}
	case os.IsNotExist(err):
		if c.Logger != nil {
			c.Logger.Debug("No configuration file at %s, using defaults", c.Path)
		}
	default:
		return dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	c.applyDefaults(def)
	if err := validate(def); err != nil {
		return err
	}
	c.Definition = def
	return nil
}

func (c *Config) getenv(key string) string {
	if c.Getenv != nil {
		return c.Getenv(key)
	}
	return os.Getenv(key)
}

func (c *Config) applyDefaults(def *Definition) {
	if dir := c.getenv("COREDEV_DATA_DIR"); dir != "" {
		def.DataDir = dir
	}
	if def.DataDir == "" {
		def.DataDir = defaultDataDir()
	}
	if def.LogFile == "" {
		def.LogFile = defaultLogFile
	}
	if def.SecretStore.Type == "" {
		def.SecretStore.Type = StoreVault
	}
	if def.SecretStore.TLSSkipVerify == nil {
		skip := true
		def.SecretStore.TLSSkipVerify = &skip
	}
	def.SecretStore.VaultAddr = c.getenv("VAULT_ADDR")

	rules := secretpath.DefaultRules()
	if def.SecretPath.AppPattern == "" {
		def.SecretPath.AppPattern = rules.AppPattern
	}
	if def.SecretPath.PrimePattern == "" {
		def.SecretPath.PrimePattern = rules.PrimePattern
	}
	if def.SecretPath.Template == "" {
		def.SecretPath.Template = rules.Template
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "coredev")
	}
	return "."
}

func validate(def *Definition) error {
	switch def.SecretStore.Type {
	case StoreVault, StoreSecretsManager, StoreSSM:
	default:
		return dserrors.ConfigError{
			Field:      "secret_store.type",
			Value:      def.SecretStore.Type,
			Message:    "unsupported secret store type",
			Suggestion: fmt.Sprintf("Use one of: %s, %s, %s", StoreVault, StoreSecretsManager, StoreSSM),
		}
	}
	if def.SecretStore.TimeoutMs < 0 {
		return dserrors.ConfigError{
			Field:      "secret_store.timeout_ms",
			Value:      def.SecretStore.TimeoutMs,
			Message:    "timeout must not be negative",
			Suggestion: "Remove the field to use the 30 second default",
		}
	}
	switch def.KeySource {
	case "", "file", "keyring":
	default:
		return dserrors.ConfigError{
			Field:      "key_source",
			Value:      def.KeySource,
			Message:    "unsupported key source",
			Suggestion: "Use 'file' or 'keyring'",
		}
	}
	return nil
}

// Timeout returns the secret-store request timeout.
func (s SecretStoreConfig) Timeout() time.Duration {
	if s.TimeoutMs <= 0 {
		return defaultTimeoutMs * time.Millisecond
	}
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

// SkipTLSVerify reports whether certificate checks are disabled.
func (s SecretStoreConfig) SkipTLSVerify() bool {
	return s.TLSSkipVerify == nil || *s.TLSSkipVerify
}

func (c *Config) definition() *Definition {
	if c.Definition == nil {
		return Default()
	}
	return c.Definition
}

// DataPath joins name onto the data directory.
func (c *Config) DataPath(name string) string {
	def := c.definition()
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(def.DataDir, name)
}

// LogFilePath returns the file sink path of the logger.
func (c *Config) LogFilePath() string {
	return c.DataPath(c.definition().LogFile)
}

// KeyFilePath returns the location of the file key source.
func (c *Config) KeyFilePath() string {
	return c.DataPath(".secret.key")
}

// LocateTNSNames resolves the tnsnames.ora path from the config file,
// TNS_ADMIN or ORACLE_HOME.
func (c *Config) LocateTNSNames() (string, error) {
	return environments.LocateTNSNames(c.definition().TNSNames, c.getenv)
}

// TaskLogDir returns the directory health-check run logs go to.
func (c *Config) TaskLogDir() string {
	return c.DataPath(defaultTaskLogs)
}

// GetUserGroup returns the usernames of a configured group
func (c *Config) GetUserGroup(name string) ([]string, error) {
	def := c.definition()
	users, ok := def.UserGroups[strings.ToLower(name)]
	if !ok || len(users) == 0 {
		var available []string
		for groupName, members := range def.UserGroups {
			if len(members) > 0 {
				available = append(available, groupName)
			}
		}
		sort.Strings(available)

		suggestion := "Add the group to the 'user_groups:' section of your coredev.yaml"
		if len(available) > 0 {
			suggestion = fmt.Sprintf("Available groups: %s", strings.Join(available, ", "))
		}
		return nil, dserrors.ConfigError{
			Field:      "user_groups",
			Value:      name,
			Message:    "user group not found",
			Suggestion: suggestion,
		}
	}
	out := make([]string, len(users))
	copy(out, users)
	return out, nil
}
