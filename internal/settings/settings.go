// Package settings persists operator settings: the Vault AppRole login and
// the save-locally preference.
package settings

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	dserrors "github.com/coredevops/coredev/internal/errors"
	"github.com/coredevops/coredev/internal/schema"
)

// DefaultFileName is the settings file name inside the data directory.
const DefaultFileName = "settings.json"

// Sealer encrypts and decrypts the AppRole ids.
type Sealer interface {
	Seal(plain string) (string, error)
	Open(token string) (string, error)
}

// File is the on-disk shape. RoleID and SecretID hold sealed tokens.
type File struct {
	VaultURL    string `json:"vault_url,omitempty" validate:"omitempty,httpurl"`
	RoleID      string `json:"role_id,omitempty"`
	SecretID    string `json:"secret_id,omitempty"`
	SaveLocally bool   `json:"save_healthcheck_credentials_locally"`
}

var settingsValidate *validator.Validate

func init() {
	settingsValidate = validator.New()
	_ = settingsValidate.RegisterValidation("httpurl", validateHTTPURL)
}

func validateHTTPURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Settings is safe for concurrent use.
type Settings struct {
	path   string
	sealer Sealer

	mu   sync.RWMutex
	file File
}

// Load reads path. A missing file yields defaults.
func Load(path string, sealer Sealer) (*Settings, error) {
	s := &Settings{path: path, sealer: sealer}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	if err := schema.Validate(schema.Settings, data); err != nil {
		return nil, dserrors.ConfigError{
			Field:      "settings",
			Value:      path,
			Message:    err.Error(),
			Suggestion: "Fix or delete the settings file and run 'coredev settings set-vault' again",
		}
	}
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &s.file); err != nil {
			return nil, fmt.Errorf("failed to parse settings: %w", err)
		}
	}
	if err := validateFile(s.file); err != nil {
		return nil, err
	}
	return s, nil
}

func validateFile(f File) error {
	if err := settingsValidate.Struct(f); err != nil {
		return dserrors.ConfigError{
			Field:      "vault_url",
			Value:      f.VaultURL,
			Message:    "vault URL must be an http or https URL",
			Suggestion: "Use a value like https://vault.example.com:8200",
		}
	}
	return nil
}

// Path returns the backing file.
func (s *Settings) Path() string {
	return s.path
}

// Snapshot returns a copy of the stored fields (ids still sealed).
func (s *Settings) Snapshot() File {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.file
}

// Save writes the settings file with mode 0600.
func (s *Settings) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveLocked()
}

func (s *Settings) saveLocked() error {
	data, err := json.MarshalIndent(s.file, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// SetVault stores the Vault URL and seals the AppRole ids, then saves.
func (s *Settings) SetVault(vaultURL, roleID, secretID string) error {
	vaultURL = strings.TrimRight(strings.TrimSpace(vaultURL), "/")
	next := File{VaultURL: vaultURL}
	if err := validateFile(next); err != nil {
		return err
	}

	sealedRole, err := s.sealer.Seal(roleID)
	if err != nil {
		return err
	}
	sealedSecret, err := s.sealer.Seal(secretID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.file.VaultURL = vaultURL
	s.file.RoleID = sealedRole
	s.file.SecretID = sealedSecret
	return s.saveLocked()
}

// ClearVault removes the Vault login and saves.
func (s *Settings) ClearVault() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.file.VaultURL = ""
	s.file.RoleID = ""
	s.file.SecretID = ""
	return s.saveLocked()
}

// VaultConfigured reports whether URL, role id and secret id are all present.
func (s *Settings) VaultConfigured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.file.VaultURL != "" && s.file.RoleID != "" && s.file.SecretID != ""
}

// VaultCredentials returns the URL and the decrypted AppRole ids.
func (s *Settings) VaultCredentials() (vaultURL, roleID, secretID string, err error) {
	s.mu.RLock()
	f := s.file
	s.mu.RUnlock()

	if f.RoleID == "" || f.SecretID == "" {
		return f.VaultURL, "", "", nil
	}
	if roleID, err = s.sealer.Open(f.RoleID); err != nil {
		return "", "", "", fmt.Errorf("failed to decrypt role id: %w", err)
	}
	if secretID, err = s.sealer.Open(f.SecretID); err != nil {
		return "", "", "", fmt.Errorf("failed to decrypt secret id: %w", err)
	}
	return f.VaultURL, roleID, secretID, nil
}

// SaveLocally reports whether resolved passwords are written to the cache.
func (s *Settings) SaveLocally() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.file.SaveLocally
}

// SetSaveLocally updates the preference and saves.
func (s *Settings) SetSaveLocally(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.file.SaveLocally = on
	return s.saveLocked()
}
