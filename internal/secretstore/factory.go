package secretstore

import (
	"context"
	"fmt"

	"github.com/coredevops/coredev/internal/config"
	"github.com/coredevops/coredev/internal/logging"
	"github.com/coredevops/coredev/internal/metrics"
)

// VaultSettings supplies the AppRole login stored in the settings file.
type VaultSettings interface {
	VaultCredentials() (vaultURL, roleID, secretID string, err error)
}

// New builds the backend selected by cfg.Type. It returns ErrNotConfigured
// when Vault is selected but the URL, role id or secret id is missing.
func New(ctx context.Context, cfg config.SecretStoreConfig, vault VaultSettings, logger *logging.Logger, rec *metrics.Recorder) (Store, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	awsCfg := AWSConfigFrom(cfg)

	switch cfg.Type {
	case "", config.StoreVault:
		if vault == nil {
			return nil, ErrNotConfigured
		}
		address, roleID, secretID, err := vault.VaultCredentials()
		if err != nil {
			return nil, err
		}
		if address == "" {
			address = cfg.VaultAddr
		}
		if address == "" || roleID == "" || secretID == "" {
			return nil, ErrNotConfigured
		}
		return NewVaultClient(VaultConfig{
			Address:  address,
			RoleID:   roleID,
			SecretID: secretID,
			Timeout:  cfg.Timeout(),
			TLSSkip:  cfg.SkipTLSVerify(),
		}, WithVaultLogger(logger), WithVaultRecorder(rec)), nil
	case config.StoreSecretsManager:
		return NewSecretsManagerStore(ctx, awsCfg, logger, rec)
	case config.StoreSSM:
		return NewSSMStore(ctx, awsCfg, logger, rec)
	default:
		return nil, fmt.Errorf("unsupported secret store type: %s", cfg.Type)
	}
}
