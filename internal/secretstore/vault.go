package secretstore

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coredevops/coredev/internal/logging"
	"github.com/coredevops/coredev/internal/metrics"
	"github.com/coredevops/coredev/internal/secure"
)

const (
	BackendVault        = "vault"
	DefaultVaultTimeout = 30 * time.Second
)

// VaultConfig holds the AppRole login.
type VaultConfig struct {
	Address  string
	RoleID   string
	SecretID string
	Timeout  time.Duration
	TLSSkip  bool
}

// VaultClient logs in with AppRole once and reads KV secrets with the
// resulting token for the rest of its lifetime. The token is not renewed;
// an expired token surfaces as a read StatusError.
type VaultClient struct {
	address    string
	roleID     *secure.Value
	secretID   *secure.Value
	httpClient *http.Client
	logger     *logging.Logger
	recorder   *metrics.Recorder

	mu    sync.Mutex
	token *secure.Value
}

// VaultOption customizes a VaultClient.
type VaultOption func(*VaultClient)

// WithHTTPClient replaces the HTTP client (for testing).
func WithHTTPClient(client *http.Client) VaultOption {
	return func(c *VaultClient) {
		c.httpClient = client
	}
}

// WithVaultLogger sets the logger.
func WithVaultLogger(logger *logging.Logger) VaultOption {
	return func(c *VaultClient) {
		c.logger = logger
	}
}

// WithVaultRecorder sets the metrics recorder.
func WithVaultRecorder(rec *metrics.Recorder) VaultOption {
	return func(c *VaultClient) {
		c.recorder = rec
	}
}

// NewVaultClient creates a client. No request is made until Password.
func NewVaultClient(cfg VaultConfig, opts ...VaultOption) *VaultClient {
	c := &VaultClient{
		address:  strings.TrimRight(cfg.Address, "/"),
		roleID:   secure.NewValue(cfg.RoleID),
		secretID: secure.NewValue(cfg.SecretID),
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = newHTTPClient(cfg)
	}
	return c
}

func newHTTPClient(cfg VaultConfig) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultVaultTimeout
	}
	client := &http.Client{Timeout: timeout}
	if cfg.TLSSkip {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return client
}

// Name returns the backend name.
func (c *VaultClient) Name() string {
	return BackendVault
}

// Password reads data.password of the secret at path.
func (c *VaultClient) Password(ctx context.Context, path string) (string, error) {
	token, err := c.sessionToken(ctx)
	if err != nil {
		return "", err
	}

	endpoint := c.address + "/v1/secret/" + url.PathEscape(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if err := token.Use(func(b []byte) error {
		req.Header.Set("X-Vault-Token", string(b))
		return nil
	}); err != nil {
		return "", err
	}

	c.logger.Debug("Reading secret %s", logging.Secret(path))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recorder.SecretStoreRequest(BackendVault, StageRead, 0)
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	c.recorder.SecretStoreRequest(BackendVault, StageRead, resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", &StatusError{Backend: BackendVault, Stage: StageRead, StatusCode: resp.StatusCode}
	}

	var response struct {
		Data struct {
			Password *string `json:"password"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if response.Data.Password == nil {
		return "", ErrNoPassword
	}
	return *response.Data.Password, nil
}

func (c *VaultClient) sessionToken(ctx context.Context) (*secure.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != nil {
		return c.token, nil
	}

	roleID, err := c.roleID.Reveal()
	if err != nil {
		return nil, err
	}
	secretID, err := c.secretID.Reveal()
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(map[string]string{
		"role_id":   roleID,
		"secret_id": secretID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal auth data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.address+"/v1/auth/approle/login", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("Logging in to Vault at %s", c.address)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recorder.SecretStoreRequest(BackendVault, StageLogin, 0)
		return nil, fmt.Errorf("failed to make auth request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	c.recorder.SecretStoreRequest(BackendVault, StageLogin, resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Backend: BackendVault, Stage: StageLogin, StatusCode: resp.StatusCode}
	}

	var authResp struct {
		Auth struct {
			ClientToken string `json:"client_token"`
		} `json:"auth"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return nil, fmt.Errorf("failed to decode auth response: %w", err)
	}
	if authResp.Auth.ClientToken == "" {
		return nil, fmt.Errorf("no token received from vault")
	}

	c.token = secure.NewValue(authResp.Auth.ClientToken)
	return c.token, nil
}

// Close forgets the session token.
func (c *VaultClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != nil {
		c.token.Destroy()
		c.token = nil
	}
	c.roleID.Destroy()
	c.secretID.Destroy()
	return nil
}
