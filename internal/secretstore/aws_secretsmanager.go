package secretstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/coredevops/coredev/internal/logging"
	"github.com/coredevops/coredev/internal/metrics"
)

const BackendSecretsManager = "aws.secretsmanager"

// SecretsManagerClientAPI defines the interface for AWS Secrets Manager operations
// This allows for mocking in tests
type SecretsManagerClientAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerStore reads passwords from AWS Secrets Manager. The secret
// path is the secret id; its value is either the bare password or a JSON
// object with a "password" field (the RDS-managed secret layout).
type SecretsManagerStore struct {
	client   SecretsManagerClientAPI
	logger   *logging.Logger
	recorder *metrics.Recorder
}

// NewSecretsManagerStore builds a store with a real client.
func NewSecretsManagerStore(ctx context.Context, cfg AWSConfig, logger *logging.Logger, rec *metrics.Recorder) (*SecretsManagerStore, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	var clientOpts []func(*secretsmanager.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	return NewSecretsManagerStoreWithClient(secretsmanager.NewFromConfig(awsCfg, clientOpts...), logger, rec), nil
}

// NewSecretsManagerStoreWithClient wraps an existing client.
func NewSecretsManagerStoreWithClient(client SecretsManagerClientAPI, logger *logging.Logger, rec *metrics.Recorder) *SecretsManagerStore {
	if logger == nil {
		logger = logging.Discard()
	}
	return &SecretsManagerStore{client: client, logger: logger, recorder: rec}
}

// Name returns the backend name.
func (s *SecretsManagerStore) Name() string {
	return BackendSecretsManager
}

// Password fetches the secret at path.
func (s *SecretsManagerStore) Password(ctx context.Context, path string) (string, error) {
	s.logger.Debug("Fetching secret from Secrets Manager: %s", logging.Secret(path))

	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(path),
	})
	if err != nil {
		s.recorder.SecretStoreRequest(BackendSecretsManager, StageRead, awsStatusCode(err))
		return "", awsError(BackendSecretsManager, err)
	}
	s.recorder.SecretStoreRequest(BackendSecretsManager, StageRead, 200)

	var secretString string
	switch {
	case result.SecretString != nil:
		secretString = *result.SecretString
	case result.SecretBinary != nil:
		secretString = string(result.SecretBinary)
	default:
		return "", ErrNoPassword
	}
	return extractPassword(secretString)
}

// extractPassword returns the "password" field of a JSON object, or the raw
// value when it is not JSON.
func extractPassword(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "{") {
		return value, nil
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &data); err != nil {
		return value, nil
	}
	pw, ok := data["password"]
	if !ok {
		return "", ErrNoPassword
	}
	s, ok := pw.(string)
	if !ok {
		return "", fmt.Errorf("password field has type %T, want string", pw)
	}
	return s, nil
}
