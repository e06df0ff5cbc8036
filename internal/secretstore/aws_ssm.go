package secretstore

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/coredevops/coredev/internal/logging"
	"github.com/coredevops/coredev/internal/metrics"
)

const BackendSSM = "aws.ssm"

// SSMClientAPI defines the interface for AWS SSM Parameter Store operations
// This allows for mocking in tests
type SSMClientAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSMStore reads passwords from SecureString parameters named after the
// secret path.
type SSMStore struct {
	client   SSMClientAPI
	logger   *logging.Logger
	recorder *metrics.Recorder
}

// NewSSMStore builds a store with a real client.
func NewSSMStore(ctx context.Context, cfg AWSConfig, logger *logging.Logger, rec *metrics.Recorder) (*SSMStore, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	var clientOpts []func(*ssm.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		clientOpts = append(clientOpts, func(o *ssm.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	return NewSSMStoreWithClient(ssm.NewFromConfig(awsCfg, clientOpts...), logger, rec), nil
}

// NewSSMStoreWithClient wraps an existing client.
func NewSSMStoreWithClient(client SSMClientAPI, logger *logging.Logger, rec *metrics.Recorder) *SSMStore {
	if logger == nil {
		logger = logging.Discard()
	}
	return &SSMStore{client: client, logger: logger, recorder: rec}
}

// Name returns the backend name.
func (s *SSMStore) Name() string {
	return BackendSSM
}

// ParameterName turns a secret path into a parameter name.
func ParameterName(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return "/" + path
}

// Password fetches and decrypts the parameter for path.
func (s *SSMStore) Password(ctx context.Context, path string) (string, error) {
	name := ParameterName(path)
	s.logger.Debug("Fetching parameter from SSM: %s", logging.Secret(name))

	result, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		s.recorder.SecretStoreRequest(BackendSSM, StageRead, awsStatusCode(err))
		return "", awsError(BackendSSM, err)
	}
	s.recorder.SecretStoreRequest(BackendSSM, StageRead, 200)

	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", ErrNoPassword
	}
	return *result.Parameter.Value, nil
}
