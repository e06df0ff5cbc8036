package secretstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// AWSConfig configures the AWS backends.
type AWSConfig struct {
	Region   string
	Profile  string
	Endpoint string // Optional custom endpoint for LocalStack or testing

	// Static credentials, only for LocalStack or testing
	AccessKeyID     string
	SecretAccessKey string
}

func loadAWSConfig(ctx context.Context, cfg AWSConfig) (aws.Config, error) {
	var configOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		configOpts = append(configOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		configOpts = append(configOpts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}

// awsStatusCode maps an AWS SDK error to an HTTP status, 0 when the request
// never got a response.
func awsStatusCode(err error) int {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode()
	}

	var smNotFound *smtypes.ResourceNotFoundException
	var ssmNotFound *ssmtypes.ParameterNotFound
	if errors.As(err, &smNotFound) || errors.As(err, &ssmNotFound) {
		return 404
	}
	if isAuthError(err) {
		return 403
	}
	return 0
}

func isAuthError(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "AccessDenied") ||
		strings.Contains(errStr, "UnauthorizedOperation") ||
		strings.Contains(errStr, "InvalidUserID") ||
		strings.Contains(errStr, "Forbidden")
}

func awsError(backend string, err error) error {
	if code := awsStatusCode(err); code != 0 {
		return &StatusError{Backend: backend, Stage: StageRead, StatusCode: code}
	}
	return fmt.Errorf("%s request failed: %w", backend, err)
}
