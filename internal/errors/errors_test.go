package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coredevops/coredev/internal/errors"
)

func TestUserErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.UserError{
		Message:    "Operation failed",
		Details:    "Connection timeout",
		Suggestion: "Check network connectivity",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "Operation failed")
	assert.Contains(t, errMsg, "Details: Connection timeout")
	assert.Contains(t, errMsg, "Try: Check network connectivity")
}

func TestUserErrorFallsBackToWrapped(t *testing.T) {
	t.Parallel()

	inner := fmt.Errorf("boom")
	err := errors.UserError{Err: inner}

	assert.Equal(t, "boom", err.Error())
	assert.True(t, stderrors.Is(err, inner))
}

func TestConfigErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.ConfigError{
		Field:      "secret_path.prime_pattern",
		Value:      "([",
		Message:    "invalid regular expression",
		Suggestion: "Quote the pattern in coredev.yaml",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "secret_path.prime_pattern")
	assert.Contains(t, errMsg, "([")
	assert.Contains(t, errMsg, "invalid regular expression")
	assert.Contains(t, errMsg, "Quote the pattern")
}

func TestBackendErrorSuggestions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		backend  string
		err      error
		contains string
	}{
		{"vault forbidden", "vault", fmt.Errorf("login failed with status 403"), "set-vault"},
		{"vault expired token", "vault", fmt.Errorf("read failed with status 401"), "log in"},
		{"vault missing path", "vault", fmt.Errorf("read failed with status 404"), "password path"},
		{"aws denied", "aws.secretsmanager", fmt.Errorf("AccessDenied: nope"), "IAM"},
		{"aws forbidden status", "aws.ssm", fmt.Errorf("aws.ssm read returned status 403"), "IAM"},
		{"aws missing secret", "aws.secretsmanager", fmt.Errorf("aws.secretsmanager read returned status 404"), "password path"},
		{"oracle listener", "oracle", fmt.Errorf("ORA-12514: listener does not know of service"), "tnsnames.ora"},
		{"generic timeout", "oracle", fmt.Errorf("context deadline exceeded"), "timed out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := errors.BackendError(tt.backend, "test", tt.err)
			var ue errors.UserError
			assert.True(t, stderrors.As(err, &ue))
			assert.Contains(t, ue.Suggestion, tt.contains)
			assert.True(t, stderrors.Is(err, tt.err))
			assert.Equal(t, tt.err.Error(), ue.Details)
		})
	}
}

func TestSimplifyError(t *testing.T) {
	t.Parallel()

	assert.Nil(t, errors.SimplifyError(nil))

	ue := errors.UserError{Message: "already friendly"}
	assert.Equal(t, ue, errors.SimplifyError(ue))

	simplified := errors.SimplifyError(fmt.Errorf("load: %w", fmt.Errorf("json: cannot unmarshal")))
	_, ok := simplified.(errors.ConfigError)
	assert.True(t, ok)

	simplified = errors.SimplifyError(fmt.Errorf("open x: permission denied"))
	assert.Contains(t, simplified.Error(), "Permission denied")
}
