package resolve

import (
	"context"
	"errors"
	"fmt"
	"time"

	dserrors "github.com/coredevops/coredev/internal/errors"
)

// withStoreTimeout bounds a secret-store call. A zero timeout leaves ctx as is.
func withStoreTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// timeoutError wraps deadline errors with a hint about timeout_ms.
func timeoutError(err error, backend string, timeout time.Duration) error {
	if !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return dserrors.UserError{
		Message:    "Secret store request timed out",
		Details:    fmt.Sprintf("Operation exceeded %s timeout", timeout),
		Suggestion: getTimeoutSuggestion(backend, timeout),
		Err:        err,
	}
}

func getTimeoutSuggestion(backend string, timeout time.Duration) string {
	switch backend {
	case "vault":
		if timeout < 5*time.Second {
			return "Vault API can be slow. Try increasing secret_store.timeout_ms to 10000"
		}
		return "Check Vault connectivity and the vault URL in 'coredev settings show'"
	case "aws.secretsmanager", "aws.ssm":
		if timeout < 5*time.Second {
			return "AWS API can be slow. Try increasing secret_store.timeout_ms to 10000"
		}
		return "Check AWS connectivity and credentials. Verify secret_store.region is correct"
	}
	return "Check network connectivity. Consider increasing secret_store.timeout_ms"
}
