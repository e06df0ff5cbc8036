// Package secretstore fetches database passwords from a remote secret store.
package secretstore

import (
	"context"
	"errors"
	"fmt"
)

// Request stages reported in StatusError.
const (
	StageLogin = "login"
	StageRead  = "read"
)

// ErrNotConfigured is returned by New when the selected backend lacks the
// settings it needs.
var ErrNotConfigured = errors.New("secret store is not configured")

// ErrNoPassword is returned when the secret exists but carries no password.
var ErrNoPassword = errors.New("secret has no password field")

// Store resolves a secret path to a password.
type Store interface {
	Name() string
	Password(ctx context.Context, path string) (string, error)
}

// StatusError is a non-success response from the store.
type StatusError struct {
	Backend    string
	Stage      string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned status %d", e.Backend, e.Stage, e.StatusCode)
}
