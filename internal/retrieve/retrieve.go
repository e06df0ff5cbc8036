// Package retrieve looks up passwords for a list of database users on one
// environment.
package retrieve

import (
	"context"
	"strings"

	"github.com/coredevops/coredev/internal/logging"
	"github.com/coredevops/coredev/internal/resolve"
)

// Resolver obtains passwords.
type Resolver interface {
	Resolve(ctx context.Context, req resolve.Request) (resolve.Result, error)
}

// Credential is one resolved user.
type Credential struct {
	Username string
	Password string
	Source   resolve.Source
}

// Retriever resolves users one after another and stops at the first user
// that cannot be resolved.
type Retriever struct {
	resolver Resolver
	logger   *logging.Logger
}

// New creates a retriever.
func New(resolver Resolver, logger *logging.Logger) *Retriever {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Retriever{resolver: resolver, logger: logger}
}

// Retrieve resolves every user on envName in order. Duplicate and blank
// usernames are ignored. The first unresolved user ends the run with a
// *resolve.UnresolvedError; the users resolved before it are returned.
func (r *Retriever) Retrieve(ctx context.Context, envName string, users []string) ([]Credential, error) {
	seen := make(map[string]bool, len(users))
	var creds []Credential
	for _, user := range users {
		user = strings.TrimSpace(user)
		key := strings.ToUpper(user)
		if user == "" || seen[key] {
			continue
		}
		seen[key] = true

		result, err := r.resolver.Resolve(ctx, resolve.Request{Environment: envName, Username: user})
		if err != nil {
			return creds, err
		}
		if !result.OK() {
			r.logger.Warn("Stopping at %s on %s: %s", user, envName, result)
			return creds, &resolve.UnresolvedError{Environment: envName, Username: user, Result: result}
		}
		creds = append(creds, Credential{Username: user, Password: result.Password, Source: result.Source})
	}
	return creds, nil
}
