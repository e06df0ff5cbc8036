// Package resolve obtains the password for a database user on an
// environment. Sources are tried in a fixed order and the first success
// wins: the local cache, the secret store (RDS environments only), then
// manual entry. Nothing is retried.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coredevops/coredev/internal/environments"
	dserrors "github.com/coredevops/coredev/internal/errors"
	"github.com/coredevops/coredev/internal/logging"
	"github.com/coredevops/coredev/internal/metrics"
	"github.com/coredevops/coredev/internal/prompt"
	"github.com/coredevops/coredev/internal/secretpath"
	"github.com/coredevops/coredev/internal/secretstore"
)

// Request names the environment and database user to resolve.
type Request struct {
	Environment string
	Username    string
}

// Cache is the local credential cache.
type Cache interface {
	Get(env, user string) (string, bool, error)
	Put(env, user, password string) error
}

// Preferences exposes the save-locally setting.
type Preferences interface {
	SaveLocally() bool
}

// Options wires a Resolver. Store may be nil when no secret store is
// configured.
type Options struct {
	Directory  *environments.Directory
	Classifier environments.Classifier
	Cache      Cache
	Store      secretstore.Store
	Paths      *secretpath.Builder
	Prompter   prompt.Prompter
	Prefs      Preferences
	Logger     *logging.Logger
	Recorder   *metrics.Recorder
	Timeout    time.Duration
}

// Resolver is safe for concurrent use when its Prompter is (see
// prompt.Dispatcher).
type Resolver struct {
	dir        *environments.Directory
	classifier environments.Classifier
	cache      Cache
	store      secretstore.Store
	paths      *secretpath.Builder
	prompter   prompt.Prompter
	prefs      Preferences
	logger     *logging.Logger
	recorder   *metrics.Recorder
	timeout    time.Duration
}

// New creates a new resolver instance
func New(opts Options) *Resolver {
	r := &Resolver{
		dir:        opts.Directory,
		classifier: opts.Classifier,
		cache:      opts.Cache,
		store:      opts.Store,
		paths:      opts.Paths,
		prompter:   opts.Prompter,
		prefs:      opts.Prefs,
		logger:     opts.Logger,
		recorder:   opts.Recorder,
		timeout:    opts.Timeout,
	}
	if r.logger == nil {
		r.logger = logging.Discard()
	}
	if r.classifier == nil && r.dir != nil {
		r.classifier = environments.NewHostClassifier(r.dir)
	}
	if r.prompter == nil {
		r.prompter = prompt.Disabled{}
	}
	if r.paths == nil {
		r.paths, _ = secretpath.NewBuilder(secretpath.DefaultRules())
	}
	return r
}

// StoreConfigured reports whether a secret store is wired in.
func (r *Resolver) StoreConfigured() bool {
	return r.store != nil
}

// Resolve runs the resolution chain. The error return is reserved for
// caller mistakes (unknown environment) and context cancellation; every
// other failure is a Result.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Result, error) {
	env, err := r.dir.Get(req.Environment)
	if err != nil {
		return Result{}, err
	}

	result, err := r.resolve(ctx, env, req.Username)
	if err != nil {
		return Result{}, err
	}
	r.recorder.Resolution(string(result.Source), string(result.Outcome))
	r.logger.Debug("Resolved %s on %s: %s", req.Username, env.Name, result)
	return result, nil
}

func (r *Resolver) resolve(ctx context.Context, env environments.Environment, username string) (Result, error) {
	key := env.UniqueName()

	if r.cache != nil {
		password, ok, err := r.cache.Get(key, username)
		switch {
		case err != nil:
			r.logger.Warn("Ignoring unreadable cached password for %s: %v", username, err)
		case ok:
			return resolved(password, SourceLocalCache), nil
		}
	}

	isRDS, err := r.classifier.IsRDS(env.Name)
	if err != nil {
		return Result{}, err
	}

	if r.store != nil && isRDS {
		return r.fromStore(ctx, env, username)
	}
	return r.manual(ctx, env, username, isRDS)
}

func (r *Resolver) fromStore(ctx context.Context, env environments.Environment, username string) (Result, error) {
	path := r.paths.Build(username, env.ServiceName)

	storeCtx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()

	password, err := r.store.Password(storeCtx, path)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		result := Result{Outcome: OutcomeUpstreamFailed, Stage: secretstore.StageRead}
		var statusErr *secretstore.StatusError
		if errors.As(err, &statusErr) {
			result.StatusCode = statusErr.StatusCode
			result.Stage = statusErr.Stage
		}
		if errors.Is(err, context.DeadlineExceeded) {
			result.Err = timeoutError(err, r.store.Name(), r.timeout)
		} else {
			result.Err = dserrors.BackendError(r.store.Name(), result.Stage, err)
		}
		r.reportStoreFailure(env, result, err)
		return result, nil
	}

	r.remember(env, username, password)
	return resolved(password, SourceSecretStore), nil
}

func (r *Resolver) reportStoreFailure(env environments.Environment, result Result, cause error) {
	switch {
	case result.Stage == secretstore.StageLogin && result.StatusCode != 0:
		r.logger.Error("Failed to retrieve client token for %s. Status code %d", r.store.Name(), result.StatusCode)
	case result.StatusCode != 0:
		r.logger.Error("Failed to retrieve credentials for %s. Status code %d", env.ServiceName, result.StatusCode)
	default:
		r.logger.Error("Failed to retrieve credentials for %s: %v", env.ServiceName, cause)
	}

	var userErr dserrors.UserError
	if errors.As(result.Err, &userErr) && userErr.Suggestion != "" {
		r.logger.Warn("Try: %s", userErr.Suggestion)
	}
}

func (r *Resolver) manual(ctx context.Context, env environments.Environment, username string, isRDS bool) (Result, error) {
	question := "It appears this is not an RDS instance and default passwords have not been configured. Would you like to provide the password manually?"
	if isRDS {
		question = "It appears that neither vault settings nor default passwords have been configured. Would you like to provide the password manually?"
	}

	ok, err := r.prompter.Confirm(ctx, question)
	if err != nil {
		return r.promptFailed(ctx, env, username, err)
	}
	if !ok {
		r.logger.Warn("No password provided for %s on %s", username, env.Name)
		return Result{Outcome: OutcomeUserDeclined}, nil
	}

	title := fmt.Sprintf("Provide password for %s of %s", strings.ToUpper(username), env.ServiceName)
	password, err := r.prompter.Password(ctx, title)
	if err != nil {
		return r.promptFailed(ctx, env, username, err)
	}
	if password == "" {
		r.logger.Warn("No password provided for %s on %s", username, env.Name)
		return Result{Outcome: OutcomeUserDeclined}, nil
	}

	r.remember(env, username, password)
	return resolved(password, SourceManual), nil
}

func (r *Resolver) promptFailed(ctx context.Context, env environments.Environment, username string, err error) (Result, error) {
	if errors.Is(err, prompt.ErrNonInteractive) {
		r.logger.Error("No password source available for %s on %s: no cached password, no secret store for this environment, and prompting is disabled", username, env.Name)
		return Result{Outcome: OutcomeNotConfigured}, nil
	}
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	return Result{}, fmt.Errorf("prompt failed: %w", err)
}

func (r *Resolver) remember(env environments.Environment, username, password string) {
	if r.cache == nil || r.prefs == nil || !r.prefs.SaveLocally() {
		return
	}
	if err := r.cache.Put(env.UniqueName(), username, password); err != nil {
		r.logger.Warn("Failed to save password for %s locally: %v", username, err)
	}
}
