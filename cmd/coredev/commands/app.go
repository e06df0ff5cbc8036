package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/coredevops/coredev/internal/cipher"
	"github.com/coredevops/coredev/internal/config"
	"github.com/coredevops/coredev/internal/credstore"
	dserrors "github.com/coredevops/coredev/internal/errors"
	"github.com/coredevops/coredev/internal/environments"
	"github.com/coredevops/coredev/internal/logging"
	"github.com/coredevops/coredev/internal/prompt"
	"github.com/coredevops/coredev/internal/resolve"
	"github.com/coredevops/coredev/internal/secretpath"
	"github.com/coredevops/coredev/internal/secretstore"
	"github.com/coredevops/coredev/internal/settings"
)

// app holds the state shared by commands that touch the data files.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	cipher   *cipher.Cipher
	settings *settings.Settings
	cache    *credstore.Store

	dir      *environments.Directory
	store    secretstore.Store
	prompter *prompt.Dispatcher
}

// loadApp loads the config file, the key and the data files.
func loadApp(cfg *config.Config) (*app, error) {
	if cfg.Logger == nil {
		cfg.Logger = logging.New(false, true)
	}
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	if err := cfg.Logger.OpenFile(cfg.LogFilePath()); err != nil {
		cfg.Logger.Warn("File logging disabled: %v", err)
	}

	def := cfg.Definition
	c, err := cipher.LoadOrGenerate(def.KeySource, cfg.KeyFilePath())
	if err != nil {
		return nil, dserrors.UserError{
			Message:    "Failed to load the encryption key",
			Details:    err.Error(),
			Suggestion: "Check key_source in coredev.yaml and the permissions of the data directory",
			Err:        err,
		}
	}

	s, err := settings.Load(cfg.DataPath(settings.DefaultFileName), c)
	if err != nil {
		return nil, err
	}
	cache, err := credstore.Open(cfg.DataPath(credstore.DefaultFileName), c, cfg.Logger)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   cfg.Logger,
		cipher:   c,
		settings: s,
		cache:    cache,
	}, nil
}

// directory loads tnsnames.ora on first use.
func (a *app) directory() (*environments.Directory, error) {
	if a.dir != nil {
		return a.dir, nil
	}
	path, err := a.cfg.LocateTNSNames()
	if err != nil {
		return nil, dserrors.UserError{
			Message:    "Could not find tnsnames.ora",
			Suggestion: "Set 'tnsnames:' in coredev.yaml or export TNS_ADMIN",
			Err:        err,
		}
	}
	dir, err := environments.LoadDirectory(path)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("Loaded %d environments from %s", dir.Len(), path)
	a.dir = dir
	return dir, nil
}

// secretStore builds the configured backend. A nil store with a nil error
// means none is configured.
func (a *app) secretStore(ctx context.Context) (secretstore.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, err := secretstore.New(ctx, a.cfg.Definition.SecretStore, a.settings, a.logger, a.cfg.Metrics)
	if errors.Is(err, secretstore.ErrNotConfigured) {
		a.logger.Debug("No secret store configured")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.store = store
	return store, nil
}

func (a *app) interactive() bool {
	return !a.cfg.NonInteractive && prompt.Interactive()
}

func (a *app) promptOwner() *prompt.Dispatcher {
	if a.prompter != nil {
		return a.prompter
	}
	var inner prompt.Prompter = prompt.Disabled{}
	if a.interactive() {
		inner = prompt.Terminal{}
	}
	a.prompter = prompt.NewDispatcher(inner)
	return a.prompter
}

// resolver wires the resolution chain.
func (a *app) resolver(ctx context.Context) (*resolve.Resolver, error) {
	dir, err := a.directory()
	if err != nil {
		return nil, err
	}
	store, err := a.secretStore(ctx)
	if err != nil {
		return nil, err
	}
	paths, err := secretpath.NewBuilder(a.cfg.Definition.SecretPath)
	if err != nil {
		return nil, err
	}

	opts := resolve.Options{
		Directory: dir,
		Cache:     a.cache,
		Paths:     paths,
		Prompter:  a.promptOwner(),
		Prefs:     a.settings,
		Logger:    a.logger,
		Recorder:  a.cfg.Metrics,
		Store:     store,
		Timeout:   a.cfg.Definition.SecretStore.Timeout(),
	}
	return resolve.New(opts), nil
}

// Close releases the prompt goroutine and the secret-store session.
func (a *app) Close() {
	if a.prompter != nil {
		a.prompter.Close()
	}
	if closer, ok := a.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			a.logger.Debug("Failed to close secret store: %v", err)
		}
	}
}

func requireFlag(value, flag, hint string) error {
	if value != "" {
		return nil
	}
	return dserrors.UserError{
		Message:    fmt.Sprintf("--%s is required", flag),
		Suggestion: hint,
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
