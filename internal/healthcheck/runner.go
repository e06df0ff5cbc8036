package healthcheck

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/coredevops/coredev/internal/environments"
	"github.com/coredevops/coredev/internal/logging"
	"github.com/coredevops/coredev/internal/metrics"
	"github.com/coredevops/coredev/internal/oracle"
	"github.com/coredevops/coredev/internal/resolve"
)

var (
	// ErrBusy is returned while another run of the same runner is in flight.
	ErrBusy = errors.New("a health check is already running")
	// ErrNotLocal is returned when a local-only option targets a remote database.
	ErrNotLocal = errors.New("option may only run against a local database")
)

const logTimestamp = "20060102_150405"

var unsafeLogChars = regexp.MustCompile(`[\\/:"*?<>| ]`)

// SanitizeName replaces characters that are not allowed in file names.
func SanitizeName(name string) string {
	return unsafeLogChars.ReplaceAllString(name, "_")
}

// Resolver obtains passwords.
type Resolver interface {
	Resolve(ctx context.Context, req resolve.Request) (resolve.Result, error)
}

// Evictor drops cached passwords of an environment.
type Evictor interface {
	DeleteEnvironment(env string) error
}

// Report describes a finished run. LogPath is empty when nothing was logged.
type Report struct {
	RunID       string
	Option      string
	Environment string
	LogPath     string
	Complete    bool
	Lines       []string
	// Err says why an incomplete run stopped.
	Err      error
	Duration time.Duration
}

// Status is the metric label of the run.
func (r Report) Status() string {
	if r.Complete {
		return "complete"
	}
	return "failed"
}

// RunnerConfig wires a Runner.
type RunnerConfig struct {
	Options    *OptionStore
	Directory  *environments.Directory
	Classifier environments.Classifier
	Resolver   Resolver
	Connector  oracle.Connector
	Cache      Evictor
	LogDir     string
	Logger     *logging.Logger
	Recorder   *metrics.Recorder
	Now        func() time.Time
}

// Runner executes options. Only one run may be active at a time.
type Runner struct {
	cfg  RunnerConfig
	busy atomic.Bool
}

// NewRunner creates a runner.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Classifier == nil && cfg.Directory != nil {
		cfg.Classifier = environments.NewHostClassifier(cfg.Directory)
	}
	return &Runner{cfg: cfg}
}

// Busy reports whether a run is in flight.
func (r *Runner) Busy() bool {
	return r.busy.Load()
}

// RunResult is delivered by Start.
type RunResult struct {
	Report Report
	Err    error
}

// Start runs the option on a worker goroutine. The channel receives exactly
// one result and is then closed.
func (r *Runner) Start(ctx context.Context, envName, optionName string) <-chan RunResult {
	out := make(chan RunResult, 1)
	go func() {
		defer close(out)
		report, err := r.Run(ctx, envName, optionName)
		out <- RunResult{Report: report, Err: err}
	}()
	return out
}

// Run executes the option for every configured user. The error return is
// for runs that could not start; a run that stops part way returns a Report
// with Complete false and Err set.
func (r *Runner) Run(ctx context.Context, envName, optionName string) (Report, error) {
	if !r.busy.CompareAndSwap(false, true) {
		return Report{}, ErrBusy
	}
	defer r.busy.Store(false)

	opt, err := r.cfg.Options.Get(optionName)
	if err != nil {
		return Report{}, err
	}
	env, err := r.cfg.Directory.Get(envName)
	if err != nil {
		return Report{}, err
	}
	if opt.OnlyLocal {
		local, err := r.cfg.Classifier.IsLocal(env.Name)
		if err != nil {
			return Report{}, err
		}
		if !local {
			return Report{}, fmt.Errorf("%w: %s is on %s", ErrNotLocal, env.Name, env.Host)
		}
	}

	started := r.cfg.Now()
	report := Report{
		RunID:       uuid.NewString(),
		Option:      optionName,
		Environment: env.Name,
	}

	if err := os.MkdirAll(r.cfg.LogDir, 0o700); err != nil {
		return report, fmt.Errorf("failed to create log directory: %w", err)
	}
	logPath := filepath.Join(r.cfg.LogDir, fmt.Sprintf("%s_%s.log", SanitizeName(optionName), started.Format(logTimestamp)))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return report, fmt.Errorf("failed to create log file: %w", err)
	}

	r.cfg.Logger.Debug("Run %s: %s on %s, log %s", report.RunID, optionName, env.Name, logPath)
	w := bufio.NewWriter(logFile)
	report.Err = r.runUsers(ctx, env, opt, w, &report)
	report.Complete = report.Err == nil

	if err := w.Flush(); err != nil && report.Err == nil {
		report.Err = fmt.Errorf("failed to write log: %w", err)
		report.Complete = false
	}
	_ = logFile.Close()

	if len(report.Lines) == 0 {
		_ = os.Remove(logPath)
	} else {
		report.LogPath = logPath
	}

	report.Duration = r.cfg.Now().Sub(started)
	r.cfg.Recorder.HealthCheckRun(optionName, report.Status(), report.Duration)
	if report.Complete {
		r.cfg.Logger.Info("%s has finished", optionName)
	} else {
		r.cfg.Logger.Warn("%s has finished with errors: %v", optionName, report.Err)
	}
	return report, nil
}

func (r *Runner) runUsers(ctx context.Context, env environments.Environment, opt Option, w *bufio.Writer, report *Report) error {
	for _, user := range opt.UserList() {
		result, err := r.cfg.Resolver.Resolve(ctx, resolve.Request{Environment: env.Name, Username: user})
		if err != nil {
			return err
		}
		if !result.OK() {
			return &resolve.UnresolvedError{Environment: env.Name, Username: user, Result: result}
		}

		lines, err := r.runAs(ctx, env, opt, user, result)
		for _, line := range lines {
			if _, werr := w.WriteString(line + "\n"); werr != nil {
				return fmt.Errorf("failed to write log: %w", werr)
			}
		}
		report.Lines = append(report.Lines, lines...)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runAs(ctx context.Context, env environments.Environment, opt Option, user string, result resolve.Result) ([]string, error) {
	sess, err := r.cfg.Connector.Connect(ctx, oracle.Target{
		Environment:   env,
		Username:      user,
		Password:      result.Password,
		AsSysDBA:      opt.RunAsSysDBA,
		UseDescriptor: opt.OracleClient,
	})
	if err != nil {
		if errors.Is(err, oracle.ErrInvalidPassword) {
			return nil, r.rejected(env, user, result, err)
		}
		return nil, err
	}
	defer func() { _ = sess.Close() }()

	return sess.Execute(ctx, opt.PLSQLBlock)
}

// rejected evicts the environment's cached passwords when the rejected one
// came from the cache.
func (r *Runner) rejected(env environments.Environment, user string, result resolve.Result, err error) error {
	if !result.FromLocalCache() || r.cfg.Cache == nil {
		r.cfg.Logger.Error("Incorrect password for %s on %s", user, env.Name)
		return err
	}

	r.cfg.Logger.Error("Incorrect password for %s on %s. Deleting local entry", user, env.Name)
	if derr := r.cfg.Cache.DeleteEnvironment(env.UniqueName()); derr != nil {
		return fmt.Errorf("%w (failed to delete local entry: %v)", err, derr)
	}
	return fmt.Errorf("%w, deleted local entry %s", err, env.UniqueName())
}
