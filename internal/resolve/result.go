package resolve

import "fmt"

// Source says where a resolved password came from.
type Source string

const (
	SourceLocalCache  Source = "local-cache"
	SourceSecretStore Source = "secret-store"
	SourceManual      Source = "manual"
)

// Outcome is the closed set of resolution results.
type Outcome string

const (
	OutcomeResolved       Outcome = "resolved"
	OutcomeNotConfigured  Outcome = "not-configured"
	OutcomeUpstreamFailed Outcome = "upstream-failed"
	OutcomeUserDeclined   Outcome = "user-declined"
)

// Result of one resolution. Password and Source are set only for
// OutcomeResolved; StatusCode, Stage and Err only for OutcomeUpstreamFailed.
type Result struct {
	Outcome  Outcome
	Password string
	Source   Source

	// StatusCode is 0 when the store was unreachable.
	StatusCode int
	Stage      string
	Err        error
}

// OK reports whether a password was obtained.
func (r Result) OK() bool {
	return r.Outcome == OutcomeResolved
}

// FromLocalCache reports whether the password came from the local cache.
// Callers use it to decide whether a rejected password may be evicted.
func (r Result) FromLocalCache() bool {
	return r.Outcome == OutcomeResolved && r.Source == SourceLocalCache
}

func (r Result) String() string {
	switch r.Outcome {
	case OutcomeResolved:
		return fmt.Sprintf("resolved from %s", r.Source)
	case OutcomeUpstreamFailed:
		if r.StatusCode != 0 {
			return fmt.Sprintf("secret store %s failed with status %d", r.Stage, r.StatusCode)
		}
		return fmt.Sprintf("secret store %s failed: %v", r.Stage, r.Err)
	default:
		return string(r.Outcome)
	}
}

func resolved(password string, source Source) Result {
	return Result{Outcome: OutcomeResolved, Password: password, Source: source}
}

// UnresolvedError stops an operation at the first user without a password.
type UnresolvedError struct {
	Environment string
	Username    string
	Result      Result
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("no password for %s on %s: %s", e.Username, e.Environment, e.Result)
}

func (e *UnresolvedError) Unwrap() error {
	return e.Result.Err
}
