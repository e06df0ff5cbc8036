package retrieve

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coredevops/coredev/internal/environments"
	"github.com/coredevops/coredev/internal/logging"
	"github.com/coredevops/coredev/internal/resolve"
	"github.com/coredevops/coredev/internal/secretstore"
)

type mapResolver struct {
	results map[string]resolve.Result
	calls   []string
}

func (m *mapResolver) Resolve(ctx context.Context, req resolve.Request) (resolve.Result, error) {
	if err := ctx.Err(); err != nil {
		return resolve.Result{}, err
	}
	if req.Environment == "NOPE" {
		return resolve.Result{}, environments.ErrUnknownEnvironment
	}
	m.calls = append(m.calls, req.Username)
	if r, ok := m.results[req.Username]; ok {
		return r, nil
	}
	return resolve.Result{Outcome: resolve.OutcomeNotConfigured}, nil
}

func TestRetrieveDedupsUsers(t *testing.T) {
	t.Parallel()

	res := &mapResolver{results: map[string]resolve.Result{
		"TCTCD1": {Outcome: resolve.OutcomeResolved, Password: "a", Source: resolve.SourceSecretStore},
		"TCTCD3": {Outcome: resolve.OutcomeResolved, Password: "c", Source: resolve.SourceLocalCache},
	}}

	creds, err := New(res, nil).Retrieve(context.Background(), "PRDPD1", []string{"TCTCD1", " ", "TCTCD3", "tctcd1"})
	require.NoError(t, err)
	assert.Equal(t, []Credential{
		{Username: "TCTCD1", Password: "a", Source: resolve.SourceSecretStore},
		{Username: "TCTCD3", Password: "c", Source: resolve.SourceLocalCache},
	}, creds)
	assert.Equal(t, []string{"TCTCD1", "TCTCD3"}, res.calls)
}

func TestRetrieveStopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		result resolve.Result
	}{
		{"upstream failure", resolve.Result{Outcome: resolve.OutcomeUpstreamFailed, Stage: "read", StatusCode: 404}},
		{"declined", resolve.Result{Outcome: resolve.OutcomeUserDeclined}},
		{"not configured", resolve.Result{Outcome: resolve.OutcomeNotConfigured}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := &mapResolver{results: map[string]resolve.Result{
				"TCTCD1": {Outcome: resolve.OutcomeResolved, Password: "a", Source: resolve.SourceSecretStore},
				"TCTCD2": tt.result,
				"TCTCD3": {Outcome: resolve.OutcomeResolved, Password: "c", Source: resolve.SourceLocalCache},
			}}
			var buf bytes.Buffer
			r := New(res, logging.NewWithWriter(&buf, false, true))

			creds, err := r.Retrieve(context.Background(), "PRDPD1", []string{"TCTCD1", "TCTCD2", "TCTCD3"})
			var unresolved *resolve.UnresolvedError
			require.ErrorAs(t, err, &unresolved)
			assert.Equal(t, "TCTCD2", unresolved.Username)
			assert.Equal(t, "PRDPD1", unresolved.Environment)
			assert.Equal(t, tt.result.Outcome, unresolved.Result.Outcome)
			assert.Equal(t, []Credential{{Username: "TCTCD1", Password: "a", Source: resolve.SourceSecretStore}}, creds)
			assert.Equal(t, []string{"TCTCD1", "TCTCD2"}, res.calls, "TCTCD3 is never resolved")
			assert.Contains(t, buf.String(), "Stopping at TCTCD2 on PRDPD1")
		})
	}
}

func TestRetrieveVaultLoginRejectedOnce(t *testing.T) {
	t.Parallel()

	var logins, reads atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/auth/approle/login" {
			logins.Add(1)
			w.WriteHeader(http.StatusForbidden)
			return
		}
		reads.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	vault := secretstore.NewVaultClient(secretstore.VaultConfig{
		Address:  server.URL,
		RoleID:   "role",
		SecretID: "secret",
		Timeout:  5 * time.Second,
	})
	resolver := resolve.New(resolve.Options{
		Directory: environments.NewDirectory("test", map[string]environments.Environment{
			"PRDPD1": {Name: "PRDPD1", Host: "db1.prdpd1.rds.amazonaws.com", Port: "1521", ServiceName: "PRDPD1"},
		}),
		Store: vault,
	})

	creds, err := New(resolver, nil).Retrieve(context.Background(), "PRDPD1", []string{"PRM_APP01", "PRM_APP02", "TCTCD1"})
	var unresolved *resolve.UnresolvedError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "PRM_APP01", unresolved.Username)
	assert.Equal(t, 403, unresolved.Result.StatusCode)
	assert.Equal(t, secretstore.StageLogin, unresolved.Result.Stage)
	assert.Empty(t, creds)
	assert.Equal(t, int32(1), logins.Load(), "a rejected login is not repeated for later users")
	assert.Zero(t, reads.Load())
}

func TestRetrieveUnknownEnvironment(t *testing.T) {
	t.Parallel()

	_, err := New(&mapResolver{}, nil).Retrieve(context.Background(), "NOPE", []string{"A"})
	assert.ErrorIs(t, err, environments.ErrUnknownEnvironment)
}

func TestRetrieveCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	creds, err := New(&mapResolver{}, nil).Retrieve(ctx, "PRDPD1", []string{"A", "B"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, creds)
}
