package secretstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coredevops/coredev/internal/metrics"
)

type fakeVault struct {
	loginStatus int
	readStatus  int
	password    string

	logins   atomic.Int32
	reads    atomic.Int32
	mu       sync.Mutex
	lastPath string
	lastBody map[string]string
}

func (f *fakeVault) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/approle/login", func(w http.ResponseWriter, r *http.Request) {
		f.logins.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.lastBody = body
		status := f.loginStatus
		f.mu.Unlock()

		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_, _ = w.Write([]byte(`{"auth":{"client_token":"hvs.test-token"}}`))
	})
	mux.HandleFunc("/v1/secret/", func(w http.ResponseWriter, r *http.Request) {
		f.reads.Add(1)
		assert.Equal(t, "hvs.test-token", r.Header.Get("X-Vault-Token"))
		f.mu.Lock()
		f.lastPath = r.URL.EscapedPath()
		status := f.readStatus
		f.mu.Unlock()

		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]string{"password": f.password},
		})
	})
	return mux
}

func newTestVault(t *testing.T, f *fakeVault, rec *metrics.Recorder) *VaultClient {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewVaultClient(VaultConfig{
		Address:  srv.URL + "/",
		RoleID:   "role-1",
		SecretID: "secret-1",
	}, WithHTTPClient(srv.Client()), WithVaultRecorder(rec))
}

func TestVaultPassword(t *testing.T) {
	t.Parallel()

	f := &fakeVault{loginStatus: 200, readStatus: 200, password: "s3cr3t"}
	c := newTestVault(t, f, nil)

	pw, err := c.Password(context.Background(), "tctprime/db/oracle/app/prdpd1/prime/prm_app01")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", pw)
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, "/v1/secret/tctprime%2Fdb%2Foracle%2Fapp%2Fprdpd1%2Fprime%2Fprm_app01", f.lastPath)
	assert.Equal(t, map[string]string{"role_id": "role-1", "secret_id": "secret-1"}, f.lastBody)
	assert.Equal(t, "vault", c.Name())
}

func TestVaultTokenIsReused(t *testing.T) {
	t.Parallel()

	f := &fakeVault{loginStatus: 200, readStatus: 200, password: "pw"}
	c := newTestVault(t, f, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Password(context.Background(), "a/b")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), f.logins.Load())
	assert.Equal(t, int32(5), f.reads.Load())
}

func TestVaultLoginFailureSkipsRead(t *testing.T) {
	t.Parallel()

	rec := metrics.New()
	f := &fakeVault{loginStatus: http.StatusForbidden, readStatus: 200}
	c := newTestVault(t, f, rec)

	_, err := c.Password(context.Background(), "a/b")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, StageLogin, statusErr.Stage)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.Equal(t, int32(0), f.reads.Load())
	assert.Equal(t, "vault login returned status 403", err.Error())

	count, err := testutil.GatherAndCount(rec.Registry(), "coredev_secretstore_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestVaultReadFailure(t *testing.T) {
	t.Parallel()

	f := &fakeVault{loginStatus: 200, readStatus: http.StatusNotFound}
	c := newTestVault(t, f, nil)

	_, err := c.Password(context.Background(), "a/b")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, StageRead, statusErr.Stage)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestVaultExpiredTokenIsNotRefreshed(t *testing.T) {
	t.Parallel()

	f := &fakeVault{loginStatus: 200, readStatus: 200, password: "pw"}
	c := newTestVault(t, f, nil)

	_, err := c.Password(context.Background(), "a/b")
	require.NoError(t, err)

	f.mu.Lock()
	f.readStatus = http.StatusUnauthorized
	f.mu.Unlock()
	_, err = c.Password(context.Background(), "a/b")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Equal(t, int32(1), f.logins.Load())
}

func TestVaultMissingPasswordField(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/auth/approle/login" {
			_, _ = w.Write([]byte(`{"auth":{"client_token":"t"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"username":"x"}}`))
	}))
	t.Cleanup(srv.Close)

	c := NewVaultClient(VaultConfig{Address: srv.URL, RoleID: "r", SecretID: "s"}, WithHTTPClient(srv.Client()))
	_, err := c.Password(context.Background(), "a")
	assert.ErrorIs(t, err, ErrNoPassword)
}

func TestVaultTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := NewVaultClient(VaultConfig{Address: addr, RoleID: "r", SecretID: "s"})
	_, err := c.Password(context.Background(), "a")
	require.Error(t, err)
	var statusErr *StatusError
	assert.False(t, errors.As(err, &statusErr))
}

func TestVaultClose(t *testing.T) {
	t.Parallel()

	f := &fakeVault{loginStatus: 200, readStatus: 200, password: "pw"}
	c := newTestVault(t, f, nil)
	_, err := c.Password(context.Background(), "a")
	require.NoError(t, err)
	assert.NoError(t, c.Close())
}
