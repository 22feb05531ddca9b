package secrets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"audio-library/backend/pkg/config"
	"audio-library/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const kvResponse = `{
  "request_id": "3f0c2c1e",
  "lease_id": "",
  "renewable": false,
  "lease_duration": 0,
  "data": {
    "data": {"db_password": "from-vault", "mongodb_url": "mongodb://vault-host:27017"},
    "metadata": {"created_time": "2024-05-01T12:00:00Z", "custom_metadata": null, "deletion_time": "", "destroyed": false, "version": 3}
  }
}`

func newVault(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/v1/secret/data/audio-library" || r.Header.Get("X-Vault-Token") != "root" {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"errors":["permission denied"]}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func vaultConfig(addr string) *config.Config {
	cfg := config.Load()
	cfg.Vault.Enabled = true
	cfg.Vault.Address = addr
	cfg.Vault.Token = "root"
	cfg.Vault.Mount = "secret"
	cfg.Vault.Path = "audio-library"
	cfg.Vault.Timeout = 2 * time.Second
	return cfg
}

func TestApplyFromVault(t *testing.T) {
	srv, hits := newVault(t, http.StatusOK, kvResponse)
	t.Setenv("REDIS_PASSWORD", "from-env")

	cfg := vaultConfig(srv.URL)
	m, err := NewVaultManager(cfg, logger.Discard())
	require.NoError(t, err)

	require.NoError(t, Apply(context.Background(), m, cfg, logger.Discard()))
	assert.Equal(t, "from-vault", cfg.Database.Password)
	assert.Equal(t, "mongodb://vault-host:27017", cfg.Store.MongoURL)
	assert.Equal(t, "from-env", cfg.Redis.Password)
	assert.EqualValues(t, 1, hits.Load(), "secret is read once and cached")
}

func TestApplyWithMissingVaultSecret(t *testing.T) {
	srv, _ := newVault(t, http.StatusNotFound, `{"errors":[]}`)
	t.Setenv("DB_PASSWORD", "env-password")

	cfg := vaultConfig(srv.URL)
	cfg.Store.MongoURL = "mongodb://configured:27017"
	m, err := NewVaultManager(cfg, logger.Discard())
	require.NoError(t, err)

	require.NoError(t, Apply(context.Background(), m, cfg, logger.Discard()))
	assert.Equal(t, "env-password", cfg.Database.Password)
	assert.Equal(t, "mongodb://configured:27017", cfg.Store.MongoURL)
}

func TestApplyFailsOnVaultError(t *testing.T) {
	srv, _ := newVault(t, http.StatusOK, kvResponse)

	cfg := vaultConfig(srv.URL)
	cfg.Vault.Token = "wrong"
	m, err := NewVaultManager(cfg, logger.Discard())
	require.NoError(t, err)

	assert.Error(t, Apply(context.Background(), m, cfg, logger.Discard()))
}

func TestNewVaultManagerRequiresAddressAndToken(t *testing.T) {
	cfg := vaultConfig("")
	_, err := NewVaultManager(cfg, logger.Discard())
	assert.ErrorIs(t, err, ErrNoVaultAddress)

	cfg = vaultConfig("http://127.0.0.1:8200")
	cfg.Vault.Token = ""
	_, err = NewVaultManager(cfg, logger.Discard())
	assert.ErrorIs(t, err, ErrNoVaultToken)
}

func TestEnvManager(t *testing.T) {
	t.Setenv("MONGODB_URL", "mongodb://env:27017")

	v, err := EnvManager{}.GetSecret(context.Background(), "mongodb.url")
	require.NoError(t, err)
	assert.Equal(t, "mongodb://env:27017", v)

	_, err = EnvManager{}.GetSecret(context.Background(), "unset_key_for_test")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}
