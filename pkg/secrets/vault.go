package secrets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"audio-library/backend/pkg/config"
	"audio-library/backend/pkg/logger"

	vault "github.com/hashicorp/vault/api"
)

// Configuration errors
var (
	ErrNoVaultToken   = errors.New("no vault token provided")
	ErrNoVaultAddress = errors.New("no vault address provided")
)

// VaultManager reads one KV v2 secret and falls back to the environment
// for keys it does not hold
type VaultManager struct {
	client   *vault.Client
	mount    string
	path     string
	fallback Manager
	log      *logger.Logger

	mu      sync.Mutex
	data    map[string]any
	fetched time.Time
	ttl     time.Duration
}

// NewVaultManager creates a Vault client from the Vault config section
func NewVaultManager(cfg *config.Config, log *logger.Logger) (*VaultManager, error) {
	vc := cfg.Vault
	if vc.Address == "" {
		return nil, ErrNoVaultAddress
	}
	if vc.Token == "" {
		return nil, ErrNoVaultToken
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = vc.Address
	vaultConfig.Timeout = vc.Timeout
	vaultConfig.MaxRetries = 2

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(vc.Token)
	if vc.Namespace != "" {
		client.SetNamespace(vc.Namespace)
	}

	return &VaultManager{
		client:   client,
		mount:    vc.Mount,
		path:     vc.Path,
		fallback: EnvManager{},
		log:      log.WithComponent("secrets"),
		ttl:      5 * time.Minute,
	}, nil
}

// GetSecret returns key from the Vault secret, else from the environment
func (m *VaultManager) GetSecret(ctx context.Context, key string) (string, error) {
	data, err := m.load(ctx)
	if err != nil {
		return "", err
	}

	if value, ok := data[key].(string); ok {
		return value, nil
	}

	m.log.Debug("Secret not found in Vault, falling back to environment", "key", key)
	return m.fallback.GetSecret(ctx, key)
}

func (m *VaultManager) load(ctx context.Context) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data != nil && time.Since(m.fetched) < m.ttl {
		return m.data, nil
	}

	secret, err := m.client.KVv2(m.mount).Get(ctx, m.path)
	switch {
	case errors.Is(err, vault.ErrSecretNotFound):
		m.log.Warn("Vault secret missing, using environment only", "mount", m.mount, "path", m.path)
		m.data = map[string]any{}
	case err != nil:
		return nil, fmt.Errorf("failed to read secret %s/%s: %w", m.mount, m.path, err)
	default:
		m.data = secret.Data
		if m.data == nil {
			m.data = map[string]any{}
		}
	}

	m.fetched = time.Now()
	return m.data, nil
}
