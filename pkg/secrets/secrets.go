package secrets

import (
	"context"
	"errors"
	"os"
	"strings"

	"audio-library/backend/pkg/config"
	"audio-library/backend/pkg/logger"
)

// Secret keys understood by Apply
const (
	KeyDBPassword    = "db_password"
	KeyMongoURL      = "mongodb_url"
	KeyRedisPassword = "redis_password"
)

// ErrSecretNotFound is returned when no source holds the key
var ErrSecretNotFound = errors.New("secret not found")

// Manager provides access to secrets from various sources
type Manager interface {
	// GetSecret retrieves a secret by key
	GetSecret(ctx context.Context, key string) (string, error)
}

// EnvManager reads secrets from environment variables, db_password -> DB_PASSWORD
type EnvManager struct{}

func (EnvManager) GetSecret(_ context.Context, key string) (string, error) {
	envKey := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))
	if value := os.Getenv(envKey); value != "" {
		return value, nil
	}
	return "", ErrSecretNotFound
}

// Apply overwrites the store credentials in cfg with values found in m.
// Missing keys keep the configured value; any other error aborts.
func Apply(ctx context.Context, m Manager, cfg *config.Config, log *logger.Logger) error {
	targets := []struct {
		key string
		dst *string
	}{
		{KeyDBPassword, &cfg.Database.Password},
		{KeyMongoURL, &cfg.Store.MongoURL},
		{KeyRedisPassword, &cfg.Redis.Password},
	}

	for _, t := range targets {
		value, err := m.GetSecret(ctx, t.key)
		if errors.Is(err, ErrSecretNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		*t.dst = value
		log.Info("Secret applied", "key", t.key)
	}
	return nil
}
