package di

import (
	"context"
	"errors"
	"fmt"

	"audio-library/backend/audio/repository"
	"audio-library/backend/audio/service"
	"audio-library/backend/audio/storage"
	"audio-library/backend/pkg/cache"
	"audio-library/backend/pkg/config"
	"audio-library/backend/pkg/health"
	"audio-library/backend/pkg/logger"
	"audio-library/backend/pkg/middleware"
	"audio-library/backend/pkg/resilience"
	"audio-library/backend/pkg/secrets"
	sharedredis "audio-library/backend/shared/redis"

	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// Container holds all the dependencies for the application
type Container struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           *gorm.DB
	Mongo        *mongo.Client
	Redis        *goredis.Client
	Repository   repository.AudioRepository
	Files        *storage.FileStore
	Cache        *cache.Cache
	WindowStore  middleware.WindowStore
	AudioService *service.AudioService
	Health       *health.Checker
}

// New wires the store selected by STORE_DRIVER, the file store, the
// admission backend and the asset service. Index creation runs here.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	if log == nil {
		log = logger.GetGlobal()
	}
	c := &Container{Config: cfg, Logger: log}

	if cfg.Vault.Enabled {
		m, err := secrets.NewVaultManager(cfg, log)
		if err != nil {
			return nil, err
		}
		if err := secrets.Apply(ctx, m, cfg, log); err != nil {
			return nil, err
		}
	}

	if err := c.initRepository(ctx); err != nil {
		c.Close()
		return nil, err
	}

	files, err := storage.New(cfg.Audio.FilesPath)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Files = files

	if cfg.Cache.Enabled {
		c.Cache = cache.New(cfg.Cache.TTL, cfg.Cache.PurgeWindow, cfg.Cache.MaxSize)
	}

	if err := c.initWindowStore(ctx); err != nil {
		c.Close()
		return nil, err
	}

	c.AudioService = service.NewAudioService(
		c.Repository,
		c.Files,
		service.NewValidator(cfg.Audio.MaxFileSize, cfg.Audio.AllowedFormats),
		service.Options{
			BaseURL: cfg.Server.BaseURL,
			Timeout: cfg.Store.Timeout,
			Cache:   c.Cache,
			Logger:  log,
		},
	)

	c.Health = health.NewChecker(log, cfg.Store.Timeout)
	c.Health.RegisterStoreCheck(c.Repository.Ping)
	c.Health.RegisterStorageCheck(c.Files.CheckWritable)
	if bs, ok := c.WindowStore.(*middleware.BreakerWindowStore); ok {
		c.Health.RegisterBreakerCheck("admission_store", bs.Breaker())
	}

	return c, nil
}

func (c *Container) initRepository(ctx context.Context) error {
	cfg := c.Config
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		db, err := config.NewDB(cfg)
		if err != nil {
			return err
		}
		c.DB = db
		repo := repository.NewGormAudioRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate audio schema: %w", err)
		}
		c.Repository = repo
	case config.StoreDriverMongo:
		client, err := config.NewMongoClient(ctx, cfg)
		if err != nil {
			return err
		}
		c.Mongo = client
		repo := repository.NewMongoAudioRepository(client, cfg.Store.MongoDatabase)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("failed to create audio indexes: %w", err)
		}
		c.Repository = repo
	case config.StoreDriverMemory:
		c.Repository = repository.NewMemoryAudioRepository()
	default:
		return fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	c.Logger.Info("asset store ready", "driver", cfg.Store.Driver)
	return nil
}

func (c *Container) initWindowStore(ctx context.Context) error {
	switch c.Config.Security.AdmissionStore {
	case config.AdmissionStoreMemory, "":
		c.WindowStore = middleware.NewMemoryWindowStore()
	case config.AdmissionStoreRedis:
		client, err := sharedredis.NewRedisClient(ctx, c.Config)
		if err != nil {
			return err
		}
		c.Redis = client
		breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             "admission_redis",
			FailureThreshold: uint(max(c.Config.Redis.BreakerThreshold, 1)),
			SuccessThreshold: 1,
			RetryTimeout:     c.Config.Redis.BreakerRetry,
		}, c.Logger)
		c.WindowStore = middleware.NewBreakerWindowStore(middleware.NewRedisWindowStore(client, ""), breaker)
	default:
		return fmt.Errorf("unknown admission store %q", c.Config.Security.AdmissionStore)
	}
	return nil
}

// Close releases every connection the container opened
func (c *Container) Close() error {
	var errs []error
	if c.Cache != nil {
		c.Cache.Close()
	}
	if c.Redis != nil {
		errs = append(errs, c.Redis.Close())
	}
	if c.Mongo != nil {
		errs = append(errs, c.Mongo.Disconnect(context.Background()))
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
