package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"
)

// Admission backends
const (
	AdmissionStoreMemory = "memory"
	AdmissionStoreRedis  = "redis"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port         string
		Env          string
		BaseURL      string
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
		// APIValidation checks requests against the OpenAPI document
		APIValidation bool
	}

	// Database configuration (postgres driver)
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
	}

	// Store selection and the mongo driver settings
	Store struct {
		Driver        string
		Timeout       time.Duration
		MongoURL      string
		MongoDatabase string
	}

	// Audio asset settings
	Audio struct {
		FilesPath      string
		MaxFileSize    int64
		AllowedFormats []string
	}

	// Security configuration
	Security struct {
		AllowedOrigins  []string
		// TrustedProxies may set X-Forwarded-For; empty keys clients on the socket address
		TrustedProxies  []string
		MaxRequestSize  int64
		RequestLimit    int
		RequestWindow   time.Duration
		AdmissionStore  string
		BlockTTL        time.Duration
		LanguagesLimit  int
		GetByLangLimit  int
		UploadLimit     int
		RouteLimitSpan  time.Duration
		LimiterIdleTime time.Duration
	}

	// Redis configuration (admission backend)
	Redis struct {
		Addr     string
		Password string
		DB       int
		Timeout  time.Duration
		// Consecutive failures that open the admission circuit breaker
		BreakerThreshold int
		BreakerRetry     time.Duration
	}

	// Vault supplies store credentials when enabled
	Vault struct {
		Enabled   bool
		Address   string
		Token     string
		Namespace string
		Mount     string
		Path      string
		Timeout   time.Duration
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Telemetry exporters
	Telemetry struct {
		ServiceName    string
		TracesExporter string
	}

	// Cache settings
	Cache struct {
		Enabled     bool
		TTL         time.Duration
		MaxSize     int
		PurgeWindow time.Duration
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates the singleton Config instance from environment variables
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		_ = godotenv.Load()
		instance = Load()
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Load builds a fresh Config from the current environment
func Load() *Config {
	cfg := &Config{}

	// Server config
	cfg.Server.Port = getEnvString("PORT", "8000")
	cfg.Server.Env = getEnvString("APP_ENV", "development")
	cfg.Server.BaseURL = strings.TrimSuffix(getEnvString("BASE_URL", "http://localhost:"+cfg.Server.Port), "/")
	cfg.Server.ReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second)
	cfg.Server.WriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second)
	cfg.Server.APIValidation = getEnvBool("API_VALIDATION", true)

	// Database config
	cfg.Database.Host = getEnvString("DB_HOST", "localhost")
	cfg.Database.Port = getEnvString("DB_PORT", "5432")
	cfg.Database.User = getEnvString("DB_USER", "postgres")
	cfg.Database.Password = getEnvString("DB_PASSWORD", "postgres")
	cfg.Database.Name = getEnvString("DB_NAME", "audio_library")
	cfg.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)

	// Store config
	cfg.Store.Driver = strings.ToLower(getEnvString("STORE_DRIVER", StoreDriverPostgres))
	cfg.Store.Timeout = getEnvDuration("STORE_TIMEOUT", 5*time.Second)
	cfg.Store.MongoURL = getEnvString("MONGODB_URL", "mongodb://localhost:27017")
	cfg.Store.MongoDatabase = getEnvString("MONGODB_DATABASE", "audio_library")

	// Audio config
	cfg.Audio.FilesPath = getEnvString("AUDIO_FILES_PATH", "./audio_files")
	cfg.Audio.MaxFileSize = getEnvInt64("MAX_FILE_SIZE", 10<<20) // 10MB
	cfg.Audio.AllowedFormats = getEnvStringSlice("ALLOWED_AUDIO_FORMATS", []string{"mp3", "wav", "m4a"})

	// Security config
	cfg.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://127.0.0.1:3000"})
	cfg.Security.TrustedProxies = getEnvStringSlice("TRUSTED_PROXIES", []string{})
	cfg.Security.MaxRequestSize = getEnvInt64("MAX_REQUEST_SIZE", cfg.Audio.MaxFileSize+(1<<20))
	cfg.Security.RequestLimit = getEnvInt("RATE_LIMIT_THRESHOLD", 100)
	cfg.Security.RequestWindow = getEnvDuration("RATE_LIMIT_WINDOW", time.Minute)
	cfg.Security.AdmissionStore = strings.ToLower(getEnvString("ADMISSION_STORE", AdmissionStoreMemory))
	cfg.Security.BlockTTL = getEnvDuration("ADMISSION_BLOCK_TTL", 0)
	cfg.Security.LanguagesLimit = getEnvInt("RATE_LIMIT_LANGUAGES", 30)
	cfg.Security.GetByLangLimit = getEnvInt("RATE_LIMIT_GET_BY_LANGUAGE", 60)
	cfg.Security.UploadLimit = getEnvInt("RATE_LIMIT_UPLOAD", 10)
	cfg.Security.RouteLimitSpan = getEnvDuration("RATE_LIMIT_ROUTE_WINDOW", time.Minute)
	cfg.Security.LimiterIdleTime = getEnvDuration("RATE_LIMIT_IDLE_EXPIRY", time.Hour)

	// Redis config
	cfg.Redis.Addr = getEnvString("REDIS_URL", "localhost:6379")
	cfg.Redis.Password = getEnvString("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)
	cfg.Redis.Timeout = getEnvDuration("REDIS_TIMEOUT", 2*time.Second)
	cfg.Redis.BreakerThreshold = getEnvInt("REDIS_BREAKER_THRESHOLD", 5)
	cfg.Redis.BreakerRetry = getEnvDuration("REDIS_BREAKER_RETRY", 30*time.Second)

	// Vault config
	cfg.Vault.Enabled = getEnvBool("VAULT_ENABLED", false)
	cfg.Vault.Address = getEnvString("VAULT_ADDR", "")
	cfg.Vault.Token = getEnvString("VAULT_TOKEN", "")
	cfg.Vault.Namespace = getEnvString("VAULT_NAMESPACE", "")
	cfg.Vault.Mount = getEnvString("VAULT_MOUNT", "secret")
	cfg.Vault.Path = getEnvString("VAULT_SECRETS_PATH", "audio-library")
	cfg.Vault.Timeout = getEnvDuration("VAULT_TIMEOUT", 10*time.Second)

	// Logging config
	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "json")

	// Telemetry config
	cfg.Telemetry.ServiceName = getEnvString("OTEL_SERVICE_NAME", "audio-library")
	cfg.Telemetry.TracesExporter = strings.ToLower(getEnvString("OTEL_TRACES_EXPORTER", "none"))

	// Cache settings
	cfg.Cache.Enabled = getEnvBool("CACHE_ENABLED", true)
	cfg.Cache.TTL = getEnvDuration("CACHE_TTL", 30*time.Second)
	cfg.Cache.MaxSize = getEnvInt("CACHE_MAX_SIZE", 128)
	cfg.Cache.PurgeWindow = getEnvDuration("CACHE_PURGE_WINDOW", time.Minute)

	return cfg
}

// IsProduction reports whether the service runs with APP_ENV=production
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
