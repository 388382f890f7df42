package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrConfigurationMissing is returned when a required setting is absent
var ErrConfigurationMissing = errors.New("configuration missing")

// MissingError names the environment variable that was not set
type MissingError struct {
	Key string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("configuration missing: %s is not set", e.Key)
}

// Is lets errors.Is(err, ErrConfigurationMissing) match
func (e *MissingError) Is(target error) bool {
	return target == ErrConfigurationMissing
}

// Missing builds a MissingError for key
func Missing(key string) error {
	return &MissingError{Key: key}
}

// Config holds all service configuration
type Config struct {
	Service   ServiceConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Cards     CardConfig
	Storage   StorageConfig
	Upload    UploadConfig
	Telemetry TelemetryConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	URL           string // DATABASE_URL overrides the discrete fields
	Host          string
	Port          int
	Database      string
	User          string
	Password      string
	MaxConns      int
	MinConns      int
	MaxIdleTime   time.Duration
	MaxLifetime   time.Duration
	RunMigrations bool
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig holds card lookup cache settings
type CacheConfig struct {
	Enabled    bool
	Backend    string // "memory" or "redis"
	Size       int
	DefaultTTL time.Duration
}

// CardConfig selects the card store and its defaults
type CardConfig struct {
	Store                  string // "postgres", "redis" or "memory"
	DefaultInitialVideoURL string
	SeedFixtures           bool
}

// StorageConfig holds storage network settings
type StorageConfig struct {
	Backend              string // "bundler", "s3" or "memory"
	GatewayURL           string
	CallTimeout          time.Duration
	UploadTimeout        time.Duration
	FundingMarginPercent int

	// bundler
	NodeURL    string
	Currency   string
	PrivateKey string
	RPCURL     string

	// s3
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3AccessKey    string
	S3SecretKey    string

	// memory
	MemoryPricePerByte int64
	MemoryBalance      int64
}

// UploadConfig holds multipart spooling settings
type UploadConfig struct {
	Dir     string
	MaxSize string // echo body limit syntax, e.g. "100M"
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof   bool
	PprofPort     int
	EnableMetrics bool
	MetricsPort   int
}

const (
	defaultInitialVideoURL = "https://nuestrovinculoespecial-gif.github.io/nuestraweb/comunionvideo.mp4"
	defaultGatewayURL      = "https://arweave.net"
	defaultNodeURL         = "https://node1.bundlr.network"
)

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 3000),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
		},
		Database: DatabaseConfig{
			URL:           getEnv("DATABASE_URL", ""),
			Host:          getEnv("POSTGRES_HOST", "localhost"),
			Port:          getEnvInt("POSTGRES_PORT", 5432),
			Database:      getEnv("POSTGRES_DB", "vinculo"),
			User:          getEnv("POSTGRES_USER", "vinculo"),
			Password:      getEnv("POSTGRES_PASSWORD", "vinculo"),
			MaxConns:      getEnvInt("POSTGRES_MAX_CONNS", 10),
			MinConns:      getEnvInt("POSTGRES_MIN_CONNS", 1),
			MaxIdleTime:   getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime:   getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
			RunMigrations: getEnvBool("RUN_MIGRATIONS", true),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			Enabled:    getEnvBool("CACHE_ENABLED", false),
			Backend:    getEnv("CACHE_BACKEND", "memory"),
			Size:       getEnvInt("CACHE_SIZE", 10000),
			DefaultTTL: getEnvDuration("CACHE_DEFAULT_TTL", 5*time.Minute),
		},
		Cards: CardConfig{
			Store:                  getEnv("CARD_STORE", "postgres"),
			DefaultInitialVideoURL: getEnv("DEFAULT_INITIAL_VIDEO_URL", defaultInitialVideoURL),
			SeedFixtures:           getEnvBool("SEED_FIXTURES", true),
		},
		Storage: StorageConfig{
			Backend:              getEnv("STORAGE_BACKEND", "bundler"),
			GatewayURL:           getEnv("STORAGE_GATEWAY_URL", defaultGatewayURL),
			CallTimeout:          getEnvDuration("STORAGE_CALL_TIMEOUT", 60*time.Second),
			UploadTimeout:        getEnvDuration("STORAGE_UPLOAD_TIMEOUT", 10*time.Minute),
			FundingMarginPercent: getEnvInt("FUNDING_MARGIN_PERCENT", 10),
			NodeURL:              getEnv("BUNDLER_NODE_URL", defaultNodeURL),
			Currency:             getEnv("BUNDLER_CURRENCY", "matic"),
			PrivateKey:           getEnv("PRIVATE_KEY", ""),
			RPCURL:               getEnvFirst([]string{"POLYGON_RPC_URL", "RPC_URL"}, ""),
			S3Bucket:             getEnv("S3_BUCKET", ""),
			S3Region:             getEnv("S3_REGION", "us-east-1"),
			S3BaseEndpoint:       getEnv("S3_BASE_ENDPOINT", ""),
			S3AccessKey:          getEnv("S3_ACCESS_KEY", ""),
			S3SecretKey:          getEnv("S3_SECRET_KEY", ""),
			MemoryPricePerByte:   getEnvInt64("MEMORY_STORAGE_PRICE_PER_BYTE", 1),
			MemoryBalance:        getEnvInt64("MEMORY_STORAGE_BALANCE", 0),
		},
		Upload: UploadConfig{
			Dir:     getEnv("UPLOAD_DIR", os.TempDir()),
			MaxSize: getEnv("MAX_UPLOAD_SIZE", "100M"),
		},
		Telemetry: TelemetryConfig{
			EnablePprof:   getEnvBool("ENABLE_PPROF", false),
			PprofPort:     getEnvInt("PPROF_PORT", 6060),
			EnableMetrics: getEnvBool("ENABLE_METRICS", true),
			MetricsPort:   getEnvInt("METRICS_PORT", 9090),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks settings that must be right before the service can start.
// Storage network credentials are checked later by StorageCredentials so the
// read path keeps working without them.
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	switch c.Cards.Store {
	case "postgres":
		if c.Database.URL == "" && c.Database.Host == "" {
			return Missing("POSTGRES_HOST")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			return fmt.Errorf("max_conns must be >= min_conns")
		}
	case "redis":
		if c.Redis.Host == "" {
			return Missing("REDIS_HOST")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown card store: %s", c.Cards.Store)
	}

	if c.Cache.Enabled {
		switch c.Cache.Backend {
		case "memory", "redis":
		default:
			return fmt.Errorf("unknown cache backend: %s", c.Cache.Backend)
		}
		if c.Cache.Size <= 0 {
			return fmt.Errorf("invalid cache size: %d", c.Cache.Size)
		}
	}

	switch c.Storage.Backend {
	case "bundler", "s3", "memory":
	default:
		return fmt.Errorf("unknown storage backend: %s", c.Storage.Backend)
	}

	if c.Storage.FundingMarginPercent < 0 {
		return fmt.Errorf("invalid funding margin: %d", c.Storage.FundingMarginPercent)
	}

	if c.Cards.DefaultInitialVideoURL == "" {
		c.Cards.DefaultInitialVideoURL = defaultInitialVideoURL
	}

	return nil
}

// StorageCredentials reports the first credential the selected storage
// backend needs but does not have. POLYGON_RPC_URL is only needed to fund
// the bundler account, so its absence is reported when funding is attempted.
func (c *Config) StorageCredentials() error {
	switch c.Storage.Backend {
	case "bundler":
		if c.Storage.PrivateKey == "" {
			return Missing("PRIVATE_KEY")
		}
	case "s3":
		if c.Storage.S3Bucket == "" {
			return Missing("S3_BUCKET")
		}
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// RedisAddr returns host:port for the Redis client
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// UsesRedis reports whether any component needs a Redis connection
func (c *Config) UsesRedis() bool {
	return c.Cards.Store == "redis" || (c.Cache.Enabled && c.Cache.Backend == "redis")
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFirst(keys []string, defaultValue string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
