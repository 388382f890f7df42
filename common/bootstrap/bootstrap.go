package bootstrap

import (
	"context"
	"fmt"

	"github.com/nuestrovinculo/vinculo/common/cache"
	"github.com/nuestrovinculo/vinculo/common/config"
	"github.com/nuestrovinculo/vinculo/common/db"
	"github.com/nuestrovinculo/vinculo/common/logger"
	"github.com/nuestrovinculo/vinculo/common/redis"
	"github.com/nuestrovinculo/vinculo/common/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Setup initializes all service components.
// Only the datastores the configuration selects are connected.
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{
		cleanupFuncs: make([]func() error, 0),
	}

	// 1. Load configuration
	var err error
	if options.customConfig != nil {
		components.Config = options.customConfig
		if err := components.Config.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	} else {
		components.Config, err = config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	cfg := components.Config

	// 2. Initialize logger
	if options.customLogger != nil {
		components.Logger = options.customLogger
	} else {
		components.Logger = logger.New(cfg.Service.LogLevel, cfg.Service.LogFormat)
	}

	components.Logger.Info("initializing service",
		"service", serviceName,
		"environment", cfg.Service.Environment,
		"card_store", cfg.Cards.Store,
		"storage_backend", cfg.Storage.Backend,
	)

	// 3. Initialize database when cards live in Postgres
	if cfg.Cards.Store == "postgres" {
		components.Logger.Info("connecting to database")
		components.DB, err = db.New(ctx, cfg, components.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		components.addCleanup(func() error {
			components.DB.Close()
			return nil
		})

		if options.dbInitHook != nil && cfg.Database.RunMigrations {
			components.Logger.Info("running database init hook")
			if err := options.dbInitHook(ctx, components.DB); err != nil {
				components.Shutdown(ctx)
				return nil, fmt.Errorf("database init hook failed: %w", err)
			}
		}
	}

	// 4. Initialize Redis when the card store or the cache needs it
	if !options.skipRedis && cfg.UsesRedis() {
		components.Redis, err = redis.Connect(ctx, redis.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, components.Logger)
		if err != nil {
			components.Shutdown(ctx)
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		components.addCleanup(func() error {
			components.Logger.Info("closing redis connection")
			return components.Redis.Close()
		})
	}

	// 5. Initialize cache
	if cfg.Cache.Enabled {
		components.Logger.Info("initializing cache",
			"backend", cfg.Cache.Backend,
			"size", cfg.Cache.Size,
			"ttl", cfg.Cache.DefaultTTL,
		)

		switch cfg.Cache.Backend {
		case "redis":
			if components.Redis == nil {
				components.Shutdown(ctx)
				return nil, fmt.Errorf("redis cache selected but redis is not connected")
			}
			components.Cache = cache.NewRedisCache(components.Redis, serviceName+":cache:")
		default:
			components.Cache = cache.NewMemoryCache(cfg.Cache.Size, cfg.Cache.DefaultTTL, components.Logger)
		}

		components.addCleanup(func() error {
			return components.Cache.Close()
		})
	}

	// 6. Metrics registry, shared by the observers and the /metrics listener
	registry := options.registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	components.Registry = registry

	// 7. Initialize telemetry
	if !options.skipTelemetry && (cfg.Telemetry.EnablePprof || cfg.Telemetry.EnableMetrics) {
		pprofPort, metricsPort := 0, 0
		if cfg.Telemetry.EnablePprof {
			pprofPort = cfg.Telemetry.PprofPort
		}
		if cfg.Telemetry.EnableMetrics {
			metricsPort = cfg.Telemetry.MetricsPort
		}

		components.Logger.Info("initializing telemetry", "pprof_port", pprofPort, "metrics_port", metricsPort)
		components.Telemetry = telemetry.New(pprofPort, metricsPort, registry, components.Logger)

		if err := components.Telemetry.Start(ctx); err != nil {
			// Don't fail startup if telemetry fails
			components.Logger.Warn("failed to start telemetry", "error", err)
		}
		components.addCleanup(func() error {
			return components.Telemetry.Shutdown(context.Background())
		})
	}

	components.Logger.Info("service initialization complete",
		"service", serviceName,
		"db", components.DB != nil,
		"redis", components.Redis != nil,
		"cache", components.Cache != nil,
		"telemetry", components.Telemetry != nil,
	)

	return components, nil
}
