package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nuestrovinculo/vinculo/cmd/vinculo/container"
	"github.com/nuestrovinculo/vinculo/cmd/vinculo/migrations"
	"github.com/nuestrovinculo/vinculo/cmd/vinculo/routes"
	"github.com/nuestrovinculo/vinculo/common/bootstrap"
	"github.com/nuestrovinculo/vinculo/common/clients"
	"github.com/nuestrovinculo/vinculo/common/config"
	"github.com/nuestrovinculo/vinculo/common/db"
	"github.com/nuestrovinculo/vinculo/common/logger"
	"github.com/nuestrovinculo/vinculo/common/server"
)

const serviceName = "vinculo"

func main() {
	ctx := context.Background()

	// Bootstrap common components (config, logger, datastores, telemetry)
	components, err := bootstrap.Setup(ctx, serviceName,
		bootstrap.WithDBInitHook(func(ctx context.Context, d *db.DB) error {
			return d.Migrate(ctx, migrations.Up)
		}),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap %s: %v\n", serviceName, err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	serviceContainer, err := container.NewContainer(ctx, components)
	if err != nil {
		components.Logger.Error("failed to initialize service container", "error", err)
		components.Shutdown(ctx)
		os.Exit(1)
	}

	e := setupEcho()
	setupMiddleware(e, components.Config)
	registerRoutes(e, serviceContainer)

	if err := startServer(ctx, e, components); err != nil {
		components.Logger.Error("server error", "error", err)
		components.Shutdown(ctx)
		os.Exit(1)
	}
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo, cfg *config.Config) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		RequestIDHandler: func(c echo.Context, requestID string) {
			ctx := logger.IntoContext(c.Request().Context(), requestID)
			ctx = clients.WithRequestID(ctx, requestID)
			c.SetRequest(c.Request().WithContext(ctx))
		},
	}))
	e.Use(middleware.BodyLimit(cfg.Upload.MaxSize))
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, serviceContainer *container.Container) {
	routes.RegisterHealthRoutes(e, serviceContainer)
	routes.RegisterCardRoutes(e, serviceContainer)
}

// startServer serves until SIGINT/SIGTERM. Read and write windows cover the
// slowest upload the storage network is allowed to take.
func startServer(ctx context.Context, e *echo.Echo, components *bootstrap.Components) error {
	cfg := components.Config
	uploadWindow := cfg.Storage.UploadTimeout + 3*cfg.Storage.CallTimeout + time.Minute

	srv := server.New(serviceName, cfg.Service.Port, e, server.Timeouts{
		Read:     5 * time.Minute,
		Write:    uploadWindow,
		Idle:     server.DefaultTimeouts.Idle,
		Shutdown: server.DefaultTimeouts.Shutdown,
	}, components.Logger)

	return srv.Start(ctx)
}
