package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger reports whether a dependency answers
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker reports whether shared infrastructure (database, Redis) answers
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	service string
	store   Pinger
	deps    HealthChecker
}

// NewHealthHandler creates a health handler. The readiness probe checks the
// card store and, when deps is not nil, every connected datastore.
func NewHealthHandler(service string, store Pinger, deps HealthChecker) *HealthHandler {
	return &HealthHandler{service: service, store: store, deps: deps}
}

// Health reports the process is up
// GET /health
func (h *HealthHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"service": h.service,
	})
}

// Ready reports whether the card store and its datastores answer
// GET /ready
func (h *HealthHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		return unavailable(c, err)
	}
	if h.deps != nil {
		if err := h.deps.Health(ctx); err != nil {
			return unavailable(c, err)
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

func unavailable(c echo.Context, err error) error {
	return c.JSON(http.StatusServiceUnavailable, map[string]string{
		"status": "unavailable",
		"error":  err.Error(),
	})
}
