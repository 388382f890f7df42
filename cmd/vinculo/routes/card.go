package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/nuestrovinculo/vinculo/cmd/vinculo/container"
	"github.com/nuestrovinculo/vinculo/cmd/vinculo/handlers"
)

// RegisterCardRoutes registers card lookup and upload routes
func RegisterCardRoutes(e *echo.Echo, c *container.Container) {
	cardHandler := handlers.NewCardHandler(c.Components, c.CardService, c.Spool)

	cards := e.Group("/card")
	{
		cards.GET("/:cardId", cardHandler.GetCard)             // GET /card/{card_id}
		cards.POST("/:cardId/upload", cardHandler.UploadVideo) // POST /card/{card_id}/upload
	}
}

// RegisterHealthRoutes registers liveness and readiness probes
func RegisterHealthRoutes(e *echo.Echo, c *container.Container) {
	healthHandler := handlers.NewHealthHandler(c.Components.Config.Service.Name, c.CardStore, c.Components)

	e.GET("/health", healthHandler.Health)
	e.GET("/ready", healthHandler.Ready)
}
