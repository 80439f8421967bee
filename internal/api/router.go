package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postwatcher/internal/api/handlers"
	"github.com/maheshrc27/postwatcher/internal/api/middleware"
	"github.com/rs/zerolog/log"
)

// NewRouter builds the read-only status app.
func NewRouter(secretKey string, status *handlers.StatusHandler) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Get("/health", status.Health)

	authMiddleware := middleware.NewAuthMiddleware(secretKey)
	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())
	api.Get("/status", status.GetStatus)

	return app
}
