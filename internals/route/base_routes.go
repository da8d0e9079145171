package routes

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	database "olimpiada_backend/internals/databases"
)

func BaseRoutes(app *fiber.App, db *gorm.DB, gatherer prometheus.Gatherer, env string) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("olimpiada backend is running")
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		dbStatus := "connected"
		serverStatus := "OK"
		httpStatus := fiber.StatusOK
		if err := database.Ping(ctx, db); err != nil {
			dbStatus = "database connection error"
			serverStatus = "DOWN"
			httpStatus = fiber.StatusServiceUnavailable
		}

		return c.Status(httpStatus).JSON(fiber.Map{
			"status":         serverStatus,
			"database":       dbStatus,
			"server_time":    time.Now().Format(time.RFC3339),
			"uptime_seconds": int(time.Since(startTime).Seconds()),
			"environment":    env,
		})
	})
}
