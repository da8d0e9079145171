package middlewares

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"go.uber.org/zap"

	"olimpiada_backend/internals/configs"
	"olimpiada_backend/internals/helpers/metrics"
	"olimpiada_backend/internals/middlewares/logger"
)

// SetupMiddlewares installs the global chain. Recovery goes first so it also
// covers the other middlewares.
func SetupMiddlewares(app *fiber.App, cfg configs.Config, log *zap.Logger, m *metrics.Metrics) {
	app.Use(RecoveryMiddleware(log))
	app.Use(RequestContext(5 * time.Second))
	app.Use(logger.LoggerMiddleware(log))
	app.Use(HTTPMetrics(m))
	app.Use(compress.New(compress.Config{Level: compress.LevelDefault}))
	app.Use(etag.New())
	app.Use(CorsMiddleware(cfg.CorsOrigins))
	app.Use(GlobalRateLimiter())
}
