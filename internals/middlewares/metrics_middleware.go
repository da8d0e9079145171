package middlewares

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"olimpiada_backend/internals/helpers/metrics"
)

// HTTPMetrics records count and latency per route template, not per raw path.
func HTTPMetrics(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		route := c.Route().Path
		if route == "" || (route == "/" && c.Path() != "/") {
			route = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}
