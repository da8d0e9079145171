package middlewares

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	helper "olimpiada_backend/internals/helpers"
	helperAuth "olimpiada_backend/internals/helpers/auth"
)

// Global limiter for every endpoint.
func GlobalRateLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return helper.JsonError(c, fiber.StatusTooManyRequests, "too many requests, try again later")
		},
	})
}

// OrderCreateRateLimiter is stricter: each order reserves a voucher number.
func OrderCreateRateLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        10,
		Expiration: 5 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			if id, ok := c.Locals(helperAuth.LocUserID).(string); ok && id != "" {
				return "order:" + id
			}
			return "order:" + c.IP()
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Method() != fiber.MethodPost
		},
		LimitReached: func(c *fiber.Ctx) error {
			return helper.JsonError(c, fiber.StatusTooManyRequests, "too many orders created, wait a few minutes")
		},
	})
}
