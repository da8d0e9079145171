package middlewares

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/utils"
)

const LocRequestID = "reqid"

// RequestContext tags the request with an id and bounds its context. The
// timeout sits above the database statement_timeout.
func RequestContext(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(fiber.HeaderXRequestID)
		if id == "" {
			id = utils.UUID()
		}
		c.Set(fiber.HeaderXRequestID, id)
		c.Locals(LocRequestID, id)

		ctx, cancel := context.WithTimeout(c.Context(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func RequestID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocRequestID).(string)
	return id
}
