package middlewares

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// RecoveryMiddleware turns a panic into a 500 and logs it with the stack.
func RecoveryMiddleware(log *zap.Logger) fiber.Handler {
	return recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			log.Error("panic recovered",
				zap.String("request_id", RequestID(c)),
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("panic", fmt.Sprint(e)),
				zap.Stack("stack"),
			)
		},
	})
}
