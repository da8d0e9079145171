package auth

import (
	"github.com/gofiber/fiber/v2"

	helperAuth "olimpiada_backend/internals/helpers/auth"
)

// RoleMiddlewareWithCustomError rejects requests whose token role is not in allowedRoles.
func RoleMiddlewareWithCustomError(allowedRoles []string, customForbiddenMessage string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role := helperAuth.GetRole(c)
		if role == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized: missing role information")
		}
		for _, allowed := range allowedRoles {
			if role == allowed {
				return c.Next()
			}
		}
		if customForbiddenMessage == "" {
			customForbiddenMessage = "Forbidden: you are not authorized to access this resource"
		}
		return fiber.NewError(fiber.StatusForbidden, customForbiddenMessage)
	}
}

func OnlyRoles(customMessage string, roles ...string) fiber.Handler {
	return RoleMiddlewareWithCustomError(roles, customMessage)
}
