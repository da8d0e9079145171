package helper

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Locals hydrated by the JWT middleware.
const (
	LocRole   = "role"
	LocUserID = "user_id"
	LocClaims = "jwt_claims"
)

func GetUserIDFromToken(c *fiber.Ctx) (uuid.UUID, error) {
	s, _ := c.Locals(LocUserID).(string)
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "user id missing from token")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "user id in token is not a uuid")
	}
	return id, nil
}

func GetRole(c *fiber.Ctx) string {
	s, _ := c.Locals(LocRole).(string)
	return strings.ToLower(strings.TrimSpace(s))
}

func IsAdmin(c *fiber.Ctx) bool {
	return GetRole(c) == "admin"
}
