package auth

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"

	helperAuth "olimpiada_backend/internals/helpers/auth"
)

type AuthJWTOpts struct {
	Secret              string
	AllowCookieFallback bool // read the access_token cookie when there is no Bearer header
}

func AuthJWT(o AuthJWTOpts) fiber.Handler {
	secret := strings.TrimSpace(o.Secret)
	if secret == "" {
		panic("AuthJWT: secret is required")
	}

	return func(c *fiber.Ctx) error {
		raw := ""
		if authz := strings.TrimSpace(c.Get(fiber.HeaderAuthorization)); strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			raw = strings.TrimSpace(authz[7:])
		} else if o.AllowCookieFallback {
			raw = strings.TrimSpace(c.Cookies("access_token"))
		}
		if raw == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
		}

		tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !tok.Valid {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
		}

		claims, ok := tok.Claims.(jwt.MapClaims)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid token claims")
		}
		// Parse only checks exp when present; tokens without one are refused
		if !claims.VerifyExpiresAt(time.Now().Unix(), true) {
			return fiber.NewError(fiber.StatusUnauthorized, "Token has no valid expiry")
		}
		c.Locals(helperAuth.LocClaims, claims)

		// user id: id, then sub, then user_id
		for _, k := range []string{"id", "sub", "user_id"} {
			if v := strClaim(claims, k); v != "" {
				c.Locals(helperAuth.LocUserID, v)
				break
			}
		}
		if role := strings.ToLower(strClaim(claims, "role")); role != "" {
			c.Locals(helperAuth.LocRole, role)
		}

		return c.Next()
	}
}

func strClaim(m jwt.MapClaims, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
