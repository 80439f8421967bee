package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postwatcher/pkg/utils"
	"github.com/rs/zerolog/log"
)

type AuthMiddleware struct {
	secretKey string
}

func NewAuthMiddleware(secretKey string) *AuthMiddleware {
	return &AuthMiddleware{secretKey: secretKey}
}

// AuthMiddleware accepts a bearer token in the Authorization header or a
// token query parameter. With no secret configured every request passes.
func (m *AuthMiddleware) AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m.secretKey == "" {
			return c.Next()
		}

		tokenString := strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing token",
			})
		}

		claims, err := utils.ValidateToken(m.secretKey, tokenString)
		if err != nil {
			log.Warn().Err(err).Str("ip", c.IP()).Msg("Token validation failed")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals("operator", claims.Operator)
		return c.Next()
	}
}
