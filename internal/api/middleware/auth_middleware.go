package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	config "github.com/postdeckhq/postdeck/configs"
	"github.com/postdeckhq/postdeck/internal/service"
	"github.com/postdeckhq/postdeck/internal/transfer"
	"github.com/postdeckhq/postdeck/pkg/utils"
)

type AuthMiddleware struct {
	keys service.ApiKeyService
	cfg  config.Config
}

func NewAuthMiddleware(cfg config.Config, keys service.ApiKeyService) *AuthMiddleware {
	return &AuthMiddleware{keys: keys, cfg: cfg}
}

// RequireUser resolves the caller from the session cookie or an API key and
// stashes the user id in locals for the handlers.
func (m *AuthMiddleware) RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := c.Get("X-API-Key")
		if apiKey == "" {
			apiKey = c.Query("api_key")
		}

		if apiKey != "" {
			userID, err := m.keys.GetUserID(c.Context(), apiKey)
			if err != nil {
				return unauthorized(c, "invalid api key")
			}
			c.Locals("user_id", strconv.FormatInt(userID, 10))
			return c.Next()
		}

		tokenString := c.Cookies(m.cfg.CookieName)
		if tokenString == "" {
			return unauthorized(c, "missing session")
		}

		claims, err := utils.ValidateToken(m.cfg.SecretKey, tokenString)
		if err != nil {
			c.Cookie(&fiber.Cookie{
				Name:   m.cfg.CookieName,
				Value:  "",
				Path:   "/",
				MaxAge: -1,
			})
			log.Debug().Err(err).Msg("session token rejected")
			return unauthorized(c, "invalid or expired session")
		}

		c.Locals("user_id", claims.UserID)
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"error": fiber.Map{
			"code":    transfer.ErrCodeUnauthorized,
			"message": message,
		},
	})
}
