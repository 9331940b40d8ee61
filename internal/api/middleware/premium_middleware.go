package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/postdeckhq/postdeck/internal/service"
	"github.com/postdeckhq/postdeck/internal/transfer"
)

type PremiumMiddleware struct {
	subs service.SubscriptionService
}

func NewPremiumMiddleware(subs service.SubscriptionService) *PremiumMiddleware {
	return &PremiumMiddleware{subs: subs}
}

// RequirePremium gates publishing behind an active subscription. Must run
// after RequireUser.
func (m *PremiumMiddleware) RequirePremium() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, _ := c.Locals("user_id").(string)
		userID, _ := strconv.ParseInt(raw, 10, 64)

		premium, err := m.subs.IsPremium(c.Context(), userID)
		if err != nil {
			log.Error().Err(err).Int64("user_id", userID).Msg("premium check failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error": fiber.Map{
					"code":    transfer.ErrCodeInternal,
					"message": "something went wrong",
				},
			})
		}

		if !premium {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"error": fiber.Map{
					"code":    transfer.ErrCodePremiumRequired,
					"message": "an active subscription is required to publish",
				},
			})
		}

		return c.Next()
	}
}
