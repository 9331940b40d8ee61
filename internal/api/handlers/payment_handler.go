package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/postdeckhq/postdeck/internal/service"
	"github.com/postdeckhq/postdeck/internal/transfer"
)

type PaymentHandler struct {
	s service.SubscriptionService
}

func NewPaymentHandler(service service.SubscriptionService) *PaymentHandler {
	return &PaymentHandler{s: service}
}

// PaymentWebhook handles POST /payment/webhook. The billing provider retries
// on non-2xx, so processing failures return 500 on purpose.
func (h *PaymentHandler) PaymentWebhook(c *fiber.Ctx) error {
	var event transfer.SubscriptionEvent
	if err := c.BodyParser(&event); err != nil {
		log.Warn().Err(err).Msg("unparseable billing webhook body")
		return respondError(c, fiber.StatusBadRequest, transfer.ErrCodeInvalidContent,
			"unable to parse webhook body", nil)
	}

	if err := h.s.HandleSubscription(c.Context(), &event); err != nil {
		log.Error().Err(err).Str("event_id", event.ID).Msg("billing webhook processing failed")
		return respondError(c, fiber.StatusInternalServerError, transfer.ErrCodeInternal,
			"webhook processing failed", nil)
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"received": true})
}
