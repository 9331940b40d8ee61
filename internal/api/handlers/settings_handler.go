package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/postdeckhq/postdeck/internal/service"
	"github.com/postdeckhq/postdeck/internal/transfer"
)

type SettingsHandler struct {
	s service.SettingsService
}

func NewSettingsHandler(service service.SettingsService) *SettingsHandler {
	return &SettingsHandler{s: service}
}

func (h *SettingsHandler) GetSettings(c *fiber.Ctx) error {
	userID := GetUserID(c)

	settings, err := h.s.Get(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return respondData(c, fiber.StatusOK, settings)
}

func (h *SettingsHandler) UpdateSettings(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.SettingsUpdate
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, transfer.ErrCodeInvalidContent,
			"unable to parse request body", nil)
	}

	settings, err := h.s.Update(c.Context(), userID, req.DefaultPrivacyLevel, req.DefaultHashtags)
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, transfer.ErrCodeInvalidContent,
			err.Error(), nil)
	}

	return respondData(c, fiber.StatusOK, settings)
}
