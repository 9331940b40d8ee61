package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/postdeckhq/postdeck/internal/service"
	"github.com/postdeckhq/postdeck/internal/transfer"
)

type ApiKeyHandler struct {
	s service.ApiKeyService
}

func NewApiKeyHandler(service service.ApiKeyService) *ApiKeyHandler {
	return &ApiKeyHandler{s: service}
}

// CreateApiKey returns the full key once, on creation. Listings carry it too
// since keys are scoped to the owning user anyway.
func (h *ApiKeyHandler) CreateApiKey(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.ApiKeyCreateRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return respondError(c, fiber.StatusBadRequest, transfer.ErrCodeInvalidContent,
			"unable to parse request body", nil)
	}

	key, err := h.s.Create(c.Context(), userID, req.Label)
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, transfer.ErrCodeInvalidContent,
			err.Error(), nil)
	}

	return respondData(c, fiber.StatusOK, key)
}

func (h *ApiKeyHandler) ListKeys(c *fiber.Ctx) error {
	userID := GetUserID(c)

	keys, err := h.s.List(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return respondData(c, fiber.StatusOK, keys)
}

func (h *ApiKeyHandler) RemoveAPIKey(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.ApiKeyRemoveRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, transfer.ErrCodeInvalidContent,
			"unable to parse request body", nil)
	}

	if err := h.s.RemoveAPIKey(c.Context(), userID, req.ID); err != nil {
		return respondError(c, fiber.StatusBadRequest, transfer.ErrCodeInvalidContent,
			err.Error(), nil)
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"deleted": true})
}
