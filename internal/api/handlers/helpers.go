package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/postdeckhq/postdeck/internal/service"
	"github.com/postdeckhq/postdeck/internal/transfer"
)

// GetUserID returns the authenticated user's id stashed by the auth
// middleware. Routes behind the middleware always have it set.
func GetUserID(c *fiber.Ctx) int64 {
	raw, _ := c.Locals("user_id").(string)
	userID, _ := strconv.ParseInt(raw, 10, 64)
	return userID
}

func respondData(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func respondError(c *fiber.Ctx, status int, code, message string, details any) error {
	body := fiber.Map{
		"code":    code,
		"message": message,
	}
	if details != nil {
		body["details"] = details
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   body,
	})
}

// respondServiceError maps domain errors onto the API error codes. Anything
// unrecognized becomes a 500 with a generic message so internals never leak.
func respondServiceError(c *fiber.Ctx, err error) error {
	var invalid *service.InvalidContentError
	if errors.As(err, &invalid) {
		return respondError(c, fiber.StatusBadRequest, transfer.ErrCodeInvalidContent,
			"post content failed validation", invalid.Violations)
	}

	var notConnected *service.NotConnectedError
	if errors.As(err, &notConnected) {
		return respondError(c, fiber.StatusBadRequest, transfer.ErrCodePlatformNotConnected,
			notConnected.Error(), fiber.Map{"platforms": notConnected.Platforms})
	}

	if errors.Is(err, service.ErrPostNotFound) {
		return respondError(c, fiber.StatusNotFound, transfer.ErrCodeNotFound,
			"post not found", nil)
	}

	log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	return respondError(c, fiber.StatusInternalServerError, transfer.ErrCodeInternal,
		"something went wrong", nil)
}
