package handlers

import (
	"github.com/gofiber/fiber/v2"

	config "github.com/postdeckhq/postdeck/configs"
	"github.com/postdeckhq/postdeck/internal/service"
)

type UserHandler struct {
	s   service.UserService
	cfg config.Config
}

func NewUserHandler(cfg config.Config, service service.UserService) *UserHandler {
	return &UserHandler{s: service, cfg: cfg}
}

func (h *UserHandler) GetUserInfo(c *fiber.Ctx) error {
	userID := GetUserID(c)

	user, err := h.s.GetUserInfo(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return respondData(c, fiber.StatusOK, user)
}

// RemoveUser deletes the account and ends the session.
func (h *UserHandler) RemoveUser(c *fiber.Ctx) error {
	userID := GetUserID(c)

	if err := h.s.RemoveUser(c.Context(), userID); err != nil {
		return respondServiceError(c, err)
	}

	c.Cookie(&fiber.Cookie{
		Name:   h.cfg.CookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	return respondData(c, fiber.StatusOK, fiber.Map{"deleted": true})
}
