package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"

	config "github.com/postdeckhq/postdeck/configs"
	"github.com/postdeckhq/postdeck/internal/service"
	"github.com/postdeckhq/postdeck/internal/transfer"
)

const (
	oauthStateCookie = "oauth_state"
	sessionTTL       = 7 * 24 * time.Hour
)

type AuthHandler struct {
	s   service.AuthService
	cfg config.Config
}

func NewAuthHandler(cfg config.Config, service service.AuthService) *AuthHandler {
	return &AuthHandler{s: service, cfg: cfg}
}

// Login handles GET /login, sending the browser to Google's consent screen.
// The random state round-trips through a short-lived cookie.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	state, err := gonanoid.New()
	if err != nil {
		return respondServiceError(c, err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
	})

	return c.Redirect(h.s.LoginURL(state))
}

// LoginCallback handles GET /login/callback: verify state, exchange the code,
// set the session cookie, send the user to the dashboard.
func (h *AuthHandler) LoginCallback(c *fiber.Ctx) error {
	state := c.Query("state")
	if state == "" || state != c.Cookies(oauthStateCookie) {
		return respondError(c, fiber.StatusBadRequest, transfer.ErrCodeUnauthorized,
			"oauth state mismatch", nil)
	}

	token, err := h.s.LoginCallback(c.Context(), c.Query("code"))
	if err != nil {
		log.Error().Err(err).Msg("google login failed")
		return respondError(c, fiber.StatusBadRequest, transfer.ErrCodeUnauthorized,
			"login failed", nil)
	}

	c.Cookie(&fiber.Cookie{
		Name:   oauthStateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	c.Cookie(&fiber.Cookie{
		Name:     h.cfg.CookieName,
		Value:    token,
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteNoneMode,
		Path:     "/",
		Expires:  time.Now().Add(sessionTTL),
	})

	return c.Redirect(h.cfg.FrontendURL, fiber.StatusTemporaryRedirect)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:   h.cfg.CookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	return respondData(c, fiber.StatusOK, fiber.Map{"logged_out": true})
}
