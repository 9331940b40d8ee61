package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	config "github.com/postdeckhq/postdeck/configs"
	"github.com/postdeckhq/postdeck/internal/platforms"
	"github.com/postdeckhq/postdeck/internal/service"
	"github.com/postdeckhq/postdeck/internal/transfer"
)

type PlatformHandler struct {
	ps  service.PlatformService
	rs  service.RefreshService
	cfg config.Config
}

func NewPlatformHandler(cfg config.Config, ps service.PlatformService, rs service.RefreshService) *PlatformHandler {
	return &PlatformHandler{
		ps:  ps,
		rs:  rs,
		cfg: cfg,
	}
}

// Connect handles GET /connect/:platform, redirecting the browser to the
// platform's consent screen with a signed state token.
func (h *PlatformHandler) Connect(c *fiber.Ctx) error {
	userID := GetUserID(c)

	platform, err := platforms.Parse(c.Params("platform"))
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, transfer.ErrCodeInvalidContent,
			err.Error(), nil)
	}

	authURL, err := h.ps.GetAuthURL(c.Context(), userID, platform)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Redirect(authURL)
}

// Callback handles GET /connect/:platform/callback. The user arrives here
// from the consent screen; the state token carries their identity, so this
// route sits outside the auth middleware.
func (h *PlatformHandler) Callback(c *fiber.Ctx) error {
	platform, err := platforms.Parse(c.Params("platform"))
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, transfer.ErrCodeInvalidContent,
			err.Error(), nil)
	}

	code := c.Query("code")
	if code == "" {
		// TikTok Business sends auth_code instead of code.
		code = c.Query("auth_code")
	}

	params := &service.CallbackParams{
		Code:         code,
		State:        c.Query("state"),
		AdvertiserID: c.Query("advertiser_id"),
	}

	if _, err := h.ps.HandleCallback(c.Context(), platform, params); err != nil {
		log.Error().Err(err).Str("platform", platform.String()).Msg("oauth callback failed")
		return respondError(c, fiber.StatusBadRequest, transfer.ErrCodeInvalidContent,
			"could not connect the account", nil)
	}

	return c.Redirect(h.cfg.FrontendURL+"/dashboard/accounts", fiber.StatusTemporaryRedirect)
}

func (h *PlatformHandler) ListAccounts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	accounts, err := h.ps.List(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return respondData(c, fiber.StatusOK, accounts)
}

func (h *PlatformHandler) RemoveAccount(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.RemoveAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, transfer.ErrCodeInvalidContent,
			"unable to parse request body", nil)
	}

	platform, err := platforms.Parse(req.Platform)
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, transfer.ErrCodeInvalidContent,
			err.Error(), nil)
	}

	if err := h.ps.Disconnect(c.Context(), userID, platform); err != nil {
		return respondServiceError(c, err)
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"disconnected": platform.String()})
}

// RefreshAccounts handles POST /accounts/refresh, forcing a token refresh
// sweep over the caller's connected platforms.
func (h *PlatformHandler) RefreshAccounts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	report, err := h.rs.RefreshAllForUser(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return respondData(c, fiber.StatusOK, report)
}
