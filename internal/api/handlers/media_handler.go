package handlers

import (
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/postdeckhq/postdeck/internal/service"
	"github.com/postdeckhq/postdeck/internal/transfer"
)

type MediaHandler struct {
	s service.MediaService
}

func NewMediaHandler(service service.MediaService) *MediaHandler {
	return &MediaHandler{s: service}
}

// UploadMedia handles POST /media, one file per multipart request. Width,
// height and duration come from the client-side probe; the server trusts
// them for warnings only, never for type detection.
func (h *MediaHandler) UploadMedia(c *fiber.Ctx) error {
	userID := GetUserID(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, transfer.ErrCodeInvalidContent,
			"request carries no file", nil)
	}

	f, err := fileHeader.Open()
	if err != nil {
		return respondServiceError(c, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return respondServiceError(c, err)
	}

	up := &service.MediaUpload{
		Filename:        fileHeader.Filename,
		Data:            data,
		Width:           formInt(c, "width"),
		Height:          formInt(c, "height"),
		DurationSeconds: formFloat(c, "duration_seconds"),
	}

	asset, warnings, err := h.s.Upload(c.Context(), userID, up)
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, transfer.ErrCodeInvalidContent,
			err.Error(), nil)
	}

	return respondData(c, fiber.StatusOK, fiber.Map{
		"asset":    asset,
		"warnings": warnings,
	})
}

func formInt(c *fiber.Ctx, key string) int {
	v, _ := strconv.Atoi(c.FormValue(key))
	return v
}

func formFloat(c *fiber.Ctx, key string) float64 {
	v, _ := strconv.ParseFloat(c.FormValue(key), 64)
	return v
}
