package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/postdeckhq/postdeck/internal/service"
	"github.com/postdeckhq/postdeck/internal/transfer"
)

type PostHandler struct {
	s service.PostService
}

func NewPostHandler(service service.PostService) *PostHandler {
	return &PostHandler{s: service}
}

// CreatePost handles POST /posting. The response carries the per-platform
// publish results for immediate posts, or the stored record for drafts and
// scheduled posts.
func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.CreatePostRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, transfer.ErrCodeInvalidContent,
			"unable to parse request body", nil)
	}

	post, err := h.s.Create(c.Context(), userID, &req)
	if err != nil {
		return respondServiceError(c, err)
	}

	return respondData(c, fiber.StatusOK, transfer.FromPost(post, time.Now()))
}

// ListPosts handles GET /posting?status&platform&limit&offset.
func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	posts, err := h.s.List(c.Context(), userID,
		c.Query("status"), c.Query("platform"),
		c.QueryInt("limit", 0), c.QueryInt("offset", 0))
	if err != nil {
		return respondServiceError(c, err)
	}

	now := time.Now()
	out := make([]transfer.PostResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, transfer.FromPost(p, now))
	}

	return respondData(c, fiber.StatusOK, out)
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	post, err := h.s.Get(c.Context(), userID, c.Params("id"))
	if err != nil {
		return respondServiceError(c, err)
	}

	return respondData(c, fiber.StatusOK, transfer.FromPost(post, time.Now()))
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	if err := h.s.Remove(c.Context(), userID, c.Params("id")); err != nil {
		return respondServiceError(c, err)
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"deleted": true})
}
