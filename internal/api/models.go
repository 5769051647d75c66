package api

import (
	"github.com/modelzoo/backend/internal/config"
	"github.com/modelzoo/backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ModelsHandler exposes the configured model catalog and routing table
type ModelsHandler struct {
	cfg *config.Config
}

func NewModelsHandler(cfg *config.Config) *ModelsHandler {
	return &ModelsHandler{cfg: cfg}
}

// List handles GET /api/models
func (h *ModelsHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"models":         h.cfg.AvailableModels(),
		"routes":         h.cfg.Router.Routes,
		"fallback_model": h.cfg.Router.FallbackModel,
	})
}

// Get handles GET /api/models/:id
func (h *ModelsHandler) Get(c *fiber.Ctx) error {
	id := c.Params("id")
	model, ok := h.cfg.GetModel(id)
	if !ok {
		return respondError(c, requestID(c), models.NewNotFoundError("model", id))
	}
	return c.JSON(model)
}
