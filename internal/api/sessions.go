package api

import (
	"github.com/modelzoo/backend/internal/models"
	"github.com/modelzoo/backend/internal/services/chat"

	"github.com/gofiber/fiber/v2"
)

// SessionHandler serves session CRUD
type SessionHandler struct {
	chatService *chat.Service
}

func NewSessionHandler(chatService *chat.Service) *SessionHandler {
	return &SessionHandler{chatService: chatService}
}

// Create handles POST /api/sessions
func (h *SessionHandler) Create(c *fiber.Ctx) error {
	reqID := requestID(c)

	var req models.SessionCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, reqID, models.NewValidationError("invalid request body", err))
	}

	session, err := h.chatService.CreateSession(c.UserContext(), req)
	if err != nil {
		return respondError(c, reqID, err)
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

// List handles GET /api/sessions
func (h *SessionHandler) List(c *fiber.Ctx) error {
	reqID := requestID(c)

	summaries, err := h.chatService.ListSessions(c.UserContext(), c.Query("user_id"))
	if err != nil {
		return respondError(c, reqID, err)
	}
	return c.JSON(summaries)
}

// Get handles GET /api/sessions/:id
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	reqID := requestID(c)

	session, err := h.chatService.GetSession(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, reqID, err)
	}
	return c.JSON(session)
}

// Update handles PUT /api/sessions/:id
func (h *SessionHandler) Update(c *fiber.Ctx) error {
	reqID := requestID(c)

	var req models.SessionUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, reqID, models.NewValidationError("invalid request body", err))
	}

	session, err := h.chatService.UpdateSession(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return respondError(c, reqID, err)
	}
	return c.JSON(session)
}

// Delete handles DELETE /api/sessions/:id
func (h *SessionHandler) Delete(c *fiber.Ctx) error {
	reqID := requestID(c)

	if err := h.chatService.DeleteSession(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, reqID, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Messages handles GET /api/sessions/:id/messages
func (h *SessionHandler) Messages(c *fiber.Ctx) error {
	reqID := requestID(c)

	messages, err := h.chatService.GetMessages(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, reqID, err)
	}
	return c.JSON(messages)
}
