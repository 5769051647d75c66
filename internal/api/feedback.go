package api

import (
	"github.com/modelzoo/backend/internal/models"
	"github.com/modelzoo/backend/internal/services/feedback"

	"github.com/gofiber/fiber/v2"
)

// FeedbackHandler serves feedback ratings and follow-up suggestions
type FeedbackHandler struct {
	feedbackService *feedback.Service
}

func NewFeedbackHandler(feedbackService *feedback.Service) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService}
}

// Create handles POST /api/feedback
func (h *FeedbackHandler) Create(c *fiber.Ctx) error {
	reqID := requestID(c)

	var req models.FeedbackCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, reqID, models.NewValidationError("invalid request body", err))
	}

	fb, err := h.feedbackService.CreateFeedback(c.UserContext(), req)
	if err != nil {
		return respondError(c, reqID, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fb)
}

// Stats handles GET /api/feedback/stats
func (h *FeedbackHandler) Stats(c *fiber.Ctx) error {
	reqID := requestID(c)

	stats, err := h.feedbackService.GetStats(c.UserContext())
	if err != nil {
		return respondError(c, reqID, err)
	}
	return c.JSON(stats)
}

// SessionFeedback handles GET /api/sessions/:id/feedback
func (h *FeedbackHandler) SessionFeedback(c *fiber.Ctx) error {
	reqID := requestID(c)

	feedbacks, err := h.feedbackService.GetSessionFeedback(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, reqID, err)
	}
	return c.JSON(feedbacks)
}

// Suggestions handles GET /api/messages/:id/suggestions
func (h *FeedbackHandler) Suggestions(c *fiber.Ctx) error {
	reqID := requestID(c)

	suggestions, err := h.feedbackService.SuggestFollowUps(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, reqID, err)
	}
	return c.JSON(suggestions)
}
