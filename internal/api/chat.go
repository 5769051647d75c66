package api

import (
	"github.com/modelzoo/backend/internal/models"
	"github.com/modelzoo/backend/internal/services/chat"
	"github.com/modelzoo/backend/internal/services/orchestrator"
	"github.com/modelzoo/backend/internal/services/stream"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// ChatHandler serves the chat and analysis endpoints
type ChatHandler struct {
	chatService *chat.Service
	pipeline    *orchestrator.Orchestrator
}

func NewChatHandler(chatService *chat.Service, pipeline *orchestrator.Orchestrator) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		pipeline:    pipeline,
	}
}

// Chat handles POST /api/chat
func (h *ChatHandler) Chat(c *fiber.Ctx) error {
	reqID := requestID(c)

	var req models.ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, reqID, models.NewValidationError("invalid request body", err))
	}

	fiberlog.Infof("[%s] chat request: session=%s override=%q", reqID, req.SessionID, req.Model)

	resp, err := h.chatService.ProcessChat(c.UserContext(), req)
	if err != nil {
		return respondError(c, reqID, err)
	}

	fiberlog.Infof("[%s] chat %s via %s (score %d, %dms)",
		reqID, resp.Outcome, resp.ChosenModel, resp.ComplexityScore, resp.LatencyMs)
	return c.JSON(resp)
}

// ChatStream handles POST /api/chat/stream. The turn runs to completion first;
// the finished answer is then replayed to the client as SSE.
func (h *ChatHandler) ChatStream(c *fiber.Ctx) error {
	reqID := requestID(c)

	var req models.ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, reqID, models.NewValidationError("invalid request body", err))
	}

	resp, err := h.chatService.ProcessChat(c.UserContext(), req)
	if err != nil {
		return respondError(c, reqID, err)
	}

	return stream.WriteChatResponse(c, resp, reqID)
}

type analyzeRequest struct {
	Message string `json:"message"`
}

// Analyze handles POST /api/analyze: score a query and report which model
// auto-selection would choose, without invoking anything.
func (h *ChatHandler) Analyze(c *fiber.Ctx) error {
	reqID := requestID(c)

	var req analyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, reqID, models.NewValidationError("invalid request body", err))
	}
	if req.Message == "" {
		return respondError(c, reqID, models.NewValidationError("message must not be empty", nil))
	}

	analysis, model, err := h.pipeline.Analyze(req.Message)
	if err != nil {
		return respondError(c, reqID, err)
	}

	return c.JSON(fiber.Map{
		"complexity_score": analysis.TotalScore,
		"signals":          analysis.Signals,
		"factors":          analysis.Factors,
		"selected_model":   model.ID,
		"provider":         model.Provider,
	})
}
