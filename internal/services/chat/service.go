// Package chat owns session lifecycle and message persistence, and fronts the
// routing pipeline for the HTTP layer. It doubles as the orchestrator's
// TurnRecorder so the pipeline itself never sees GORM.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/modelzoo/backend/internal/models"
	"github.com/modelzoo/backend/internal/services/conversation"
	"github.com/modelzoo/backend/internal/services/database"
	"github.com/modelzoo/backend/internal/services/orchestrator"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const autoTitleMaxLen = 50

// Service handles chat turns and session persistence. A nil db is valid and
// means sessions live only in process memory.
type Service struct {
	db       *database.DB
	contexts *conversation.Registry
	pipeline *orchestrator.Orchestrator
}

func NewService(db *database.DB, contexts *conversation.Registry) *Service {
	return &Service{db: db, contexts: contexts}
}

// SetPipeline wires the orchestrator in after construction. The service is the
// orchestrator's recorder, so the two reference each other.
func (s *Service) SetPipeline(pipeline *orchestrator.Orchestrator) {
	s.pipeline = pipeline
}

// ProcessChat runs one user message through the routing pipeline
func (s *Service) ProcessChat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, models.NewValidationError("message must not be empty", nil)
	}

	session, err := s.ensureSession(ctx, req)
	if err != nil {
		return nil, err
	}

	result, err := s.pipeline.ProcessTurn(ctx, orchestrator.Request{
		SessionID: session.ID,
		Query:     req.Message,
		Override:  req.Model,
		Generation: models.GenerationConfig{
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		},
	})
	if err != nil {
		return nil, err
	}

	s.maybeAutoTitle(ctx, session, req.Message)

	tokens := result.TokensUsed
	latencyMs := result.Latency.Milliseconds()
	score := result.Score
	return &models.ChatResponse{
		SessionID: session.ID,
		Message: models.MessageResponse{
			ID:              uuid.NewString(),
			Role:            conversation.RoleAssistant,
			Content:         result.Content,
			ModelUsed:       result.Model,
			ComplexityScore: &score,
			TokensUsed:      &tokens,
			ResponseTimeMs:  &latencyMs,
			Timestamp:       time.Now(),
		},
		ChosenModel:     result.Model,
		WasAutoSelected: result.WasAutoSelected,
		ComplexityScore: result.Score,
		Outcome:         result.Outcome,
		LatencyMs:       latencyMs,
	}, nil
}

// RecordTurns implements orchestrator.TurnRecorder
func (s *Service) RecordTurns(ctx context.Context, sessionID string, records []models.TurnRecord) error {
	if s.db == nil {
		return nil
	}

	messages := make([]models.Message, 0, len(records))
	for _, rec := range records {
		msg := models.Message{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			Role:      rec.Role,
			Content:   rec.Content,
			ModelUsed: rec.ModelUsed,
			Timestamp: rec.Timestamp,
		}
		if rec.Role == conversation.RoleUser {
			score := rec.ComplexityScore
			msg.ComplexityScore = &score
		} else {
			tokens := rec.TokensUsed
			latencyMs := rec.Latency.Milliseconds()
			msg.TokensUsed = &tokens
			msg.ResponseTimeMs = &latencyMs
		}
		messages = append(messages, msg)
	}

	if err := s.db.WithContext(ctx).Create(&messages).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&models.ChatSession{}).
		Where("id = ?", sessionID).
		Update("updated_at", time.Now()).Error
}

// ensureSession resolves the request's session, creating one when no id was
// supplied, and seeds the in-memory context from persisted history on resume.
func (s *Service) ensureSession(ctx context.Context, req models.ChatRequest) (*models.ChatSession, error) {
	if req.SessionID == "" {
		return s.CreateSession(ctx, models.SessionCreateRequest{UserID: req.UserID})
	}

	if s.db == nil {
		return &models.ChatSession{ID: req.SessionID, UserID: req.UserID}, nil
	}

	var session models.ChatSession
	err := s.db.WithContext(ctx).First(&session, "id = ?", req.SessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("session", req.SessionID)
	}
	if err != nil {
		return nil, models.NewInternalError("failed to load session", err)
	}

	s.seedContext(ctx, session.ID)
	return &session, nil
}

// seedContext loads persisted history into the conversation registry when the
// session has no in-memory context yet, e.g. after a restart.
func (s *Service) seedContext(ctx context.Context, sessionID string) {
	var messages []models.Message
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp asc").
		Find(&messages).Error
	if err != nil {
		fiberlog.Errorf("failed to load history for session %s: %v", sessionID, err)
		return
	}

	turns := make([]conversation.Turn, 0, len(messages))
	for _, msg := range messages {
		turns = append(turns, conversation.Turn{
			Role:      msg.Role,
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		})
	}
	s.contexts.Seed(sessionID, turns)
}

// CreateSession creates a new chat session
func (s *Service) CreateSession(ctx context.Context, req models.SessionCreateRequest) (*models.ChatSession, error) {
	session := &models.ChatSession{
		ID:       uuid.NewString(),
		UserID:   req.UserID,
		Title:    req.Title,
		IsActive: true,
	}
	if session.Title == "" {
		session.Title = "New Chat"
	}

	if s.db != nil {
		if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
			return nil, models.NewInternalError("failed to create session", err)
		}
	}
	return session, nil
}

// GetSession loads a session with its messages
func (s *Service) GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	if s.db == nil {
		return nil, models.NewNotFoundError("session", sessionID)
	}

	var session models.ChatSession
	err := s.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("timestamp asc")
		}).
		First(&session, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("session", sessionID)
	}
	if err != nil {
		return nil, models.NewInternalError("failed to load session", err)
	}
	return &session, nil
}

// ListSessions returns session summaries, newest activity first
func (s *Service) ListSessions(ctx context.Context, userID string) ([]models.SessionSummary, error) {
	if s.db == nil {
		return []models.SessionSummary{}, nil
	}

	query := s.db.WithContext(ctx).Model(&models.ChatSession{}).Where("is_active = ?", true)
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}

	var sessions []models.ChatSession
	if err := query.Order("updated_at desc").Find(&sessions).Error; err != nil {
		return nil, models.NewInternalError("failed to list sessions", err)
	}

	summaries := make([]models.SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		summary := models.SessionSummary{
			ID:        session.ID,
			Title:     session.Title,
			CreatedAt: session.CreatedAt,
			UpdatedAt: session.UpdatedAt,
			IsActive:  session.IsActive,
		}

		s.db.WithContext(ctx).Model(&models.Message{}).
			Where("session_id = ?", session.ID).
			Count(&summary.MessageCount)

		var last models.Message
		err := s.db.WithContext(ctx).
			Where("session_id = ?", session.ID).
			Order("timestamp desc").
			First(&last).Error
		if err == nil {
			summary.LastMessage = truncate(last.Content, autoTitleMaxLen)
		}

		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// UpdateSession renames a session
func (s *Service) UpdateSession(ctx context.Context, sessionID string, req models.SessionUpdateRequest) (*models.ChatSession, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, models.NewValidationError("title must not be empty", nil)
	}

	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	session.Title = req.Title
	if err := s.db.WithContext(ctx).Model(&models.ChatSession{}).
		Where("id = ?", sessionID).
		Update("title", req.Title).Error; err != nil {
		return nil, models.NewInternalError("failed to update session", err)
	}
	return session, nil
}

// DeleteSession removes a session, its messages, and its in-memory context
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	if s.db == nil {
		s.contexts.Evict(sessionID)
		return nil
	}

	result := s.db.WithContext(ctx).
		Select("Messages", "Feedbacks").
		Delete(&models.ChatSession{ID: sessionID})
	if result.Error != nil {
		return models.NewInternalError("failed to delete session", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("session", sessionID)
	}

	s.contexts.Evict(sessionID)
	return nil
}

// GetMessages returns a session's messages in chronological order
func (s *Service) GetMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return session.Messages, nil
}

// maybeAutoTitle derives a session title from the first message
func (s *Service) maybeAutoTitle(ctx context.Context, session *models.ChatSession, firstMessage string) {
	if s.db == nil || session.Title != "New Chat" {
		return
	}

	title := truncate(strings.TrimSpace(firstMessage), autoTitleMaxLen)
	if title == "" {
		return
	}

	if err := s.db.WithContext(ctx).Model(&models.ChatSession{}).
		Where("id = ? AND title = ?", session.ID, "New Chat").
		Update("title", title).Error; err != nil {
		fiberlog.Errorf("failed to auto-title session %s: %v", session.ID, err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
