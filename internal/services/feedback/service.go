// Package feedback stores user ratings on chat turns and derives follow-up
// suggestions for assistant messages.
package feedback

import (
	"context"
	"errors"
	"strings"

	"github.com/modelzoo/backend/internal/models"
	"github.com/modelzoo/backend/internal/services/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	minRating = 1
	maxRating = 5
)

type Service struct {
	db *database.DB
}

func NewService(db *database.DB) *Service {
	return &Service{db: db}
}

// CreateFeedback records a rating against a session and optionally one message
func (s *Service) CreateFeedback(ctx context.Context, req models.FeedbackCreateRequest) (*models.Feedback, error) {
	if req.Rating < minRating || req.Rating > maxRating {
		return nil, models.NewValidationError("rating must be between 1 and 5", nil)
	}
	if req.SessionID == "" {
		return nil, models.NewValidationError("session_id is required", nil)
	}
	if s.db == nil {
		return nil, models.NewInternalError("feedback requires a configured database", nil)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.ChatSession{}).
		Where("id = ?", req.SessionID).Count(&count).Error; err != nil {
		return nil, models.NewInternalError("failed to look up session", err)
	}
	if count == 0 {
		return nil, models.NewNotFoundError("session", req.SessionID)
	}

	if req.MessageID != "" {
		err := s.db.WithContext(ctx).
			First(&models.Message{}, "id = ? AND session_id = ?", req.MessageID, req.SessionID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("message", req.MessageID)
		}
		if err != nil {
			return nil, models.NewInternalError("failed to look up message", err)
		}
	}

	feedback := &models.Feedback{
		ID:         uuid.NewString(),
		SessionID:  req.SessionID,
		MessageID:  req.MessageID,
		Rating:     req.Rating,
		Comment:    req.Comment,
		WasHelpful: req.WasHelpful,
	}
	if err := s.db.WithContext(ctx).Create(feedback).Error; err != nil {
		return nil, models.NewInternalError("failed to save feedback", err)
	}
	return feedback, nil
}

// GetSessionFeedback lists feedback for one session, newest first
func (s *Service) GetSessionFeedback(ctx context.Context, sessionID string) ([]models.Feedback, error) {
	if s.db == nil {
		return []models.Feedback{}, nil
	}

	var feedbacks []models.Feedback
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at desc").
		Find(&feedbacks).Error
	if err != nil {
		return nil, models.NewInternalError("failed to load feedback", err)
	}
	return feedbacks, nil
}

// GetStats aggregates ratings across all sessions
func (s *Service) GetStats(ctx context.Context) (*models.FeedbackStats, error) {
	if s.db == nil {
		return &models.FeedbackStats{}, nil
	}

	stats := &models.FeedbackStats{}
	db := s.db.WithContext(ctx).Model(&models.Feedback{})

	if err := db.Count(&stats.TotalFeedback).Error; err != nil {
		return nil, models.NewInternalError("failed to count feedback", err)
	}
	if stats.TotalFeedback == 0 {
		return stats, nil
	}

	var avg *float64
	if err := s.db.WithContext(ctx).Model(&models.Feedback{}).
		Select("AVG(rating)").Scan(&avg).Error; err != nil {
		return nil, models.NewInternalError("failed to average ratings", err)
	}
	if avg != nil {
		stats.AverageRating = *avg
	}

	if err := s.db.WithContext(ctx).Model(&models.Feedback{}).
		Where("was_helpful = ?", true).
		Count(&stats.HelpfulCount).Error; err != nil {
		return nil, models.NewInternalError("failed to count helpful feedback", err)
	}
	stats.HelpfulRatio = float64(stats.HelpfulCount) / float64(stats.TotalFeedback)

	return stats, nil
}

// SuggestFollowUps derives follow-up prompts from an assistant message's
// content and persists them against the message.
func (s *Service) SuggestFollowUps(ctx context.Context, messageID string) ([]models.Suggestion, error) {
	if s.db == nil {
		return nil, models.NewInternalError("suggestions require a configured database", nil)
	}

	var message models.Message
	err := s.db.WithContext(ctx).First(&message, "id = ?", messageID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("message", messageID)
	}
	if err != nil {
		return nil, models.NewInternalError("failed to load message", err)
	}

	var existing []models.Suggestion
	if err := s.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Find(&existing).Error; err == nil && len(existing) > 0 {
		return existing, nil
	}

	suggestions := deriveSuggestions(message)
	if len(suggestions) > 0 {
		if err := s.db.WithContext(ctx).Create(&suggestions).Error; err != nil {
			return nil, models.NewInternalError("failed to save suggestions", err)
		}
	}
	return suggestions, nil
}

// deriveSuggestions is a content heuristic, not a model call: code answers get
// code follow-ups, list answers get elaboration prompts, everything gets a
// clarification option.
func deriveSuggestions(message models.Message) []models.Suggestion {
	content := strings.ToLower(message.Content)
	var suggestions []models.Suggestion

	add := func(text, category string) {
		suggestions = append(suggestions, models.Suggestion{
			ID:             uuid.NewString(),
			MessageID:      message.ID,
			SuggestionText: text,
			Category:       category,
		})
	}

	if strings.Contains(content, "```") {
		add("Explain this code step by step", "code")
		add("Show me how to test this", "code")
	}
	if strings.Contains(content, "1.") || strings.Contains(content, "- ") {
		add("Expand on the first point", "elaboration")
	}
	add("Can you give a concrete example?", "clarification")

	return suggestions
}
