package feedback

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/modelzoo/backend/internal/models"
	"github.com/modelzoo/backend/internal/services/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *database.DB) {
	t.Helper()

	db, err := database.New(models.DatabaseConfig{
		Type:     models.SQLite,
		FilePath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	return NewService(db), db
}

func seedSession(t *testing.T, db *database.DB) (sessionID, messageID string) {
	t.Helper()

	sessionID = uuid.NewString()
	messageID = uuid.NewString()

	require.NoError(t, db.Create(&models.ChatSession{ID: sessionID, Title: "t", IsActive: true}).Error)
	require.NoError(t, db.Create(&models.Message{
		ID:        messageID,
		SessionID: sessionID,
		Role:      "assistant",
		Content:   "here is some code:\n```\nx := 1\n```",
		Timestamp: time.Now(),
	}).Error)
	return sessionID, messageID
}

func TestCreateFeedback(t *testing.T) {
	service, db := newTestService(t)
	sessionID, messageID := seedSession(t, db)
	helpful := true

	fb, err := service.CreateFeedback(context.Background(), models.FeedbackCreateRequest{
		SessionID:  sessionID,
		MessageID:  messageID,
		Rating:     4,
		Comment:    "good answer",
		WasHelpful: &helpful,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, fb.ID)
	assert.Equal(t, 4, fb.Rating)

	feedbacks, err := service.GetSessionFeedback(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Len(t, feedbacks, 1)
}

func TestCreateFeedbackValidation(t *testing.T) {
	service, db := newTestService(t)
	sessionID, _ := seedSession(t, db)

	tests := []struct {
		name string
		req  models.FeedbackCreateRequest
		want models.ErrorType
	}{
		{"rating too low", models.FeedbackCreateRequest{SessionID: sessionID, Rating: 0}, models.ErrorTypeValidation},
		{"rating too high", models.FeedbackCreateRequest{SessionID: sessionID, Rating: 6}, models.ErrorTypeValidation},
		{"missing session", models.FeedbackCreateRequest{Rating: 3}, models.ErrorTypeValidation},
		{"unknown session", models.FeedbackCreateRequest{SessionID: "ghost", Rating: 3}, models.ErrorTypeNotFound},
		{"unknown message", models.FeedbackCreateRequest{SessionID: sessionID, MessageID: "ghost", Rating: 3}, models.ErrorTypeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.CreateFeedback(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.want, models.Classify(err))
		})
	}
}

func TestFeedbackStats(t *testing.T) {
	service, db := newTestService(t)
	sessionID, _ := seedSession(t, db)
	ctx := context.Background()

	empty, err := service.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalFeedback)

	helpful := true
	notHelpful := false
	ratings := []struct {
		rating  int
		helpful *bool
	}{
		{5, &helpful},
		{3, &notHelpful},
		{4, &helpful},
	}
	for _, r := range ratings {
		_, err := service.CreateFeedback(ctx, models.FeedbackCreateRequest{
			SessionID:  sessionID,
			Rating:     r.rating,
			WasHelpful: r.helpful,
		})
		require.NoError(t, err)
	}

	stats, err := service.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalFeedback)
	assert.InDelta(t, 4.0, stats.AverageRating, 0.001)
	assert.Equal(t, int64(2), stats.HelpfulCount)
	assert.InDelta(t, 2.0/3.0, stats.HelpfulRatio, 0.001)
}

func TestSuggestFollowUps(t *testing.T) {
	service, db := newTestService(t)
	_, messageID := seedSession(t, db)
	ctx := context.Background()

	suggestions, err := service.SuggestFollowUps(ctx, messageID)
	require.NoError(t, err)
	require.NotEmpty(t, suggestions)

	categories := make(map[string]bool)
	for _, s := range suggestions {
		categories[s.Category] = true
	}
	// Code content earns code follow-ups on top of the generic one
	assert.True(t, categories["code"])
	assert.True(t, categories["clarification"])

	// Second call returns the persisted set instead of regenerating
	again, err := service.SuggestFollowUps(ctx, messageID)
	require.NoError(t, err)
	assert.Len(t, again, len(suggestions))
}

func TestSuggestFollowUpsUnknownMessage(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.SuggestFollowUps(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, models.ErrorTypeNotFound, models.Classify(err))
}
