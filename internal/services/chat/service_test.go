package chat

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/modelzoo/backend/internal/models"
	"github.com/modelzoo/backend/internal/services/conversation"
	"github.com/modelzoo/backend/internal/services/database"
	"github.com/modelzoo/backend/internal/services/dispatch"
	"github.com/modelzoo/backend/internal/services/orchestrator"
	"github.com/modelzoo/backend/internal/services/providers"
	"github.com/modelzoo/backend/internal/services/routing"
	"github.com/modelzoo/backend/internal/services/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRegistry struct {
	models map[string]models.ModelConfig
}

func (r *stubRegistry) GetModel(id string) (models.ModelConfig, bool) {
	m, ok := r.models[id]
	return m, ok
}

type stubInvoker struct{}

func (stubInvoker) Invoke(context.Context, models.ModelConfig, providers.Invocation) (providers.Result, error) {
	return providers.Result{Content: "stub reply", TokensUsed: 5}, nil
}

type stubSource struct{}

func (stubSource) ForModel(models.ModelConfig) (providers.Invoker, error) {
	return stubInvoker{}, nil
}

func newTestService(t *testing.T) (*Service, *database.DB) {
	t.Helper()

	db, err := database.New(models.DatabaseConfig{
		Type:     models.SQLite,
		FilePath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	contexts := conversation.NewRegistry(models.ConversationConfig{MaxMessages: 40, WindowTurns: 10})
	service := NewService(db, contexts)

	registry := &stubRegistry{models: map[string]models.ModelConfig{
		"gpt-35-turbo": {ID: "gpt-35-turbo", Provider: models.ProviderAzure},
	}}
	scorer := scoring.NewScorer(models.ScoringConfig{})
	selector := routing.NewSelector(registry, []models.RouteRule{{MinScore: 0, Model: "gpt-35-turbo"}}, "gpt-35-turbo")
	dispatcher := dispatch.NewDispatcher(stubSource{}, nil, models.RetryConfig{MaxAttempts: 1, BaseDelayMs: 1, MaxDelayMs: 1})
	service.SetPipeline(orchestrator.New(scorer, selector, dispatcher, contexts, service, "system prompt"))

	return service, db
}

func TestProcessChatCreatesSessionAndPersistsTurns(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	resp, err := service.ProcessChat(ctx, models.ChatRequest{Message: "what is the weather like today"})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "stub reply", resp.Message.Content)
	assert.Equal(t, "gpt-35-turbo", resp.ChosenModel)
	assert.Equal(t, models.OutcomeSucceeded, resp.Outcome)

	messages, err := service.GetMessages(ctx, resp.SessionID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, conversation.RoleUser, messages[0].Role)
	assert.Equal(t, conversation.RoleAssistant, messages[1].Role)
	assert.Equal(t, "gpt-35-turbo", messages[1].ModelUsed)
}

func TestProcessChatAutoTitlesSession(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	resp, err := service.ProcessChat(ctx, models.ChatRequest{Message: "explain how tides work"})
	require.NoError(t, err)

	session, err := service.GetSession(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "explain how tides work", session.Title)
}

func TestProcessChatUnknownSession(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.ProcessChat(context.Background(), models.ChatRequest{
		Message:   "hello",
		SessionID: "missing-session",
	})
	require.Error(t, err)
	assert.Equal(t, models.ErrorTypeNotFound, models.Classify(err))
}

func TestProcessChatContinuesExistingSession(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	first, err := service.ProcessChat(ctx, models.ChatRequest{Message: "first message"})
	require.NoError(t, err)

	second, err := service.ProcessChat(ctx, models.ChatRequest{
		Message:   "second message",
		SessionID: first.SessionID,
	})
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)

	messages, err := service.GetMessages(ctx, first.SessionID)
	require.NoError(t, err)
	assert.Len(t, messages, 4)
}

func TestProcessChatEmptyMessage(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.ProcessChat(context.Background(), models.ChatRequest{Message: "  "})
	require.Error(t, err)
	assert.Equal(t, models.ErrorTypeValidation, models.Classify(err))
}

func TestSessionLifecycle(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	session, err := service.CreateSession(ctx, models.SessionCreateRequest{Title: "Planning", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "Planning", session.Title)

	updated, err := service.UpdateSession(ctx, session.ID, models.SessionUpdateRequest{Title: "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)

	_, err = service.UpdateSession(ctx, session.ID, models.SessionUpdateRequest{Title: " "})
	require.Error(t, err)

	summaries, err := service.ListSessions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "Renamed", summaries[0].Title)

	require.NoError(t, service.DeleteSession(ctx, session.ID))
	_, err = service.GetSession(ctx, session.ID)
	assert.Equal(t, models.ErrorTypeNotFound, models.Classify(err))
}

func TestDeleteUnknownSession(t *testing.T) {
	service, _ := newTestService(t)

	err := service.DeleteSession(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, models.ErrorTypeNotFound, models.Classify(err))
}

func TestListSessionsFiltersByUser(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.CreateSession(ctx, models.SessionCreateRequest{UserID: "alice"})
	require.NoError(t, err)
	_, err = service.CreateSession(ctx, models.SessionCreateRequest{UserID: "bob"})
	require.NoError(t, err)

	summaries, err := service.ListSessions(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, summaries, 1)

	all, err := service.ListSessions(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
