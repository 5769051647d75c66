package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/modelzoo/backend/internal/models"
	"github.com/modelzoo/backend/internal/services/conversation"
	"github.com/modelzoo/backend/internal/services/dispatch"
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

// scriptedInvoker replays a per-call error script; a nil entry succeeds
type scriptedInvoker struct {
	script  []error
	calls   int
	lastInv providers.Invocation
}

func (f *scriptedInvoker) Invoke(_ context.Context, _ models.ModelConfig, inv providers.Invocation) (providers.Result, error) {
	f.calls++
	f.lastInv = inv

	var err error
	if len(f.script) > 0 {
		err = f.script[0]
		f.script = f.script[1:]
	}
	if err != nil {
		return providers.Result{}, err
	}
	return providers.Result{Content: "the answer", TokensUsed: 11}, nil
}

type singleSource struct {
	invoker providers.Invoker
}

func (s singleSource) ForModel(models.ModelConfig) (providers.Invoker, error) {
	return s.invoker, nil
}

type capturingRecorder struct {
	sessionID string
	records   []models.TurnRecord
}

func (r *capturingRecorder) RecordTurns(_ context.Context, sessionID string, records []models.TurnRecord) error {
	r.sessionID = sessionID
	r.records = append(r.records, records...)
	return nil
}

type fixture struct {
	pipeline *Orchestrator
	invoker  *scriptedInvoker
	recorder *capturingRecorder
	contexts *conversation.Registry
}

func newFixture(script ...error) *fixture {
	registry := &stubRegistry{models: map[string]models.ModelConfig{
		"gpt-4":        {ID: "gpt-4", Provider: models.ProviderAzure},
		"gpt-35-turbo": {ID: "gpt-35-turbo", Provider: models.ProviderAzure},
	}}
	routes := []models.RouteRule{
		{MinScore: 4, Model: "gpt-4"},
		{MinScore: 2, Model: "gpt-35-turbo"},
	}

	scorer := scoring.NewScorer(models.ScoringConfig{
		LengthTiers: []models.LengthTier{
			{MinChars: 1000, Points: 3},
			{MinChars: 500, Points: 2},
			{MinChars: 200, Points: 1},
		},
		HighKeywords:   []string{"analyze"},
		MediumKeywords: []string{"summarize"},
		LowKeywords:    []string{"hi", "thanks"},
	})
	selector := routing.NewSelector(registry, routes, "gpt-35-turbo")

	invoker := &scriptedInvoker{script: script}
	dispatcher := dispatch.NewDispatcher(singleSource{invoker}, nil, models.RetryConfig{
		MaxAttempts: 2,
		BaseDelayMs: 1,
		MaxDelayMs:  2,
	})

	contexts := conversation.NewRegistry(models.ConversationConfig{MaxMessages: 40, WindowTurns: 10})
	recorder := &capturingRecorder{}

	return &fixture{
		pipeline: New(scorer, selector, dispatcher, contexts, recorder, "You are a helpful assistant."),
		invoker:  invoker,
		recorder: recorder,
		contexts: contexts,
	}
}

func TestProcessTurnSuccess(t *testing.T) {
	f := newFixture()

	result, err := f.pipeline.ProcessTurn(context.Background(), Request{
		SessionID: "s1",
		Query:     "analyze the tradeoffs of this design",
	})
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeSucceeded, result.Outcome)
	assert.Equal(t, "the answer", result.Content)
	assert.True(t, result.WasAutoSelected)
	assert.GreaterOrEqual(t, result.Score, 2)

	// Exactly one user and one assistant turn committed
	window := f.contexts.Get("s1").Window()
	require.Len(t, window, 2)
	assert.Equal(t, conversation.RoleUser, window[0].Role)
	assert.Equal(t, conversation.RoleAssistant, window[1].Role)
}

func TestProcessTurnPassesSystemPromptAndWindow(t *testing.T) {
	f := newFixture()

	_, err := f.pipeline.ProcessTurn(context.Background(), Request{SessionID: "s1", Query: "question one"})
	require.NoError(t, err)
	_, err = f.pipeline.ProcessTurn(context.Background(), Request{SessionID: "s1", Query: "question two"})
	require.NoError(t, err)

	assert.Equal(t, "You are a helpful assistant.", f.invoker.lastInv.System)
	// Second call sees the first exchange plus its own user turn
	require.Len(t, f.invoker.lastInv.Turns, 3)
	assert.Equal(t, "question two", f.invoker.lastInv.Turns[2].Content)
}

func TestProcessTurnEmptyQuery(t *testing.T) {
	f := newFixture()

	_, err := f.pipeline.ProcessTurn(context.Background(), Request{SessionID: "s1", Query: "   "})
	require.Error(t, err)
	assert.Equal(t, models.ErrorTypeValidation, models.Classify(err))
	assert.Zero(t, f.invoker.calls)
}

func TestProcessTurnInvalidOverride(t *testing.T) {
	f := newFixture()

	_, err := f.pipeline.ProcessTurn(context.Background(), Request{
		SessionID: "s1",
		Query:     "hello there",
		Override:  "no-such-model",
	})
	require.Error(t, err)
	assert.Equal(t, models.ErrorTypeInvalidOverride, models.Classify(err))

	// The invalid override failed before any model call or history change
	assert.Zero(t, f.invoker.calls)
	assert.Equal(t, 0, f.contexts.Get("s1").Len())
}

func TestProcessTurnOverrideHonored(t *testing.T) {
	f := newFixture()

	result, err := f.pipeline.ProcessTurn(context.Background(), Request{
		SessionID: "s1",
		Query:     "analyze everything in great depth",
		Override:  "gpt-35-turbo",
	})
	require.NoError(t, err)

	assert.Equal(t, "gpt-35-turbo", result.Model)
	assert.False(t, result.WasAutoSelected)
}

func TestProcessTurnFailureLeavesNoTrace(t *testing.T) {
	f := newFixture(
		models.NewInvalidRequestError("rejected", nil),
	)

	_, err := f.pipeline.ProcessTurn(context.Background(), Request{SessionID: "s1", Query: "hello world"})
	require.Error(t, err)

	assert.Equal(t, 0, f.contexts.Get("s1").Len())
	assert.Empty(t, f.recorder.records)
}

func TestProcessTurnFallbackStillCommitsTurn(t *testing.T) {
	f := newFixture(
		models.NewUnavailableError("gpt-4", nil),
		nil,
	)

	result, err := f.pipeline.ProcessTurn(context.Background(), Request{
		SessionID: "s1",
		Query:     "analyze this thoroughly and summarize: " + strings.Repeat("data ", 120),
	})
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeFellBack, result.Outcome)
	assert.Equal(t, "gpt-35-turbo", result.Model)
	assert.Equal(t, 2, f.contexts.Get("s1").Len())
}

func TestProcessTurnRecordsBothTurns(t *testing.T) {
	f := newFixture()

	_, err := f.pipeline.ProcessTurn(context.Background(), Request{SessionID: "s1", Query: "analyze this"})
	require.NoError(t, err)

	require.Len(t, f.recorder.records, 2)
	assert.Equal(t, "s1", f.recorder.sessionID)

	user, assistant := f.recorder.records[0], f.recorder.records[1]
	assert.Equal(t, conversation.RoleUser, user.Role)
	assert.Equal(t, "analyze this", user.Content)
	assert.GreaterOrEqual(t, user.ComplexityScore, 2)

	assert.Equal(t, conversation.RoleAssistant, assistant.Role)
	assert.Equal(t, "the answer", assistant.Content)
	assert.Equal(t, "gpt-35-turbo", assistant.ModelUsed)
	assert.Equal(t, 11, assistant.TokensUsed)
}

func TestAnalyzeDoesNotInvoke(t *testing.T) {
	f := newFixture()

	analysis, model, err := f.pipeline.Analyze("analyze this codebase:\n```\nfunc main() {}\n```")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, analysis.TotalScore, 4)
	assert.Equal(t, "gpt-4", model.ID)
	assert.Zero(t, f.invoker.calls)
}
