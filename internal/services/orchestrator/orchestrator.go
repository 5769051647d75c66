// Package orchestrator ties the routing pipeline together: score the query,
// select a model, dispatch with retry and fallback, then commit the turn to
// the session's conversation context exactly once on success.
package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/modelzoo/backend/internal/models"
	"github.com/modelzoo/backend/internal/services/conversation"
	"github.com/modelzoo/backend/internal/services/dispatch"
	"github.com/modelzoo/backend/internal/services/providers"
	"github.com/modelzoo/backend/internal/services/routing"
	"github.com/modelzoo/backend/internal/services/scoring"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// TurnRecorder receives completed turns for persistence. The orchestrator
// never touches storage itself; a nil recorder is valid and means in-memory
// only.
type TurnRecorder interface {
	RecordTurns(ctx context.Context, sessionID string, records []models.TurnRecord) error
}

// Request is one user turn to process
type Request struct {
	SessionID  string
	Query      string
	Override   string // explicit model id, empty for auto-selection
	Generation models.GenerationConfig
}

// Result is the caller-facing outcome of one processed turn
type Result struct {
	models.DispatchResult
	Score    int              `json:"score"`
	Analysis scoring.Analysis `json:"analysis"`
}

type Orchestrator struct {
	scorer       *scoring.Scorer
	selector     *routing.Selector
	dispatcher   *dispatch.Dispatcher
	contexts     *conversation.Registry
	recorder     TurnRecorder
	systemPrompt string
}

func New(
	scorer *scoring.Scorer,
	selector *routing.Selector,
	dispatcher *dispatch.Dispatcher,
	contexts *conversation.Registry,
	recorder TurnRecorder,
	systemPrompt string,
) *Orchestrator {
	return &Orchestrator{
		scorer:       scorer,
		selector:     selector,
		dispatcher:   dispatcher,
		contexts:     contexts,
		recorder:     recorder,
		systemPrompt: systemPrompt,
	}
}

// ProcessTurn runs the full pipeline for one user message. Selection errors
// (including an invalid override) surface before any model is invoked and
// before the session's history changes.
func (o *Orchestrator) ProcessTurn(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Query) == "" {
		return Result{}, models.NewValidationError("message must not be empty", nil)
	}

	analysis := o.scorer.Analyze(req.Query)

	primary, wasAuto, err := o.selector.Select(analysis.TotalScore, req.Override)
	if err != nil {
		return Result{Score: analysis.TotalScore, Analysis: analysis}, err
	}

	fallback, hasFallback := o.selector.Fallback()
	if hasFallback {
		hasFallback = fallback.IsAvailable() && fallback.ID != primary.ID
	}

	convCtx := o.contexts.Get(req.SessionID)
	convCtx.BeginTurn()
	defer convCtx.EndTurn()

	userTurn := conversation.Turn{
		Role:      conversation.RoleUser,
		Content:   req.Query,
		Timestamp: time.Now(),
	}
	window := append(convCtx.Window(), userTurn)

	result, err := o.dispatcher.Dispatch(ctx, dispatch.Request{
		Primary:         primary,
		Fallback:        fallback,
		HasFallback:     hasFallback,
		WasAutoSelected: wasAuto,
		Invocation: providers.Invocation{
			System:     o.systemPrompt,
			Turns:      window,
			Generation: req.Generation,
		},
	})
	if err != nil {
		// Failed turns never enter the conversation context
		return Result{DispatchResult: result, Score: analysis.TotalScore, Analysis: analysis}, err
	}

	assistantTurn := conversation.Turn{
		Role:      conversation.RoleAssistant,
		Content:   result.Content,
		Timestamp: time.Now(),
	}
	convCtx.Append(userTurn, assistantTurn)

	o.record(ctx, req.SessionID, analysis.TotalScore, userTurn, assistantTurn, result)

	return Result{DispatchResult: result, Score: analysis.TotalScore, Analysis: analysis}, nil
}

// Analyze scores a query and reports which model auto-selection would pick,
// without invoking anything or touching any session.
func (o *Orchestrator) Analyze(query string) (scoring.Analysis, models.ModelConfig, error) {
	analysis := o.scorer.Analyze(query)
	model, _, err := o.selector.Select(analysis.TotalScore, "")
	if err != nil {
		return analysis, models.ModelConfig{}, err
	}
	return analysis, model, nil
}

// record hands the finished turn to the persistence collaborator. Persistence
// failures are logged, not surfaced: the user already has their answer.
func (o *Orchestrator) record(ctx context.Context, sessionID string, score int, userTurn, assistantTurn conversation.Turn, result models.DispatchResult) {
	if o.recorder == nil {
		return
	}

	records := []models.TurnRecord{
		{
			Role:            conversation.RoleUser,
			Content:         userTurn.Content,
			ComplexityScore: score,
			Timestamp:       userTurn.Timestamp,
		},
		{
			Role:       conversation.RoleAssistant,
			Content:    assistantTurn.Content,
			ModelUsed:  result.Model,
			TokensUsed: result.TokensUsed,
			Latency:    result.Latency,
			Timestamp:  assistantTurn.Timestamp,
		},
	}
	if err := o.recorder.RecordTurns(ctx, sessionID, records); err != nil {
		fiberlog.Errorf("failed to persist turns for session %s: %v", sessionID, err)
	}
}
