// Package providers is the model-invocation boundary. Each invoker turns a
// conversation window into one SDK call against a hosted model and maps the
// backend's failures onto the dispatch taxonomy: transient, unavailable, or
// invalid request.
package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelzoo/backend/internal/models"
	"github.com/modelzoo/backend/internal/services/conversation"
)

// Invocation is one model call: the conversation window plus passthrough
// generation settings.
type Invocation struct {
	System     string
	Turns      []conversation.Turn
	Generation models.GenerationConfig
}

// Result carries the model's reply and its token accounting
type Result struct {
	Content    string
	TokensUsed int
}

// Invoker executes one invocation against a model deployment. Failures are
// returned as *models.AppError with a taxonomy type; anything else is treated
// as internal by the dispatcher.
type Invoker interface {
	Invoke(ctx context.Context, model models.ModelConfig, inv Invocation) (Result, error)
}

// classifyStatus maps a provider HTTP status onto the dispatch taxonomy
func classifyStatus(modelID string, status int, cause error) *models.AppError {
	switch {
	case status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status == http.StatusInternalServerError,
		status == http.StatusGatewayTimeout:
		return models.NewTransientError(modelID, http.StatusText(status), cause)
	case status == http.StatusBadGateway,
		status == http.StatusServiceUnavailable,
		status == 529: // Anthropic "overloaded"
		return models.NewUnavailableError(modelID, cause)
	case status >= 400 && status < 500:
		return models.NewInvalidRequestError("model rejected the request", cause)
	default:
		return models.NewTransientError(modelID, "unexpected provider failure", cause)
	}
}

// classifyTransport handles failures that never produced an HTTP status.
// A per-attempt timeout or a dropped connection is transient; the dispatcher
// decides whether the caller's own deadline has already won.
func classifyTransport(modelID string, cause error) *models.AppError {
	if errors.Is(cause, context.DeadlineExceeded) || errors.Is(cause, context.Canceled) {
		return models.NewTransientError(modelID, "invocation cancelled or timed out", cause)
	}
	return models.NewTransientError(modelID, "transport failure", cause)
}
