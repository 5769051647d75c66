// Package routing maps a complexity score (or an explicit user override) to a
// configured model deployment.
package routing

import (
	"github.com/modelzoo/backend/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Registry exposes the configured model set to the selector
type Registry interface {
	GetModel(id string) (models.ModelConfig, bool)
}

// Selector picks a model from a descending {threshold: model} table.
// The table is sorted descending and the first satisfied rule wins, which
// makes selection monotonic in the score by construction.
type Selector struct {
	registry Registry
	routes   []models.RouteRule
	fallback string
}

// NewSelector creates a selector over the configured route table.
// Routes must be sorted by MinScore descending (config loading guarantees it).
func NewSelector(registry Registry, routes []models.RouteRule, fallbackModel string) *Selector {
	return &Selector{
		registry: registry,
		routes:   routes,
		fallback: fallbackModel,
	}
}

// Select resolves the model for a scored query. A valid, available override
// always wins and is reported as not auto-selected. An override naming an
// unknown or unavailable model is a hard error: the caller decides what to do
// with the user's intent, the selector never silently discards it.
func (s *Selector) Select(score int, override string) (models.ModelConfig, bool, error) {
	if override != "" {
		model, ok := s.registry.GetModel(override)
		if !ok || !model.IsAvailable() {
			return models.ModelConfig{}, false, models.NewInvalidOverrideError(override)
		}
		fiberlog.Debugf("model %s selected by user override", model.ID)
		return model, false, nil
	}

	for _, rule := range s.routes {
		if score < rule.MinScore {
			continue
		}
		model, ok := s.registry.GetModel(rule.Model)
		if !ok {
			// Validated at startup; only reachable if config mutated underneath us
			return models.ModelConfig{}, false, models.NewInternalError("route table references unknown model "+rule.Model, nil)
		}
		if !model.IsAvailable() {
			fiberlog.Warnf("model %s matched score %d but is unavailable, trying next rule", model.ID, score)
			continue
		}
		fiberlog.Debugf("model %s auto-selected for score %d", model.ID, score)
		return model, true, nil
	}

	// Below every threshold (or every matching tier unavailable): use the
	// fallback tier, deliberately the conservative cheap default.
	model, ok := s.registry.GetModel(s.fallback)
	if !ok || !model.IsAvailable() {
		return models.ModelConfig{}, false, models.NewUnavailableError(s.fallback, nil)
	}
	fiberlog.Debugf("model %s auto-selected as default for score %d", model.ID, score)
	return model, true, nil
}

// Fallback returns the configured fallback model for dispatch.
func (s *Selector) Fallback() (models.ModelConfig, bool) {
	return s.registry.GetModel(s.fallback)
}
