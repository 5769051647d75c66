package routing

import (
	"testing"

	"github.com/modelzoo/backend/internal/models"

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

func boolPtr(b bool) *bool { return &b }

func newTestSelector(t *testing.T) (*Selector, *stubRegistry) {
	t.Helper()

	registry := &stubRegistry{models: map[string]models.ModelConfig{
		"gpt-4":        {ID: "gpt-4", Provider: models.ProviderAzure},
		"gpt-35-turbo": {ID: "gpt-35-turbo", Provider: models.ProviderAzure},
		"offline":      {ID: "offline", Provider: models.ProviderAzure, Available: boolPtr(false)},
	}}
	routes := []models.RouteRule{
		{MinScore: 4, Model: "gpt-4"},
		{MinScore: 2, Model: "gpt-35-turbo"},
	}
	return NewSelector(registry, routes, "gpt-35-turbo"), registry
}

func TestSelectByScore(t *testing.T) {
	selector, _ := newTestSelector(t)

	tests := []struct {
		score int
		want  string
	}{
		{0, "gpt-35-turbo"},
		{1, "gpt-35-turbo"},
		{2, "gpt-35-turbo"},
		{3, "gpt-35-turbo"},
		{4, "gpt-4"},
		{9, "gpt-4"},
	}
	for _, tt := range tests {
		model, wasAuto, err := selector.Select(tt.score, "")
		require.NoError(t, err)
		assert.Equal(t, tt.want, model.ID, "score %d", tt.score)
		assert.True(t, wasAuto)
	}
}

func TestSelectMonotonic(t *testing.T) {
	selector, _ := newTestSelector(t)

	// A higher score never picks a lower tier than a lower score
	tier := func(id string) int {
		if id == "gpt-4" {
			return 1
		}
		return 0
	}

	prev := -1
	for score := 0; score <= 10; score++ {
		model, _, err := selector.Select(score, "")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, tier(model.ID), prev, "tier regressed at score %d", score)
		prev = tier(model.ID)
	}
}

func TestSelectOverrideHonored(t *testing.T) {
	selector, _ := newTestSelector(t)

	// Override wins even when the score would route elsewhere
	model, wasAuto, err := selector.Select(9, "gpt-35-turbo")
	require.NoError(t, err)
	assert.Equal(t, "gpt-35-turbo", model.ID)
	assert.False(t, wasAuto)
}

func TestSelectOverrideUnknownModel(t *testing.T) {
	selector, _ := newTestSelector(t)

	_, _, err := selector.Select(0, "no-such-model")
	require.Error(t, err)
	assert.Equal(t, models.ErrorTypeInvalidOverride, models.Classify(err))
}

func TestSelectOverrideUnavailableModel(t *testing.T) {
	selector, _ := newTestSelector(t)

	_, _, err := selector.Select(0, "offline")
	require.Error(t, err)
	assert.Equal(t, models.ErrorTypeInvalidOverride, models.Classify(err))
}

func TestSelectSkipsUnavailableTier(t *testing.T) {
	registry := &stubRegistry{models: map[string]models.ModelConfig{
		"gpt-4":        {ID: "gpt-4", Available: boolPtr(false)},
		"gpt-35-turbo": {ID: "gpt-35-turbo"},
	}}
	routes := []models.RouteRule{
		{MinScore: 4, Model: "gpt-4"},
		{MinScore: 2, Model: "gpt-35-turbo"},
	}
	selector := NewSelector(registry, routes, "gpt-35-turbo")

	model, wasAuto, err := selector.Select(6, "")
	require.NoError(t, err)
	assert.Equal(t, "gpt-35-turbo", model.ID)
	assert.True(t, wasAuto)
}

func TestSelectEverythingUnavailable(t *testing.T) {
	registry := &stubRegistry{models: map[string]models.ModelConfig{
		"gpt-35-turbo": {ID: "gpt-35-turbo", Available: boolPtr(false)},
	}}
	routes := []models.RouteRule{{MinScore: 2, Model: "gpt-35-turbo"}}
	selector := NewSelector(registry, routes, "gpt-35-turbo")

	_, _, err := selector.Select(3, "")
	require.Error(t, err)
	assert.Equal(t, models.ErrorTypeUnavailable, models.Classify(err))
}

func TestFallbackAccessor(t *testing.T) {
	selector, _ := newTestSelector(t)

	model, ok := selector.Fallback()
	require.True(t, ok)
	assert.Equal(t, "gpt-35-turbo", model.ID)
}
