package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/modelzoo/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
server:
  port: "8080"
  allowed_origins: "http://localhost:3000"
providers:
  azure:
    api_key: "test-key"
models:
  - id: gpt-4
    display_name: GPT-4
    provider: azure
    deployment_name: gpt-4
  - id: gpt-35-turbo
    display_name: GPT-3.5 Turbo
    provider: azure
    deployment_name: gpt-35-turbo
router:
  routes:
    - min_score: 2
      model: gpt-35-turbo
    - min_score: 4
      model: gpt-4
  fallback_model: gpt-35-turbo
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFileAppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	// Scoring defaults mirror the routing policy
	assert.NotEmpty(t, cfg.Router.Scoring.LengthTiers)
	assert.NotEmpty(t, cfg.Router.Scoring.HighKeywords)
	assert.NotEmpty(t, cfg.Router.Scoring.LowKeywords)

	assert.Equal(t, 3, cfg.Router.Retry.MaxAttempts)
	assert.Equal(t, 250, cfg.Router.Retry.BaseDelayMs)
	assert.Equal(t, 4000, cfg.Router.Retry.MaxDelayMs)

	assert.Equal(t, 40, cfg.Router.Conversation.MaxMessages)
	assert.Equal(t, 10, cfg.Router.Conversation.WindowTurns)
	assert.NotEmpty(t, cfg.Router.SystemPrompt)
}

func TestLoadFromFileSortsRoutesDescending(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	require.Len(t, cfg.Router.Routes, 2)
	assert.Equal(t, 4, cfg.Router.Routes[0].MinScore)
	assert.Equal(t, 2, cfg.Router.Routes[1].MinScore)
}

func TestLoadFromFileEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_MODELZOO_PORT", "9090")

	yaml := `
server:
  port: "${TEST_MODELZOO_PORT:-8080}"
  allowed_origins: "${TEST_MODELZOO_ORIGINS:-http://localhost:3000}"
providers:
  azure:
    api_key: "k"
models:
  - id: m1
    display_name: M1
    provider: azure
    deployment_name: m1
router:
  routes:
    - min_score: 0
      model: m1
  fallback_model: m1
`
	cfg, err := LoadFromFile(writeConfig(t, yaml))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	// Unset variable falls back to its default
	assert.Equal(t, "http://localhost:3000", cfg.Server.AllowedOrigins)
}

func TestLoadFromFileRejectsNonYAML(t *testing.T) {
	_, err := LoadFromFile("config.json")
	require.Error(t, err)
}

func TestLoadFromFileRejectsTraversal(t *testing.T) {
	_, err := LoadFromFile("../../etc/config.yaml")
	require.Error(t, err)
}

func TestValidateMissingFields(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	require.Error(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.MissingFields, "server.port")
	assert.Contains(t, vErr.MissingFields, "models")
	assert.Contains(t, vErr.MissingFields, "router.routes")
	assert.Contains(t, vErr.MissingFields, "router.fallback_model")
}

func TestValidateCrossReferences(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalYAML))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	t.Run("route references unknown model", func(t *testing.T) {
		broken := *cfg
		broken.Router.Routes = []models.RouteRule{{MinScore: 2, Model: "ghost"}}
		assert.Error(t, broken.Validate())
	})

	t.Run("fallback references unknown model", func(t *testing.T) {
		broken := *cfg
		broken.Router.FallbackModel = "ghost"
		assert.Error(t, broken.Validate())
	})

	t.Run("model references unconfigured provider", func(t *testing.T) {
		broken := *cfg
		broken.Models = []models.ModelConfig{{ID: "m", Provider: models.ProviderGemini, DeploymentName: "m"}}
		broken.Router.Routes = []models.RouteRule{{MinScore: 0, Model: "m"}}
		broken.Router.FallbackModel = "m"
		assert.Error(t, broken.Validate())
	})
}

func TestGetModelAndAvailability(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	model, ok := cfg.GetModel("gpt-4")
	require.True(t, ok)
	assert.Equal(t, "GPT-4", model.DisplayName)
	assert.True(t, model.IsAvailable())

	_, ok = cfg.GetModel("ghost")
	assert.False(t, ok)

	assert.Len(t, cfg.AvailableModels(), 2)
}
