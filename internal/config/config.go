package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/modelzoo/backend/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Server    models.ServerConfig                       `yaml:"server"`
	Models    []models.ModelConfig                      `yaml:"models"`
	Providers map[models.Provider]models.ProviderConfig `yaml:"providers"`
	Router    models.RouterConfig                       `yaml:"router"`
	Database  *models.DatabaseConfig                    `yaml:"database,omitempty"`
	RedisURL  string                                    `yaml:"redis_url,omitempty"`
}

// LoadFromFile loads configuration from a YAML file with environment variable substitution
func LoadFromFile(configPath string) (*Config, error) {
	// Validate and clean the file path to prevent directory traversal
	cleanPath := filepath.Clean(configPath)
	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("invalid config path: path traversal not allowed")
	}

	ext := filepath.Ext(cleanPath)
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("invalid config file: only .yaml and .yml files are allowed")
	}

	data, err := os.ReadFile(cleanPath) // #nosec G304 - path is validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	content := substituteEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

// LoadEnvFiles loads environment variables from .env files in order of precedence
// Loads files in the order provided (first has highest priority)
func LoadEnvFiles(envFiles []string) {
	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err == nil {
				fiberlog.Infof("Loaded environment variables from %s", envFile)
			}
		}
	}
}

// New creates a new Config instance by loading from the specified config file path
func New(configPath string) (*Config, error) {
	return LoadFromFile(configPath)
}

// substituteEnvVars replaces ${VAR_NAME} and ${VAR_NAME:-default} patterns with environment variables
func substituteEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::(-[^}]*))?\}`)

	return re.ReplaceAllStringFunc(content, func(match string) string {
		submatches := re.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""
		if len(submatches) > 2 && submatches[2] != "" {
			defaultValue = strings.TrimPrefix(submatches[2], "-")
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// applyDefaults fills in routing policy defaults so a minimal YAML file still
// yields a working router. Every value here is overridable from config.
func (c *Config) applyDefaults() {
	r := &c.Router

	if len(r.Scoring.LengthTiers) == 0 {
		r.Scoring.LengthTiers = []models.LengthTier{
			{MinChars: 1000, Points: 3},
			{MinChars: 500, Points: 2},
			{MinChars: 200, Points: 1},
		}
	}
	// Evaluated longest-first regardless of YAML order
	sort.Slice(r.Scoring.LengthTiers, func(i, j int) bool {
		return r.Scoring.LengthTiers[i].MinChars > r.Scoring.LengthTiers[j].MinChars
	})

	if len(r.Scoring.HighKeywords) == 0 {
		r.Scoring.HighKeywords = []string{
			"analyze", "explain in detail", "compare", "contrast", "evaluate",
			"synthesize", "create a plan", "design", "architect", "optimize",
			"debug complex", "refactor", "implement algorithm",
		}
	}
	if len(r.Scoring.MediumKeywords) == 0 {
		r.Scoring.MediumKeywords = []string{
			"summarize", "describe", "list", "what is", "how does", "example",
			"convert", "translate", "format", "write code",
		}
	}
	if len(r.Scoring.LowKeywords) == 0 {
		r.Scoring.LowKeywords = []string{"hi", "hello", "thanks", "yes", "no", "ok", "bye"}
	}

	// First satisfied rule wins, so keep the table sorted descending
	sort.Slice(r.Routes, func(i, j int) bool {
		return r.Routes[i].MinScore > r.Routes[j].MinScore
	})

	if r.Retry.MaxAttempts <= 0 {
		r.Retry.MaxAttempts = 3
	}
	if r.Retry.BaseDelayMs <= 0 {
		r.Retry.BaseDelayMs = 250
	}
	if r.Retry.MaxDelayMs <= 0 {
		r.Retry.MaxDelayMs = 4000
	}

	if r.Conversation.MaxMessages <= 0 {
		r.Conversation.MaxMessages = 40
	}
	if r.Conversation.WindowTurns <= 0 {
		r.Conversation.WindowTurns = 10
	}

	if r.SystemPrompt == "" {
		r.SystemPrompt = "You are a helpful AI assistant in ModelZoo. Provide clear, accurate, and helpful responses. Be concise but thorough."
	}
}

// GetModel returns the configured model with the given id
func (c *Config) GetModel(id string) (models.ModelConfig, bool) {
	for _, m := range c.Models {
		if m.ID == id {
			return m, true
		}
	}
	return models.ModelConfig{}, false
}

// AvailableModels returns every model not flagged unavailable
func (c *Config) AvailableModels() []models.ModelConfig {
	available := make([]models.ModelConfig, 0, len(c.Models))
	for _, m := range c.Models {
		if m.IsAvailable() {
			available = append(available, m)
		}
	}
	return available
}

// GetProviderConfig returns the configuration for a provider backend
func (c *Config) GetProviderConfig(provider models.Provider) (models.ProviderConfig, bool) {
	cfg, exists := c.Providers[provider]
	return cfg, exists
}

// GetNormalizedLogLevel returns the log level in lowercase for consistent comparison
func (c *Config) GetNormalizedLogLevel() string {
	return strings.ToLower(c.Server.LogLevel)
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Validate checks if all required configuration values are set
func (c *Config) Validate() error {
	var missing []string

	if c.Server.Port == "" {
		missing = append(missing, "server.port")
	}
	if c.Server.AllowedOrigins == "" {
		missing = append(missing, "server.allowed_origins")
	}
	if len(c.Models) == 0 {
		missing = append(missing, "models")
	}
	if len(c.Router.Routes) == 0 {
		missing = append(missing, "router.routes")
	}
	if c.Router.FallbackModel == "" {
		missing = append(missing, "router.fallback_model")
	}

	if len(missing) > 0 {
		return &ValidationError{MissingFields: missing}
	}

	for _, rule := range c.Router.Routes {
		if _, ok := c.GetModel(rule.Model); !ok {
			return fmt.Errorf("router.routes references unknown model %q", rule.Model)
		}
	}
	if _, ok := c.GetModel(c.Router.FallbackModel); !ok {
		return fmt.Errorf("router.fallback_model references unknown model %q", c.Router.FallbackModel)
	}
	for _, m := range c.Models {
		if _, ok := c.Providers[m.Provider]; !ok {
			return fmt.Errorf("model %q references unconfigured provider %q", m.ID, m.Provider)
		}
	}

	return nil
}

// ValidationError represents configuration validation errors
type ValidationError struct {
	MissingFields []string
}

func (e *ValidationError) Error() string {
	return "missing required configuration fields: " + strings.Join(e.MissingFields, ", ")
}
