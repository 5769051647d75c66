package models

// Provider identifies which SDK backend serves a model deployment
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAzure     Provider = "azure"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

// ModelConfig describes one deployable model tier (unified for YAML config and API responses)
type ModelConfig struct {
	ID              string   `yaml:"id" json:"id"`
	DisplayName     string   `yaml:"display_name" json:"display_name"`
	Description     string   `yaml:"description,omitempty" json:"description,omitzero"`
	Provider        Provider `yaml:"provider" json:"provider"`
	DeploymentName  string   `yaml:"deployment_name" json:"-"`
	MaxTokens       int      `yaml:"max_tokens,omitempty" json:"max_tokens,omitzero"`
	CostPer1KTokens float64  `yaml:"cost_per_1k_tokens,omitempty" json:"cost_per_1k_tokens,omitzero"`
	LatencyTier     string   `yaml:"latency_tier,omitempty" json:"latency_tier,omitzero"`
	Capabilities    []string `yaml:"capabilities,omitempty" json:"capabilities,omitzero"`
	Available       *bool    `yaml:"available,omitempty" json:"available"`
}

// IsAvailable treats the availability flag as opt-out: a model is available unless disabled.
func (m ModelConfig) IsAvailable() bool {
	return m.Available == nil || *m.Available
}

// ProviderConfig holds credentials and transport settings for one provider backend
type ProviderConfig struct {
	APIKey     string            `yaml:"api_key" json:"api_key,omitzero"`
	BaseURL    string            `yaml:"base_url" json:"base_url,omitzero"`
	APIVersion string            `yaml:"api_version" json:"api_version,omitzero"` // Azure deployments only
	TimeoutMs  int               `yaml:"timeout_ms" json:"timeout_ms,omitzero"`
	Headers    map[string]string `yaml:"headers" json:"headers,omitzero"`
}
