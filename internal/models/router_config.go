package models

// LengthTier awards points once the query length passes a character threshold
type LengthTier struct {
	MinChars int `yaml:"min_chars" json:"min_chars"`
	Points   int `yaml:"points" json:"points"`
}

// ScoringConfig holds the tunable inputs of the complexity scorer.
// Every threshold here is explicit policy rather than a hardcoded constant.
type ScoringConfig struct {
	// LengthTiers is evaluated longest-first; the first tier the query exceeds wins.
	LengthTiers []LengthTier `yaml:"length_tiers" json:"length_tiers,omitzero"`
	// HighKeywords contribute KeywordPoints once, flag-based, regardless of match count.
	HighKeywords []string `yaml:"high_keywords" json:"high_keywords,omitzero"`
	// MediumKeywords contribute 1 point once.
	MediumKeywords []string `yaml:"medium_keywords" json:"medium_keywords,omitzero"`
	// LowKeywords zero the keyword score when the whole query is exactly one of them.
	LowKeywords []string `yaml:"low_keywords" json:"low_keywords,omitzero"`
	// MaxScore caps the total when > 0; 0 means uncapped.
	MaxScore int `yaml:"max_score,omitempty" json:"max_score,omitzero"`
}

// RouteRule maps a minimum complexity score to a model id.
type RouteRule struct {
	MinScore int    `yaml:"min_score" json:"min_score"`
	Model    string `yaml:"model" json:"model"`
}

// RetryConfig controls the dispatcher's retry and backoff behavior
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts,omitempty" json:"max_attempts,omitzero"`
	BaseDelayMs int `yaml:"base_delay_ms,omitempty" json:"base_delay_ms,omitzero"`
	MaxDelayMs  int `yaml:"max_delay_ms,omitempty" json:"max_delay_ms,omitzero"`
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool `yaml:"enabled" json:"enabled"`
	FailureThreshold int  `yaml:"failure_threshold,omitempty" json:"failure_threshold,omitzero"`
	SuccessThreshold int  `yaml:"success_threshold,omitempty" json:"success_threshold,omitzero"`
	OpenTimeoutMs    int  `yaml:"open_timeout_ms,omitempty" json:"open_timeout_ms,omitzero"`
}

// ConversationConfig bounds the in-memory conversation context.
type ConversationConfig struct {
	// MaxMessages is the hard cap on stored messages per session; oldest are dropped.
	MaxMessages int `yaml:"max_messages,omitempty" json:"max_messages,omitzero"`
	// WindowTurns is how many recent turns are sent to the model on each request.
	WindowTurns int `yaml:"window_turns,omitempty" json:"window_turns,omitzero"`
}

// RouterConfig wires the scorer, the selection table, and the dispatch policy together
type RouterConfig struct {
	Scoring ScoringConfig `yaml:"scoring" json:"scoring"`
	// Routes is the descending {threshold: model} table; first satisfied rule wins.
	Routes         []RouteRule          `yaml:"routes" json:"routes"`
	FallbackModel  string               `yaml:"fallback_model" json:"fallback_model"`
	Retry          RetryConfig          `yaml:"retry" json:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker" json:"circuit_breaker"`
	Conversation   ConversationConfig   `yaml:"conversation" json:"conversation"`
	SystemPrompt   string               `yaml:"system_prompt,omitempty" json:"system_prompt,omitzero"`
}

// GenerationConfig is passed through unchanged to the model invocation
type GenerationConfig struct {
	MaxTokens   int     `yaml:"max_tokens,omitempty" json:"max_tokens,omitzero"`
	Temperature float64 `yaml:"temperature,omitempty" json:"temperature,omitzero"`
}
