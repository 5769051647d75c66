package models

import "time"

// ChatRequest is the caller-facing chat payload
type ChatRequest struct {
	Message   string `json:"message"`
	Model     string `json:"model,omitzero"`      // explicit override, empty = auto-select
	SessionID string `json:"session_id,omitzero"` // empty = create a new session
	UserID    string `json:"user_id,omitzero"`

	// Generation overrides, passed through unchanged to the invocation
	MaxTokens   int     `json:"max_tokens,omitzero"`
	Temperature float64 `json:"temperature,omitzero"`
}

// ChatResponse is the caller-facing result of one chat turn
type ChatResponse struct {
	SessionID       string          `json:"session_id"`
	Message         MessageResponse `json:"message"`
	ChosenModel     string          `json:"chosen_model"`
	WasAutoSelected bool            `json:"was_auto_selected"`
	ComplexityScore int             `json:"complexity_score"`
	Outcome         Outcome         `json:"outcome"`
	LatencyMs       int64           `json:"latency_ms"`
}

// MessageResponse is the API shape of a persisted message
type MessageResponse struct {
	ID              string    `json:"id"`
	Role            string    `json:"role"`
	Content         string    `json:"content"`
	ModelUsed       string    `json:"model_used,omitzero"`
	ComplexityScore *int      `json:"complexity_score,omitzero"`
	TokensUsed      *int      `json:"tokens_used,omitzero"`
	ResponseTimeMs  *int64    `json:"response_time_ms,omitzero"`
	Timestamp       time.Time `json:"timestamp"`
	Suggestions     []string  `json:"suggestions,omitzero"`
}

// SessionCreateRequest creates a new chat session
type SessionCreateRequest struct {
	Title  string `json:"title,omitzero"`
	UserID string `json:"user_id,omitzero"`
}

// SessionUpdateRequest renames a chat session
type SessionUpdateRequest struct {
	Title string `json:"title"`
}

// SessionSummary is a session list entry with message stats
type SessionSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	IsActive     bool      `json:"is_active"`
	MessageCount int64     `json:"message_count"`
	LastMessage  string    `json:"last_message,omitzero"`
}

// FeedbackCreateRequest records a user rating for a message or session
type FeedbackCreateRequest struct {
	SessionID  string `json:"session_id"`
	MessageID  string `json:"message_id,omitzero"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment,omitzero"`
	WasHelpful *bool  `json:"was_helpful,omitzero"`
}

// FeedbackStats aggregates feedback across all sessions
type FeedbackStats struct {
	AverageRating float64 `json:"average_rating"`
	TotalFeedback int64   `json:"total_feedback"`
	HelpfulCount  int64   `json:"helpful_count"`
	HelpfulRatio  float64 `json:"helpful_ratio"`
}
