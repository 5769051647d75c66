package models

import "time"

// ChatSession is one conversation owned by an (optional) user
type ChatSession struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(100)" json:"user_id,omitzero"`
	Title     string    `gorm:"type:varchar(255);default:'New Chat'" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`

	Messages  []Message  `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"messages,omitzero"`
	Feedbacks []Feedback `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
}

// Message is one persisted chat turn
type Message struct {
	ID              string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	SessionID       string         `gorm:"type:varchar(36);index;not null" json:"session_id"`
	Role            string         `gorm:"type:varchar(20);not null" json:"role"`
	Content         string         `gorm:"type:text;not null" json:"content"`
	ModelUsed       string         `gorm:"type:varchar(50)" json:"model_used,omitzero"`
	ComplexityScore *int           `json:"complexity_score,omitzero"`
	TokensUsed      *int           `json:"tokens_used,omitzero"`
	ResponseTimeMs  *int64         `json:"response_time_ms,omitzero"`
	Timestamp       time.Time      `gorm:"index" json:"timestamp"`
	Metadata        map[string]any `gorm:"serializer:json" json:"metadata,omitzero"`

	Suggestions []Suggestion `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"-"`
}

// Feedback is a user rating attached to a session and optionally one message
type Feedback struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	SessionID  string    `gorm:"type:varchar(36);index;not null" json:"session_id"`
	MessageID  string    `gorm:"type:varchar(36);index" json:"message_id,omitzero"`
	Rating     int       `gorm:"not null" json:"rating"`
	Comment    string    `gorm:"type:text" json:"comment,omitzero"`
	WasHelpful *bool     `json:"was_helpful,omitzero"`
	CreatedAt  time.Time `json:"created_at"`
}

// Suggestion is a generated follow-up attached to an assistant message
type Suggestion struct {
	ID             string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	MessageID      string    `gorm:"type:varchar(36);index;not null" json:"message_id"`
	SuggestionText string    `gorm:"type:text;not null" json:"suggestion_text"`
	Category       string    `gorm:"type:varchar(50)" json:"category,omitzero"`
	IsApplied      bool      `gorm:"default:false" json:"is_applied"`
	CreatedAt      time.Time `json:"created_at"`
}

func (ChatSession) TableName() string { return "chat_sessions" }
func (Message) TableName() string     { return "messages" }
func (Feedback) TableName() string    { return "feedbacks" }
func (Suggestion) TableName() string  { return "suggestions" }
