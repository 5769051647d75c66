package models

import "time"

// Outcome tags how a dispatch ended. Callers and persisted history must be
// able to tell a direct success from a fallback success from a failure.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFellBack  Outcome = "fell-back"
	OutcomeFailed    Outcome = "failed"
)

// Attempt records a single invocation attempt inside one logical dispatch
type Attempt struct {
	Model         string        `json:"model"`
	AttemptNumber int           `json:"attempt_number"`
	Fallback      bool          `json:"fallback,omitzero"`
	ErrorType     ErrorType     `json:"error_type,omitzero"`
	ErrorMessage  string        `json:"error_message,omitzero"`
	Latency       time.Duration `json:"latency_ms"`
}

// DispatchResult is the outcome of one logical request through the dispatcher
type DispatchResult struct {
	Model           string        `json:"model"`
	WasAutoSelected bool          `json:"was_auto_selected"`
	Content         string        `json:"content,omitzero"`
	TokensUsed      int           `json:"tokens_used,omitzero"`
	// Latency is the winning attempt's elapsed time on success, cumulative
	// elapsed time across every attempt on failure.
	Latency  time.Duration `json:"latency_ms"`
	Outcome  Outcome       `json:"outcome"`
	Attempts []Attempt     `json:"attempts,omitzero"`
}

// TurnRecord is handed to the persistence collaborator after each successful
// turn; the orchestration core never reads or writes storage directly.
type TurnRecord struct {
	Role            string
	Content         string
	ModelUsed       string
	ComplexityScore int
	TokensUsed      int
	Latency         time.Duration
	Timestamp       time.Time
}
