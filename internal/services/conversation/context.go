// Package conversation holds the in-memory turn history supplied to the model
// on each request. Each session owns one Context; turns on the same session
// serialize through the context's turn lock while different sessions proceed
// fully in parallel.
package conversation

import (
	"sync"
	"time"

	"github.com/modelzoo/backend/internal/models"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one (role, content) entry in a session's history
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Context is the ordered turn history for one session. Bounding policy:
// the newest MaxMessages entries are retained, oldest dropped first; the
// model request window is cut separately via Window.
//
// Two locks with distinct jobs: mu guards the slice, turnMu serializes whole
// logical turns (invoke + append) so concurrent requests on one session
// cannot interleave their history writes.
type Context struct {
	mu        sync.Mutex
	turnMu    sync.Mutex
	sessionID string
	turns     []Turn
	cfg       models.ConversationConfig
}

func newContext(sessionID string, cfg models.ConversationConfig) *Context {
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 40
	}
	if cfg.WindowTurns <= 0 {
		cfg.WindowTurns = 10
	}
	return &Context{
		sessionID: sessionID,
		turns:     make([]Turn, 0, cfg.MaxMessages),
		cfg:       cfg,
	}
}

// SessionID returns the owning session's id
func (c *Context) SessionID() string {
	return c.sessionID
}

// BeginTurn acquires the per-session turn exclusion. Callers must pair it
// with EndTurn.
func (c *Context) BeginTurn() {
	c.turnMu.Lock()
}

// EndTurn releases the per-session turn exclusion
func (c *Context) EndTurn() {
	c.turnMu.Unlock()
}

// Append adds turns to the history, dropping the oldest entries once the
// configured cap is exceeded.
func (c *Context) Append(turns ...Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.turns = append(c.turns, turns...)
	if overflow := len(c.turns) - c.cfg.MaxMessages; overflow > 0 {
		c.turns = append(c.turns[:0:0], c.turns[overflow:]...)
	}
}

// Window returns the most recent WindowTurns turns for the model request.
// The returned slice is a copy; callers may not mutate history through it.
func (c *Context) Window() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := 0
	if len(c.turns) > c.cfg.WindowTurns {
		start = len(c.turns) - c.cfg.WindowTurns
	}
	window := make([]Turn, len(c.turns)-start)
	copy(window, c.turns[start:])
	return window
}

// Len returns the number of stored turns
func (c *Context) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}
