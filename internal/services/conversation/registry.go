package conversation

import (
	"sync"

	"github.com/modelzoo/backend/internal/models"
)

// Registry hands out exactly one Context per session id. It replaces the
// original's ambient global session map with an owned object per session.
type Registry struct {
	mu       sync.Mutex
	contexts map[string]*Context
	cfg      models.ConversationConfig
}

// NewRegistry creates an empty registry with the given bounding config
func NewRegistry(cfg models.ConversationConfig) *Registry {
	return &Registry{
		contexts: make(map[string]*Context),
		cfg:      cfg,
	}
}

// Get returns the session's context, creating it on first use
func (r *Registry) Get(sessionID string) *Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ctx, ok := r.contexts[sessionID]; ok {
		return ctx
	}
	ctx := newContext(sessionID, r.cfg)
	r.contexts[sessionID] = ctx
	return ctx
}

// Seed populates a fresh context from persisted history. Used when a session
// is resumed after a restart; an already-loaded context is left untouched.
func (r *Registry) Seed(sessionID string, turns []Turn) *Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ctx, ok := r.contexts[sessionID]; ok {
		return ctx
	}
	ctx := newContext(sessionID, r.cfg)
	ctx.turns = append(ctx.turns, turns...)
	if overflow := len(ctx.turns) - ctx.cfg.MaxMessages; overflow > 0 {
		ctx.turns = append(ctx.turns[:0:0], ctx.turns[overflow:]...)
	}
	r.contexts[sessionID] = ctx
	return ctx
}

// Evict drops a session's context, e.g. after session deletion
func (r *Registry) Evict(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.contexts, sessionID)
}
