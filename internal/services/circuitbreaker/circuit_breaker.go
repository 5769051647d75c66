// Package circuitbreaker tracks per-model health in Redis so every backend
// instance shares one view of which deployments are struggling. A model whose
// breaker is open is treated as unavailable by the dispatcher and skipped
// straight to fallback.
package circuitbreaker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/modelzoo/backend/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case HalfOpen:
		return "HalfOpen"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

const (
	breakerKeyPrefix   = "model_breaker:"
	stateKey           = "state"
	failureCountKey    = "failure_count"
	successCountKey    = "success_count"
	lastFailureTimeKey = "last_failure_time"
	lastStateChangeKey = "last_state_change"
	redisOpTimeout     = 1 * time.Second
	transitionRetries  = 3
)

// Lua scripts keep the count-and-transition step atomic across instances.
const (
	// recordSuccessScript resets the failure count and, in HalfOpen, counts
	// successes toward closing the breaker.
	// KEYS: state, failure_count, success_count, last_state_change
	// ARGV: success threshold, current unix timestamp
	recordSuccessScript = `
		local state = tonumber(redis.call('GET', KEYS[1]) or '0')
		redis.call('SET', KEYS[2], 0)

		if state == 2 then
			local count = redis.call('INCR', KEYS[3])
			if count >= tonumber(ARGV[1]) then
				redis.call('SET', KEYS[1], 0)
				redis.call('SET', KEYS[3], 0)
				redis.call('SET', KEYS[4], ARGV[2])
				return 2
			end
			return 1
		end
		return 0
	`

	// recordFailureScript counts failures toward opening the breaker. Any
	// failure while HalfOpen reopens it immediately.
	// KEYS: state, failure_count, last_failure_time, last_state_change, success_count
	// ARGV: failure threshold, current unix timestamp
	recordFailureScript = `
		local state = tonumber(redis.call('GET', KEYS[1]) or '0')
		local failureCount = redis.call('INCR', KEYS[2])
		redis.call('SET', KEYS[3], ARGV[2])

		local shouldOpen = (state == 0 and failureCount >= tonumber(ARGV[1])) or state == 2

		if shouldOpen then
			redis.call('SET', KEYS[1], 1)
			redis.call('SET', KEYS[4], ARGV[2])
			redis.call('SET', KEYS[5], '0')
			return 1
		end
		return 0
	`
)

// CircuitBreaker guards a single model deployment
type CircuitBreaker struct {
	redisClient *redis.Client
	modelID     string
	cfg         models.CircuitBreakerConfig
	keyPrefix   string
}

type keyBuilder struct {
	prefix string
}

func (kb *keyBuilder) state() string        { return kb.prefix + stateKey }
func (kb *keyBuilder) failureCount() string { return kb.prefix + failureCountKey }
func (kb *keyBuilder) successCount() string { return kb.prefix + successCountKey }
func (kb *keyBuilder) lastFailure() string  { return kb.prefix + lastFailureTimeKey }
func (kb *keyBuilder) lastChange() string   { return kb.prefix + lastStateChangeKey }

// NewForModel creates a breaker guarding the given model id
func NewForModel(redisClient *redis.Client, modelID string, cfg models.CircuitBreakerConfig) *CircuitBreaker {
	cb := &CircuitBreaker{
		redisClient: redisClient,
		modelID:     modelID,
		cfg:         cfg,
		keyPrefix:   breakerKeyPrefix + modelID + ":",
	}
	cb.initializeState()
	return cb
}

func (cb *CircuitBreaker) openTimeout() time.Duration {
	return time.Duration(cb.cfg.OpenTimeoutMs) * time.Millisecond
}

func (cb *CircuitBreaker) initializeState() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	exists, err := cb.redisClient.Exists(ctx, cb.keyPrefix+stateKey).Result()
	if err != nil {
		fiberlog.Errorf("CircuitBreaker: failed to check state existence for %s: %v", cb.modelID, err)
		return
	}

	if exists == 0 {
		pipe := cb.redisClient.Pipeline()
		pipe.Set(ctx, cb.keyPrefix+stateKey, int(Closed), 0)
		pipe.Set(ctx, cb.keyPrefix+failureCountKey, 0, 0)
		pipe.Set(ctx, cb.keyPrefix+successCountKey, 0, 0)
		pipe.Set(ctx, cb.keyPrefix+lastStateChangeKey, time.Now().Unix(), 0)

		if _, err := pipe.Exec(ctx); err != nil {
			fiberlog.Errorf("CircuitBreaker: failed to initialize state for %s: %v", cb.modelID, err)
		} else {
			fiberlog.Debugf("CircuitBreaker: initialized state for model %s", cb.modelID)
		}
	}
}

// CanExecute reports whether the model may be tried right now. Redis failures
// fail open: routing keeps working when the shared state store is down.
func (cb *CircuitBreaker) CanExecute() bool {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	state, err := cb.getState(ctx)
	if err != nil {
		fiberlog.Errorf("CircuitBreaker: failed to get state for %s, allowing execution: %v", cb.modelID, err)
		return true
	}

	switch state {
	case Closed:
		return true
	case Open:
		lastFailureTime, err := cb.redisClient.Get(ctx, cb.keyPrefix+lastFailureTimeKey).Int64()
		if err != nil {
			fiberlog.Errorf("CircuitBreaker: failed to get last failure time for %s: %v", cb.modelID, err)
			return false
		}

		if time.Since(time.Unix(lastFailureTime, 0)) > cb.openTimeout() {
			if cb.transitionToState(HalfOpen) {
				return true
			}
		}
		return false
	case HalfOpen:
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	kb := &keyBuilder{prefix: cb.keyPrefix}
	keys := []string{kb.state(), kb.failureCount(), kb.successCount(), kb.lastChange()}
	args := []any{cb.cfg.SuccessThreshold, time.Now().Unix()}

	result, err := cb.redisClient.Eval(ctx, recordSuccessScript, keys, args...).Int()
	if err != nil {
		fiberlog.Errorf("CircuitBreaker: failed to record success for %s: %v", cb.modelID, err)
		return
	}

	switch result {
	case 2:
		fiberlog.Infof("CircuitBreaker: %s transitioned to Closed after recovery", cb.modelID)
	case 1:
		fiberlog.Infof("CircuitBreaker: %s recorded success in HalfOpen", cb.modelID)
	default:
		fiberlog.Debugf("CircuitBreaker: %s recorded success", cb.modelID)
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	kb := &keyBuilder{prefix: cb.keyPrefix}
	keys := []string{kb.state(), kb.failureCount(), kb.lastFailure(), kb.lastChange(), kb.successCount()}
	args := []any{cb.cfg.FailureThreshold, time.Now().Unix()}

	result, err := cb.redisClient.Eval(ctx, recordFailureScript, keys, args...).Int()
	if err != nil {
		fiberlog.Errorf("CircuitBreaker: failed to record failure for %s: %v", cb.modelID, err)
		return
	}

	if result == 1 {
		fiberlog.Warnf("CircuitBreaker: %s transitioned to Open after failure", cb.modelID)
	} else {
		fiberlog.Debugf("CircuitBreaker: %s recorded failure", cb.modelID)
	}
}

func (cb *CircuitBreaker) GetState() State {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	state, err := cb.getState(ctx)
	if err != nil {
		fiberlog.Errorf("CircuitBreaker: failed to get state for %s, returning Closed: %v", cb.modelID, err)
		return Closed
	}
	return state
}

// Reset forces the breaker back to Closed, e.g. from an admin endpoint
func (cb *CircuitBreaker) Reset() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pipe := cb.redisClient.Pipeline()
	pipe.Set(ctx, cb.keyPrefix+stateKey, int(Closed), 0)
	pipe.Set(ctx, cb.keyPrefix+failureCountKey, 0, 0)
	pipe.Set(ctx, cb.keyPrefix+successCountKey, 0, 0)
	pipe.Set(ctx, cb.keyPrefix+lastStateChangeKey, time.Now().Unix(), 0)

	if _, err := pipe.Exec(ctx); err != nil {
		fiberlog.Errorf("CircuitBreaker: failed to reset state for %s: %v", cb.modelID, err)
	} else {
		fiberlog.Infof("CircuitBreaker: reset breaker for model %s", cb.modelID)
	}
}

func (cb *CircuitBreaker) getState(ctx context.Context) (State, error) {
	kb := &keyBuilder{prefix: cb.keyPrefix}
	stateStr, err := cb.redisClient.Get(ctx, kb.state()).Result()
	if err != nil {
		return Closed, fmt.Errorf("failed to get circuit breaker state: %w", err)
	}

	stateInt, err := strconv.Atoi(stateStr)
	if err != nil {
		return Closed, fmt.Errorf("invalid state value '%s': %w", stateStr, err)
	}

	return State(stateInt), nil
}

func (cb *CircuitBreaker) transitionToState(newState State) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	kb := &keyBuilder{prefix: cb.keyPrefix}

	for attempt := range transitionRetries {
		err := cb.redisClient.Watch(ctx, func(tx *redis.Tx) error {
			currentState, err := cb.getState(ctx)
			if err != nil {
				return err
			}

			if currentState == newState {
				return nil
			}

			pipe := tx.TxPipeline()
			pipe.Set(ctx, kb.state(), int(newState), 0)
			pipe.Set(ctx, kb.lastChange(), time.Now().Unix(), 0)

			if newState != HalfOpen {
				pipe.Set(ctx, kb.successCount(), 0, 0)
			}

			_, err = pipe.Exec(ctx)
			return err
		}, kb.state())

		if err == nil {
			fiberlog.Debugf("CircuitBreaker: %s transitioned to %s", cb.modelID, newState)
			return true
		}

		if err != redis.TxFailedErr {
			fiberlog.Errorf("CircuitBreaker: %s state transition failed: %v", cb.modelID, err)
			return false
		}

		time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
	}

	fiberlog.Errorf("CircuitBreaker: %s state transition failed after %d attempts", cb.modelID, transitionRetries)
	return false
}

// Manager hands out one breaker per model id. When breakers are disabled or
// Redis is not configured it returns nil, which callers treat as always
// executable.
type Manager struct {
	mu          sync.Mutex
	redisClient *redis.Client
	cfg         models.CircuitBreakerConfig
	breakers    map[string]*CircuitBreaker
}

func NewManager(redisClient *redis.Client, cfg models.CircuitBreakerConfig) *Manager {
	return &Manager{
		redisClient: redisClient,
		cfg:         cfg,
		breakers:    make(map[string]*CircuitBreaker),
	}
}

// ForModel returns the breaker for a model, or nil when breakers are off
func (m *Manager) ForModel(modelID string) *CircuitBreaker {
	if m == nil || m.redisClient == nil || !m.cfg.Enabled {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cb, ok := m.breakers[modelID]; ok {
		return cb
	}
	cb := NewForModel(m.redisClient, modelID, m.cfg)
	m.breakers[modelID] = cb
	return cb
}

// States snapshots every known breaker, for the health endpoint
func (m *Manager) States() map[string]string {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	states := make(map[string]string, len(m.breakers))
	for modelID, cb := range m.breakers {
		states[modelID] = cb.GetState().String()
	}
	return states
}
