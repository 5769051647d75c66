// Package dispatch executes one logical model request as an explicit retry and
// fallback state machine. Transient failures retry the same model with
// exponential backoff, unavailability skips straight to the fallback model,
// and invalid requests terminate immediately.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/modelzoo/backend/internal/models"
	"github.com/modelzoo/backend/internal/services/circuitbreaker"
	"github.com/modelzoo/backend/internal/services/providers"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

type state int

const (
	stateAttempting state = iota
	stateRetrying
	stateFallingBack
	stateSucceeded
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateAttempting:
		return "Attempting"
	case stateRetrying:
		return "Retrying"
	case stateFallingBack:
		return "FallingBack"
	case stateSucceeded:
		return "Succeeded"
	case stateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Request is one logical dispatch: a primary model, an optional distinct
// fallback, and the invocation to run.
type Request struct {
	Primary         models.ModelConfig
	Fallback        models.ModelConfig
	HasFallback     bool
	WasAutoSelected bool
	Invocation      providers.Invocation
}

// InvokerSource resolves the invoker serving a model. *providers.Registry is
// the production implementation.
type InvokerSource interface {
	ForModel(model models.ModelConfig) (providers.Invoker, error)
}

// Dispatcher drives the retry and fallback machine over the provider registry
type Dispatcher struct {
	invokers InvokerSource
	breakers *circuitbreaker.Manager
	retry    models.RetryConfig
}

func NewDispatcher(invokers InvokerSource, breakers *circuitbreaker.Manager, retry models.RetryConfig) *Dispatcher {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 3
	}
	if retry.BaseDelayMs <= 0 {
		retry.BaseDelayMs = 250
	}
	if retry.MaxDelayMs < retry.BaseDelayMs {
		retry.MaxDelayMs = retry.BaseDelayMs
	}
	return &Dispatcher{
		invokers: invokers,
		breakers: breakers,
		retry:    retry,
	}
}

// Dispatch runs the state machine to completion. The returned DispatchResult
// is always populated, including on error: Outcome, Attempts, and Latency
// describe what happened even when every model failed.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (models.DispatchResult, error) {
	result := models.DispatchResult{
		Model:           req.Primary.ID,
		WasAutoSelected: req.WasAutoSelected,
		Outcome:         models.OutcomeFailed,
	}

	var (
		current    = req.Primary
		onFallback = false
		attemptNum = 0
		totalStart = time.Now()
		lastErr    error
		content    providers.Result
	)

	st := stateAttempting
	for st != stateSucceeded && st != stateFailed {
		switch st {
		case stateAttempting:
			attemptNum++
			attemptStart := time.Now()

			res, err := d.attempt(ctx, current, req.Invocation)
			elapsed := time.Since(attemptStart)

			attempt := models.Attempt{
				Model:         current.ID,
				AttemptNumber: attemptNum,
				Fallback:      onFallback,
				Latency:       elapsed,
			}
			if err != nil {
				attempt.ErrorType = models.Classify(err)
				attempt.ErrorMessage = err.Error()
			}
			result.Attempts = append(result.Attempts, attempt)

			if err == nil {
				content = res
				result.Latency = elapsed
				st = stateSucceeded
				break
			}

			lastErr = err
			st = d.onFailure(ctx, err, attemptNum, onFallback, req.HasFallback)

		case stateRetrying:
			fiberlog.Debugf("dispatch: retrying %s after attempt %d: %v", current.ID, attemptNum, lastErr)
			if err := d.backoff(ctx, attemptNum); err != nil {
				lastErr = models.NewTransientError(current.ID, "dispatch cancelled during backoff", err)
				st = stateFailed
				break
			}
			st = stateAttempting

		case stateFallingBack:
			fiberlog.Warnf("dispatch: %s exhausted, falling back to %s: %v", current.ID, req.Fallback.ID, lastErr)
			current = req.Fallback
			onFallback = true
			st = stateAttempting
		}
	}

	if st == stateSucceeded {
		result.Model = current.ID
		result.Content = content.Content
		result.TokensUsed = content.TokensUsed
		if onFallback {
			result.Outcome = models.OutcomeFellBack
		} else {
			result.Outcome = models.OutcomeSucceeded
		}
		return result, nil
	}

	result.Latency = time.Since(totalStart)
	result.Outcome = models.OutcomeFailed

	switch models.Classify(lastErr) {
	case models.ErrorTypeInvalidRequest:
		// Terminal on its own terms, not an exhaustion
		return result, lastErr
	default:
		if onFallback || !req.HasFallback {
			return result, models.NewExhaustedError(req.Primary.ID, req.Fallback.ID, lastErr)
		}
		return result, lastErr
	}
}

// attempt runs one invocation, consulting the model's circuit breaker first.
// An open breaker counts as the model being unavailable.
func (d *Dispatcher) attempt(ctx context.Context, model models.ModelConfig, inv providers.Invocation) (providers.Result, error) {
	cb := d.breakers.ForModel(model.ID)
	if cb != nil && !cb.CanExecute() {
		return providers.Result{}, models.NewUnavailableError(model.ID, fmt.Errorf("circuit breaker open"))
	}

	invoker, err := d.invokers.ForModel(model)
	if err != nil {
		return providers.Result{}, err
	}

	res, err := invoker.Invoke(ctx, model, inv)
	if cb != nil {
		if err != nil && models.Classify(err) != models.ErrorTypeInvalidRequest {
			cb.RecordFailure()
		} else if err == nil {
			cb.RecordSuccess()
		}
	}
	return res, err
}

// onFailure decides the next state after a failed attempt
func (d *Dispatcher) onFailure(ctx context.Context, err error, attemptNum int, onFallback, hasFallback bool) state {
	switch models.Classify(err) {
	case models.ErrorTypeInvalidRequest:
		return stateFailed
	case models.ErrorTypeTransient:
		if ctx.Err() != nil {
			// The caller is gone; retrying would only burn quota
			return stateFailed
		}
		if !onFallback && attemptNum < d.retry.MaxAttempts {
			return stateRetrying
		}
	}

	// Unavailable, or a model out of retry budget
	if !onFallback && hasFallback {
		return stateFallingBack
	}
	return stateFailed
}

// backoff sleeps the exponential delay for the attempt just failed, honoring
// cancellation.
func (d *Dispatcher) backoff(ctx context.Context, attemptNum int) error {
	delay := time.Duration(d.retry.BaseDelayMs) * time.Millisecond << (attemptNum - 1)
	if max := time.Duration(d.retry.MaxDelayMs) * time.Millisecond; delay > max {
		delay = max
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
