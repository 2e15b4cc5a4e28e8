package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/logger"
)

// RetryExhaustedError is returned when every attempt of a call failed or
// the circuit breaker refused further attempts. Its message is the last
// provider error, unchanged.
type RetryExhaustedError struct {
	Provider string
	Attempts int
	Err      error
	// CircuitOpen is set when the breaker rejected the call. Such an error
	// also matches domain.ErrProviderUnavailable.
	CircuitOpen bool
}

func (e *RetryExhaustedError) Error() string {
	return e.Err.Error()
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

func (e *RetryExhaustedError) Is(target error) bool {
	return e.CircuitOpen && target == domain.ErrProviderUnavailable
}

// caller applies a Policy to calls against one provider.
type caller struct {
	name    string
	policy  Policy
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	stats   *statsRecorder

	mu          sync.Mutex
	lastFailure error
}

func newCaller(name string, policy Policy, stats *statsRecorder) *caller {
	policy = policy.normalised()
	c := &caller{name: name, policy: policy, stats: stats}

	if policy.RatePerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(policy.RatePerSecond), policy.Burst)
	}
	if policy.BreakerFailures > 0 {
		failures := policy.BreakerFailures
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     policy.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, domain.ErrProviderConfig)
			},
			OnStateChange: func(breaker string, from, to gobreaker.State) {
				logger.Warn("provider %s circuit %s -> %s", breaker, from, to)
			},
		})
	}
	return c
}

// call runs fn with retries. Configuration errors return immediately.
// When all attempts fail, or the breaker rejects one, the result is a
// *RetryExhaustedError carrying the last error the provider itself returned.
func call[T any](ctx context.Context, c *caller, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	attempts := 0

	for attempt := 0; attempt < c.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.policy.backoff(attempt)
			logger.Debug("provider %s: retry %d/%d in %s: %v",
				c.name, attempt+1, c.policy.MaxRetries, delay, lastErr)
			if err := sleep(ctx, delay); err != nil {
				return zero, err
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return zero, err
			}
		}

		start := time.Now()
		v, err := c.attempt(ctx, func(ctx context.Context) (any, error) {
			return fn(ctx)
		})
		if rejected(err) {
			return zero, &RetryExhaustedError{
				Provider:    c.name,
				Attempts:    attempts,
				Err:         cmpErr(lastErr, c.lastProviderFailure(), err),
				CircuitOpen: true,
			}
		}
		attempts++
		c.stats.record(time.Since(start), err)
		if err == nil {
			out, _ := v.(T)
			return out, nil
		}

		lastErr = err
		c.rememberFailure(err)
		if errors.Is(err, domain.ErrProviderConfig) {
			return zero, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
	}

	return zero, &RetryExhaustedError{
		Provider:    c.name,
		Attempts:    attempts,
		Err:         lastErr,
		CircuitOpen: c.open(),
	}
}

// open reports whether the breaker is currently refusing calls.
func (c *caller) open() bool {
	return c.breaker != nil && c.breaker.State() == gobreaker.StateOpen
}

func (c *caller) rememberFailure(err error) {
	c.mu.Lock()
	c.lastFailure = err
	c.mu.Unlock()
}

func (c *caller) lastProviderFailure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastFailure
}

func rejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// cmpErr returns the first non-nil error.
func cmpErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// attempt runs fn once, through the breaker when one is configured.
func (c *caller) attempt(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	if c.breaker == nil {
		return raceTimeout(ctx, c.policy.Timeout, fn)
	}
	v, err := c.breaker.Execute(func() (interface{}, error) {
		return raceTimeout(ctx, c.policy.Timeout, fn)
	})
	if rejected(err) {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrProviderUnavailable, c.name, err)
	}
	return v, err
}

// raceTimeout runs fn in a goroutine and returns whichever finishes first:
// fn, the per-attempt timer or the caller's context.
func raceTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) (any, error)) (any, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		v   any
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(attemptCtx)
		done <- outcome{v: v, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o := <-done:
		if o.err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", domain.ErrProviderTimeout, timeout)
		}
		return o.v, o.err
	case <-timer.C:
		return nil, fmt.Errorf("%w after %s", domain.ErrProviderTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
