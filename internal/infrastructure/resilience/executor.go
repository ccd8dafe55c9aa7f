package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrorClassification tells the executor how to treat one failed call.
// RetryAfter carries a server-provided delay; a hint longer than the
// configured maximum backoff ends the retry loop instead of stalling it.
type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
	RetryAfter    time.Duration
}

type ErrorClassifier func(err error) ErrorClassification

// StateChangeFunc is told about every breaker transition, keyed by operation.
type StateChangeFunc func(operation string, from, to string)

// RetryFunc is called before each retry with the attempt that just failed.
type RetryFunc func(operation string, attempt int)

// Executor runs calls to one remote dependency with bounded retries and a
// circuit breaker per operation name.
type Executor struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg.normalize(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

func (e *Executor) Execute(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classifier == nil {
		classifier = defaultClassifier
	}

	if !e.cfg.BreakerEnabled {
		return e.retry(ctx, op, fn, classifier)
	}
	_, err := e.breakerFor(op, classifier).Execute(func() (any, error) {
		return nil, e.retry(ctx, op, fn, classifier)
	})
	return err
}

func (e *Executor) retry(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	backoff := e.cfg.RetryInitialBackoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		class := classifier(err)
		if !class.Retryable || attempt >= e.cfg.RetryMaxAttempts {
			return err
		}

		wait, ok := e.nextWait(backoff, class.RetryAfter)
		if !ok {
			slog.Warn("retry_skipped",
				"operation", operation,
				"attempt", attempt,
				"retry_after_ms", class.RetryAfter.Milliseconds(),
				"error", err,
			)
			return err
		}
		if deadline, has := ctx.Deadline(); has && time.Until(deadline) <= wait {
			// Sleeping would only burn the caller's remaining budget.
			return err
		}

		slog.Warn("retry_attempt",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", e.cfg.RetryMaxAttempts,
			"backoff_ms", float64(wait.Microseconds())/1000.0,
			"error", err,
		)
		if e.cfg.OnRetry != nil {
			e.cfg.OnRetry(operation, attempt)
		}
		if !sleep(ctx, wait) {
			return err
		}

		backoff = min(time.Duration(float64(backoff)*e.cfg.RetryMultiplier), e.cfg.RetryMaxBackoff)
	}
}

// nextWait picks the delay before the next attempt. A server hint wins over
// the local backoff unless it exceeds RetryMaxBackoff.
func (e *Executor) nextWait(backoff, hint time.Duration) (time.Duration, bool) {
	if hint > 0 {
		if hint > e.cfg.RetryMaxBackoff {
			return 0, false
		}
		return max(hint, backoff), true
	}
	return min(backoff, e.cfg.RetryMaxBackoff), true
}

func sleep(ctx context.Context, wait time.Duration) bool {
	if wait <= 0 {
		return true
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (e *Executor) breakerFor(operation string, classifier ErrorClassifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, ok := e.breakers[operation]; ok {
		return breaker
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        operation,
		MaxRequests: e.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= e.cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classifier(err).RecordFailure
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
			if e.cfg.OnStateChange != nil {
				e.cfg.OnStateChange(name, from.String(), to.String())
			}
		},
	})
	e.breakers[operation] = breaker
	return breaker
}

// State reports the breaker state for operation. Operations that never ran,
// or run with the breaker disabled, report "closed".
func (e *Executor) State(operation string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	breaker, ok := e.breakers[strings.TrimSpace(operation)]
	if !ok {
		return gobreaker.StateClosed.String()
	}
	return breaker.State().String()
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func defaultClassifier(error) ErrorClassification {
	return ErrorClassification{RecordFailure: true}
}
