package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrGuestLimitReached  = errors.New("guest limit reached")
	ErrFreeLimitReached   = errors.New("free plan limit reached")
	ErrAnalysisFailed     = errors.New("analysis failed")
	ErrAnalysisInProgress = errors.New("analysis already in progress")
	ErrReportNotFound     = errors.New("report not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrBillingUnavailable = errors.New("billing unavailable")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrTemporary          = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// QuotaDeniedError carries the denial signal together with the evaluated
// allowance so callers can render it without a second lookup.
type QuotaDeniedError struct {
	Kind   error
	Status QuotaStatus
}

func (e *QuotaDeniedError) Error() string {
	switch e.Kind {
	case ErrGuestLimitReached:
		return fmt.Sprintf("Guest limit reached: %d analyses. Please sign in to continue.", e.Status.Max)
	case ErrFreeLimitReached:
		return fmt.Sprintf("Free plan limit reached: %d analyses. Upgrade to Pro for unlimited.", e.Status.Max)
	default:
		return e.Kind.Error()
	}
}

func (e *QuotaDeniedError) Unwrap() error {
	return e.Kind
}
