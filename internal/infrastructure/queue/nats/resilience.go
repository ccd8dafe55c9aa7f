package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/eatwise/labelscan/internal/core/domain"
	"github.com/eatwise/labelscan/internal/infrastructure/resilience"
)

// brokerUnavailable lists the errors that mean the broker cannot be reached
// right now. They are retried and count toward the publish breaker.
var brokerUnavailable = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrConnectionReconnecting,
	nats.ErrDisconnected,
	nats.ErrReconnectBufExceeded,
	nats.ErrInvalidConnection,
}

// classifyPublishError sorts report-deleted publish failures. An oversized
// event or a bad subject is our fault, not the broker's, so it neither
// retries nor trips the breaker.
func classifyPublishError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	case errors.Is(err, nats.ErrMaxPayload), errors.Is(err, nats.ErrBadSubject):
		return resilience.ErrorClassification{}
	case isBrokerUnavailable(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

func isBrokerUnavailable(err error) bool {
	for _, target := range brokerUnavailable {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// publishFailure maps a publish error onto the domain. Outages become
// ErrTemporary so report deletion can fall back to inline cleanup.
func publishFailure(err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if resilience.IsCircuitOpen(err) || isBrokerUnavailable(err) {
		return domain.WrapError(domain.ErrTemporary, "publish report deleted", err)
	}
	return err
}
