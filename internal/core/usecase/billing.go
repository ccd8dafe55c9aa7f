package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eatwise/labelscan/internal/core/domain"
	"github.com/eatwise/labelscan/internal/core/ports"
)

type BillingUseCase struct {
	users    ports.UserRepository
	gateway  ports.PaymentGateway
	observer ports.BillingObserver
}

func NewBillingUseCase(users ports.UserRepository, gateway ports.PaymentGateway, observer ports.BillingObserver) *BillingUseCase {
	return &BillingUseCase{
		users:    users,
		gateway:  gateway,
		observer: observer,
	}
}

// StartCheckout opens a one-time payment session. Pro accounts get a
// session without URL flagged AlreadyPro.
func (uc *BillingUseCase) StartCheckout(ctx context.Context, caller domain.Caller) (*domain.CheckoutSession, error) {
	if err := requireAccount(caller, "start checkout"); err != nil {
		return nil, err
	}
	if uc.gateway == nil {
		return nil, domain.WrapError(domain.ErrBillingUnavailable, "start checkout", fmt.Errorf("payment gateway is not configured"))
	}

	user, err := uc.users.GetBySubject(ctx, caller.Subject)
	switch {
	case err == nil && user.Tier == domain.TierPro:
		return &domain.CheckoutSession{AlreadyPro: true}, nil
	case err != nil && !domain.IsKind(err, domain.ErrUserNotFound):
		return nil, fmt.Errorf("load user: %w", err)
	}

	session, err := uc.gateway.CreateCheckoutSession(ctx, caller.Subject, caller.Email)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// HandleWebhook verifies a payment notification and upgrades the payer.
// Upgrades are idempotent; storage errors are returned so the provider
// redelivers.
func (uc *BillingUseCase) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if uc.gateway == nil {
		return domain.WrapError(domain.ErrBillingUnavailable, "handle webhook", fmt.Errorf("payment gateway is not configured"))
	}

	event, err := uc.gateway.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}
	if !event.Confirmed() {
		slog.Info("billing_event_ignored", "event_id", event.ID, "type", event.Type, "payment_status", event.PaymentStatus)
		uc.observe(event.Type, false)
		return nil
	}
	if event.Subject == "" {
		slog.Warn("billing_event_without_subject", "event_id", event.ID, "type", event.Type)
		uc.observe(event.Type, false)
		return nil
	}

	changed, err := uc.users.UpgradeToPro(ctx, event.Subject, event.Email)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "upgrade to pro", err)
	}
	slog.Info("billing_upgrade_applied",
		"event_id", event.ID,
		"subject", event.Subject,
		"changed", changed,
	)
	uc.observe(event.Type, true)
	return nil
}

func (uc *BillingUseCase) observe(eventType string, applied bool) {
	if uc.observer != nil {
		uc.observer.ObserveBillingEvent(eventType, applied)
	}
}
