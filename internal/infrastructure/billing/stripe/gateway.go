package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/eatwise/labelscan/internal/core/domain"
)

// Checkout sessions carry the caller subject under this metadata key.
const subjectMetadataKey = "subject"

// Payment links created in the dashboard carry the subject under this key.
const legacySubjectMetadataKey = "clerkId"

type Config struct {
	SecretKey     string
	WebhookSecret string
	PriceID       string
	SuccessURL    string
	CancelURL     string
}

type Gateway struct {
	cfg        Config
	newSession func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

func New(cfg Config) (*Gateway, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	if strings.TrimSpace(cfg.PriceID) == "" {
		return nil, fmt.Errorf("stripe price id is required")
	}
	stripe.Key = cfg.SecretKey
	return &Gateway{cfg: cfg, newSession: session.New}, nil
}

func (g *Gateway) CreateCheckoutSession(_ context.Context, subject, email string) (*domain.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		SuccessURL:        stripe.String(g.cfg.SuccessURL),
		CancelURL:         stripe.String(g.cfg.CancelURL),
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(subject),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(g.cfg.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
	}
	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	params.AddMetadata(subjectMetadataKey, subject)

	result, err := g.newSession(params)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "create checkout session", err)
	}
	return &domain.CheckoutSession{ID: result.ID, URL: result.URL}, nil
}

func (g *Gateway) ParseWebhook(payload []byte, signature string) (domain.PaymentEvent, error) {
	if g.cfg.WebhookSecret == "" {
		return domain.PaymentEvent{}, domain.WrapError(domain.ErrBillingUnavailable, "parse webhook", fmt.Errorf("webhook secret is not configured"))
	}
	if strings.TrimSpace(signature) == "" {
		return domain.PaymentEvent{}, domain.WrapError(domain.ErrInvalidSignature, "parse webhook", fmt.Errorf("missing Stripe-Signature header"))
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, g.cfg.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return domain.PaymentEvent{}, domain.WrapError(domain.ErrInvalidSignature, "parse webhook", err)
	}

	out := domain.PaymentEvent{ID: event.ID, Type: string(event.Type)}
	if !strings.HasPrefix(out.Type, "checkout.session.") || event.Data == nil {
		return out, nil
	}

	var checkout stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &checkout); err != nil {
		return domain.PaymentEvent{}, domain.WrapError(domain.ErrInvalidInput, "parse webhook", fmt.Errorf("decode checkout session: %w", err))
	}
	out.Subject = checkoutSubject(&checkout)
	out.Email = checkout.CustomerEmail
	if checkout.CustomerDetails != nil && checkout.CustomerDetails.Email != "" {
		out.Email = checkout.CustomerDetails.Email
	}
	out.PaymentStatus = string(checkout.PaymentStatus)
	return out, nil
}

func checkoutSubject(checkout *stripe.CheckoutSession) string {
	for _, key := range []string{subjectMetadataKey, legacySubjectMetadataKey} {
		if subject := strings.TrimSpace(checkout.Metadata[key]); subject != "" {
			return subject
		}
	}
	return strings.TrimSpace(checkout.ClientReferenceID)
}
