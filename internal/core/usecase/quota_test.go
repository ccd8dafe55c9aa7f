package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/eatwise/labelscan/internal/core/domain"
)

func TestQuotaAuthorizeGuest(t *testing.T) {
	uc := NewQuotaUseCase(newUserRepoFake(), domain.DefaultQuotaPolicy())

	_, status, err := uc.Authorize(context.Background(), domain.Caller{Guest: &domain.GuestClaim{Session: "s1", Used: 4}})
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if status.Remaining != 1 || status.Role != domain.TierGuest {
		t.Fatalf("unexpected status: %+v", status)
	}

	_, status, err = uc.Authorize(context.Background(), domain.Caller{Guest: &domain.GuestClaim{Session: "s1", Used: 5}})
	if !errors.Is(err, domain.ErrGuestLimitReached) {
		t.Fatalf("expected guest limit, got %v", err)
	}
	if status.Remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", status.Remaining)
	}
}

func TestQuotaAuthorizeFreeAtCapIsDenied(t *testing.T) {
	users := newUserRepoFake(&domain.User{ID: "u1", Subject: "sub1", Tier: domain.TierFree, AnalysesUsed: 10})
	uc := NewQuotaUseCase(users, domain.DefaultQuotaPolicy())

	_, _, err := uc.Authorize(context.Background(), domain.Caller{Subject: "sub1"})
	if !errors.Is(err, domain.ErrFreeLimitReached) {
		t.Fatalf("expected free limit, got %v", err)
	}
	var denied *domain.QuotaDeniedError
	if !errors.As(err, &denied) || denied.Status.Max != 10 {
		t.Fatalf("expected QuotaDeniedError with max 10, got %#v", err)
	}
}

func TestQuotaAuthorizeProIsUnlimited(t *testing.T) {
	users := newUserRepoFake(&domain.User{ID: "u1", Subject: "sub1", Tier: domain.TierPro, AnalysesUsed: 500})
	uc := NewQuotaUseCase(users, domain.DefaultQuotaPolicy())

	_, status, err := uc.Authorize(context.Background(), domain.Caller{Subject: "sub1"})
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if !status.Unlimited || status.Remaining != domain.Unlimited {
		t.Fatalf("expected unlimited status, got %+v", status)
	}
}

func TestQuotaMissingUserFailsOpenAsFree(t *testing.T) {
	uc := NewQuotaUseCase(newUserRepoFake(), domain.DefaultQuotaPolicy())

	user, status, err := uc.Authorize(context.Background(), domain.Caller{Subject: "new"})
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if user != nil {
		t.Fatalf("expected no user row, got %+v", user)
	}
	if status.Role != domain.TierFree || status.Remaining != 10 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestQuotaRepositoryFailureIsTemporary(t *testing.T) {
	users := newUserRepoFake()
	users.getErr = errors.New("connection refused")
	uc := NewQuotaUseCase(users, domain.DefaultQuotaPolicy())

	_, _, err := uc.Authorize(context.Background(), domain.Caller{Subject: "sub1"})
	if !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}

func TestQuotaAnonymousIsUnauthorized(t *testing.T) {
	uc := NewQuotaUseCase(newUserRepoFake(), domain.DefaultQuotaPolicy())

	if _, _, err := uc.Authorize(context.Background(), domain.Caller{}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := uc.Current(context.Background(), domain.Caller{}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized from Current, got %v", err)
	}
}

func TestQuotaCurrentHasNoSideEffects(t *testing.T) {
	users := newUserRepoFake(&domain.User{ID: "u1", Subject: "sub1", Tier: domain.TierFree, AnalysesUsed: 10})
	uc := NewQuotaUseCase(users, domain.DefaultQuotaPolicy())

	status, err := uc.Current(context.Background(), domain.Caller{Subject: "sub1"})
	if err != nil {
		t.Fatalf("Current() must report exhausted quota without error, got %v", err)
	}
	if status.Remaining != 0 || status.Used != 10 || status.Max != 10 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if users.increments != 0 {
		t.Fatalf("Current() must not mutate counters")
	}
}

func TestQuotaUpgradeTakesEffectOnNextAuthorize(t *testing.T) {
	users := newUserRepoFake(&domain.User{ID: "u1", Subject: "sub1", Tier: domain.TierFree, AnalysesUsed: 10})
	quota := NewQuotaUseCase(users, domain.DefaultQuotaPolicy())
	caller := domain.Caller{Subject: "sub1", Email: "a@b.c"}

	if _, _, err := quota.Authorize(context.Background(), caller); !errors.Is(err, domain.ErrFreeLimitReached) {
		t.Fatalf("expected free limit before upgrade, got %v", err)
	}

	gateway := &gatewayFake{event: domain.PaymentEvent{
		ID: "evt_1", Type: "checkout.session.completed", Subject: "sub1", PaymentStatus: "paid",
	}}
	if err := NewBillingUseCase(users, gateway, nil).HandleWebhook(context.Background(), []byte("{}"), "sig"); err != nil {
		t.Fatalf("HandleWebhook() error = %v", err)
	}

	user, status, err := quota.Authorize(context.Background(), caller)
	if err != nil {
		t.Fatalf("Authorize() after upgrade error = %v", err)
	}
	if user == nil || user.Tier != domain.TierPro {
		t.Fatalf("expected fresh pro row, got %+v", user)
	}
	if status.Role != domain.TierPro || !status.Unlimited || status.Max != domain.Unlimited || status.Remaining != domain.Unlimited {
		t.Fatalf("expected unlimited pro status, got %+v", status)
	}
}
