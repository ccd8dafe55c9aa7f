package usecase

import (
	"context"
	"errors"

	"github.com/eatwise/labelscan/internal/core/domain"
	"github.com/eatwise/labelscan/internal/core/ports"
)

type QuotaUseCase struct {
	users  ports.UserRepository
	policy domain.QuotaPolicy
}

func NewQuotaUseCase(users ports.UserRepository, policy domain.QuotaPolicy) *QuotaUseCase {
	return &QuotaUseCase{
		users:  users,
		policy: policy.Normalize(),
	}
}

func (uc *QuotaUseCase) Policy() domain.QuotaPolicy {
	return uc.policy
}

// Authorize decides whether the caller may consume one analysis. The user
// row is returned for accounts that have one so callers can reuse the fresh
// read. Denials are *domain.QuotaDeniedError values.
func (uc *QuotaUseCase) Authorize(ctx context.Context, caller domain.Caller) (*domain.User, domain.QuotaStatus, error) {
	user, status, err := uc.evaluate(ctx, caller)
	if err != nil {
		return nil, domain.QuotaStatus{}, err
	}
	if kind := status.DenialKind(); kind != nil {
		return user, status, &domain.QuotaDeniedError{Kind: kind, Status: status}
	}
	return user, status, nil
}

// Current reports the caller's allowance without side effects.
func (uc *QuotaUseCase) Current(ctx context.Context, caller domain.Caller) (domain.QuotaStatus, error) {
	_, status, err := uc.evaluate(ctx, caller)
	return status, err
}

func (uc *QuotaUseCase) evaluate(ctx context.Context, caller domain.Caller) (*domain.User, domain.QuotaStatus, error) {
	switch {
	case caller.IsAccount():
		user, err := uc.users.GetBySubject(ctx, caller.Subject)
		if err != nil {
			// Accounts without a row yet are free with nothing used.
			if domain.IsKind(err, domain.ErrUserNotFound) {
				return nil, uc.policy.Evaluate(domain.TierFree, 0), nil
			}
			if domain.IsKind(err, domain.ErrTemporary) {
				return nil, domain.QuotaStatus{}, err
			}
			return nil, domain.QuotaStatus{}, domain.WrapError(domain.ErrTemporary, "load quota user", err)
		}
		return user, uc.policy.Evaluate(user.Tier, user.AnalysesUsed), nil
	case caller.IsGuest():
		return nil, uc.policy.Evaluate(domain.TierGuest, caller.Guest.Used), nil
	default:
		return nil, domain.QuotaStatus{}, domain.WrapError(domain.ErrUnauthorized, "evaluate quota", errors.New("sign in or start a guest session"))
	}
}
