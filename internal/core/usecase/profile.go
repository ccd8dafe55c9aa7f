package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/eatwise/labelscan/internal/core/domain"
	"github.com/eatwise/labelscan/internal/core/ports"
)

const maxAllergies = 50

type ProfileUseCase struct {
	users ports.UserRepository
}

func NewProfileUseCase(users ports.UserRepository) *ProfileUseCase {
	return &ProfileUseCase{users: users}
}

func (uc *ProfileUseCase) Get(ctx context.Context, caller domain.Caller) (*domain.User, error) {
	if err := requireAccount(caller, "get profile"); err != nil {
		return nil, err
	}
	user, err := uc.users.GetBySubject(ctx, caller.Subject)
	if err != nil {
		if domain.IsKind(err, domain.ErrUserNotFound) {
			return &domain.User{
				Subject:   caller.Subject,
				Email:     caller.Email,
				Tier:      domain.TierFree,
				Allergies: []string{},
			}, nil
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return user, nil
}

func (uc *ProfileUseCase) Update(ctx context.Context, caller domain.Caller, update domain.ProfileUpdate) (*domain.User, error) {
	if err := requireAccount(caller, "update profile"); err != nil {
		return nil, err
	}

	var goal domain.FitnessGoal
	if update.FitnessGoal != nil {
		parsed, ok := domain.ParseFitnessGoal(*update.FitnessGoal)
		if !ok {
			return nil, domain.WrapError(domain.ErrInvalidInput, "update profile", fmt.Errorf("unknown fitness goal %q", *update.FitnessGoal))
		}
		goal = parsed
	}
	if len(update.Allergies) > maxAllergies {
		return nil, domain.WrapError(domain.ErrInvalidInput, "update profile", fmt.Errorf("at most %d allergies are allowed", maxAllergies))
	}

	user, err := uc.users.EnsureUser(ctx, caller.Subject, caller.Email)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	if update.Name != nil {
		user.Name = truncateRunes(strings.TrimSpace(*update.Name), domain.MaxProfileNameRunes)
	}
	if update.FitnessGoal != nil {
		user.FitnessGoal = goal
	}
	if update.Allergies != nil {
		user.Allergies = cleanAllergies(update.Allergies)
	}

	if err := uc.users.UpdateProfile(ctx, user); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

func cleanAllergies(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, item := range raw {
		item = strings.TrimSpace(item)
		key := strings.ToLower(item)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit]))
}

func requireAccount(caller domain.Caller, operation string) error {
	if caller.IsAccount() {
		return nil
	}
	return domain.WrapError(domain.ErrUnauthorized, operation, fmt.Errorf("sign in required"))
}
