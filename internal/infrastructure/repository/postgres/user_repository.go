package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eatwise/labelscan/internal/core/domain"
)

const userColumns = `id, subject, email, name, tier, analyses_used, allergies, fitness_goal, created_at, updated_at`

type UserRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r *UserRepository) GetBySubject(ctx context.Context, subject string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+userColumns+`
FROM users
WHERE subject = $1
`, subject)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrUserNotFound, "get user", fmt.Errorf("subject=%s", subject))
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}

// EnsureUser creates the free-tier row on first sight and returns the stored
// row either way. A non-empty email refreshes the stored one.
func (r *UserRepository) EnsureUser(ctx context.Context, subject, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
INSERT INTO users (id, subject, email, name, tier, analyses_used, allergies, fitness_goal, created_at, updated_at)
VALUES ($1, $2, $3, '', 'free', 0, '[]'::jsonb, '', $4, $4)
ON CONFLICT (subject) DO UPDATE
SET email = CASE WHEN EXCLUDED.email <> '' THEN EXCLUDED.email ELSE users.email END
RETURNING `+userColumns+`
`, uuid.NewString(), subject, email, r.now())

	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	return &user, nil
}

// IncrementAnalysesUsed bumps the counter in a single statement so
// concurrent increments are never lost. Pro rows are left untouched.
func (r *UserRepository) IncrementAnalysesUsed(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE users
SET analyses_used = analyses_used + 1, updated_at = $2
WHERE id = $1 AND tier = 'free'
`, userID, r.now())
	if err != nil {
		return fmt.Errorf("increment analyses used: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	allergies := user.Allergies
	if allergies == nil {
		allergies = []string{}
	}
	allergiesJSON, err := json.Marshal(allergies)
	if err != nil {
		return fmt.Errorf("marshal allergies: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
UPDATE users
SET name = $2, fitness_goal = $3, allergies = $4, updated_at = $5
WHERE id = $1
`, user.ID, user.Name, string(user.FitnessGoal), allergiesJSON, r.now())
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update profile rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrUserNotFound, "update profile", fmt.Errorf("id=%s", user.ID))
	}
	return nil
}

// UpgradeToPro reports whether a row changed; repeated deliveries for an
// already-pro account are a no-op.
func (r *UserRepository) UpgradeToPro(ctx context.Context, subject, email string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
INSERT INTO users (id, subject, email, name, tier, analyses_used, allergies, fitness_goal, created_at, updated_at)
VALUES ($1, $2, $3, '', 'pro', 0, '[]'::jsonb, '', $4, $4)
ON CONFLICT (subject) DO UPDATE
SET tier = 'pro', updated_at = EXCLUDED.updated_at
WHERE users.tier <> 'pro'
`, uuid.NewString(), subject, email, r.now())
	if err != nil {
		return false, fmt.Errorf("upgrade to pro: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upgrade to pro rows affected: %w", err)
	}
	return rows > 0, nil
}

func scanUser(row rowScanner) (domain.User, error) {
	var user domain.User
	var tier, goal string
	var allergiesRaw []byte
	err := row.Scan(
		&user.ID,
		&user.Subject,
		&user.Email,
		&user.Name,
		&tier,
		&user.AnalysesUsed,
		&allergiesRaw,
		&goal,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}

	user.Tier = domain.ParseTier(tier)
	user.FitnessGoal = domain.FitnessGoal(goal)
	user.Allergies = []string{}
	if len(allergiesRaw) > 0 {
		if err := json.Unmarshal(allergiesRaw, &user.Allergies); err != nil {
			return domain.User{}, fmt.Errorf("unmarshal allergies: %w", err)
		}
	}
	return user, nil
}
