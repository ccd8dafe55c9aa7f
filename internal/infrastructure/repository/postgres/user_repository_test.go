package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/eatwise/labelscan/internal/core/domain"
)

var userRowColumns = []string{"id", "subject", "email", "name", "tier", "analyses_used", "allergies", "fitness_goal", "created_at", "updated_at"}

func TestUserRepositoryGetBySubject(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewUserRepository(db)
	rows := sqlmock.NewRows(userRowColumns).
		AddRow("u-1", "sub-1", "a@b.c", "Ann", "pro", 12, []byte(`["peanuts"]`), "endurance", time.Now(), time.Now())
	mock.ExpectQuery("FROM users").
		WithArgs("sub-1").
		WillReturnRows(rows)

	user, err := repo.GetBySubject(context.Background(), "sub-1")
	if err != nil {
		t.Fatalf("GetBySubject() error = %v", err)
	}
	if user.Tier != domain.TierPro || user.AnalysesUsed != 12 || user.FitnessGoal != domain.GoalEndurance {
		t.Fatalf("unexpected user %+v", user)
	}
	if len(user.Allergies) != 1 || user.Allergies[0] != "peanuts" {
		t.Fatalf("unexpected allergies %v", user.Allergies)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUserRepositoryGetBySubjectNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewUserRepository(db)
	mock.ExpectQuery("FROM users").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	_, err = repo.GetBySubject(context.Background(), "missing")
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUserRepositoryEnsureUserUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewUserRepository(db)
	rows := sqlmock.NewRows(userRowColumns).
		AddRow("u-1", "sub-1", "a@b.c", "", "free", 0, []byte(`[]`), "", time.Now(), time.Now())
	mock.ExpectQuery("ON CONFLICT \\(subject\\) DO UPDATE").
		WithArgs(sqlmock.AnyArg(), "sub-1", "a@b.c", sqlmock.AnyArg()).
		WillReturnRows(rows)

	user, err := repo.EnsureUser(context.Background(), "sub-1", "a@b.c")
	if err != nil {
		t.Fatalf("EnsureUser() error = %v", err)
	}
	if user.ID != "u-1" || user.Tier != domain.TierFree || user.Allergies == nil {
		t.Fatalf("unexpected user %+v", user)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUserRepositoryIncrementIsAtomic(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewUserRepository(db)
	mock.ExpectExec("SET analyses_used = analyses_used \\+ 1").
		WithArgs("u-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.IncrementAnalysesUsed(context.Background(), "u-1"); err != nil {
		t.Fatalf("IncrementAnalysesUsed() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUserRepositoryUpdateProfileReturnsNotFoundWhenNoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewUserRepository(db)
	mock.ExpectExec("UPDATE users").
		WithArgs("missing", "Ann", "weight_loss", []byte(`["milk"]`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.UpdateProfile(context.Background(), &domain.User{
		ID: "missing", Name: "Ann", FitnessGoal: domain.GoalWeightLoss, Allergies: []string{"milk"},
	})
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUserRepositoryUpgradeToProReportsChange(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewUserRepository(db)
	mock.ExpectExec("WHERE users.tier <> 'pro'").
		WithArgs(sqlmock.AnyArg(), "sub-1", "a@b.c", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("WHERE users.tier <> 'pro'").
		WithArgs(sqlmock.AnyArg(), "sub-1", "a@b.c", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.UpgradeToPro(context.Background(), "sub-1", "a@b.c")
	if err != nil || !changed {
		t.Fatalf("first upgrade: changed=%v err=%v", changed, err)
	}
	changed, err = repo.UpgradeToPro(context.Background(), "sub-1", "a@b.c")
	if err != nil || changed {
		t.Fatalf("repeated upgrade must be a no-op: changed=%v err=%v", changed, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
