package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/techtrust/backend/types"
)

func newAccountRepoWithMock(t *testing.T) (*AccountRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewAccountRepository(db), mock, db
}

func accountRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "user_uid", "name", "email", "role", "password_hash", "verified",
		"verify_otp", "verify_otp_expires_at", "reset_otp", "reset_otp_expires_at",
		"created_at", "updated_at",
	}).AddRow(int64(7), "USER-X7Z9Q2M4K", "Dev", "dev@example.com", types.RoleProfessional,
		"$2a$10$hash", false, "123456", now.Add(10*time.Minute), "", nil, now, now)
}

func TestAccountGetByEmail(t *testing.T) {
	repo, mock, db := newAccountRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT.*FROM accounts WHERE email = \$1`).
		WithArgs("dev@example.com").
		WillReturnRows(accountRows())

	account, err := repo.GetByEmail(context.Background(), "dev@example.com")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	if account.ID != 7 || account.UserUID != "USER-X7Z9Q2M4K" {
		t.Fatalf("unexpected account: %+v", account)
	}
	if account.Verified {
		t.Fatalf("expected unverified account")
	}
}

func TestAccountGetByEmail_NotFound(t *testing.T) {
	repo, mock, db := newAccountRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT.*FROM accounts WHERE email = \$1`).
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.GetByEmail(context.Background(), "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAccountCreate(t *testing.T) {
	repo, mock, db := newAccountRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)INSERT INTO accounts.*RETURNING id`).
		WithArgs("USER-X7Z9Q2M4K", "Dev", "dev@example.com", types.RoleProfessional,
			"$2a$10$hash", false, "123456", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	expiresAt := time.Now().Add(10 * time.Minute)
	account, err := repo.Create(context.Background(), types.Account{
		UserUID:            "USER-X7Z9Q2M4K",
		Name:               "Dev",
		Email:              "dev@example.com",
		Role:               types.RoleProfessional,
		PasswordHash:       "$2a$10$hash",
		VerifyOTP:          "123456",
		VerifyOTPExpiresAt: &expiresAt,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if account.ID != 7 {
		t.Fatalf("expected id 7, got %d", account.ID)
	}
}

func TestAccountCreate_DuplicateEmail(t *testing.T) {
	repo, mock, db := newAccountRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)INSERT INTO accounts.*RETURNING id`).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.Create(context.Background(), types.Account{Email: "dev@example.com"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestConsumeVerifyOTP(t *testing.T) {
	repo, mock, db := newAccountRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`(?s)UPDATE accounts\s+SET verified = TRUE.*verify_otp_expires_at >= \$3`).
		WithArgs(int64(7), "123456", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	consumed, err := repo.ConsumeVerifyOTP(context.Background(), 7, "123456", now)
	if err != nil {
		t.Fatalf("ConsumeVerifyOTP error: %v", err)
	}
	if !consumed {
		t.Fatalf("expected otp to be consumed")
	}
}

func TestConsumeVerifyOTP_ConditionNotMet(t *testing.T) {
	repo, mock, db := newAccountRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`(?s)UPDATE accounts\s+SET verified = TRUE`).
		WithArgs(int64(7), "999999", now, now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	consumed, err := repo.ConsumeVerifyOTP(context.Background(), 7, "999999", now)
	if err != nil {
		t.Fatalf("ConsumeVerifyOTP error: %v", err)
	}
	if consumed {
		t.Fatalf("expected no row to match")
	}
}

func TestClearVerifyOTPIfExpired(t *testing.T) {
	repo, mock, db := newAccountRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`(?s)UPDATE accounts\s+SET verify_otp = ''.*verify_otp_expires_at < \$3`).
		WithArgs(int64(7), "123456", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	cleared, err := repo.ClearVerifyOTPIfExpired(context.Background(), 7, "123456", now)
	if err != nil {
		t.Fatalf("ClearVerifyOTPIfExpired error: %v", err)
	}
	if !cleared {
		t.Fatalf("expected expired otp to be cleared")
	}
}

func TestConsumeResetOTP_ReplacesHash(t *testing.T) {
	repo, mock, db := newAccountRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`(?s)UPDATE accounts\s+SET password_hash = \$3.*reset_otp_expires_at >= \$4`).
		WithArgs(int64(7), "654321", "$2a$10$newhash", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	consumed, err := repo.ConsumeResetOTP(context.Background(), 7, "654321", "$2a$10$newhash", now)
	if err != nil {
		t.Fatalf("ConsumeResetOTP error: %v", err)
	}
	if !consumed {
		t.Fatalf("expected reset otp to be consumed")
	}
}

func TestSetVerifyOTP_MissingAccount(t *testing.T) {
	repo, mock, db := newAccountRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)UPDATE accounts\s+SET verify_otp = \$2`).
		WithArgs(int64(99), "123456", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetVerifyOTP(context.Background(), 99, "123456", time.Now().Add(10*time.Minute))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
