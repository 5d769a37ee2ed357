package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/techtrust/backend/types"
)

// AccountRepository handles persistence for accounts. All OTP state
// transitions are single conditional UPDATE statements so that concurrent
// verify/reset attempts serialize on the row.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `
	id, user_uid, name, email, role, password_hash, verified,
	verify_otp, verify_otp_expires_at, reset_otp, reset_otp_expires_at,
	created_at, updated_at`

func scanAccount(row *sql.Row) (types.Account, error) {
	var account types.Account
	err := row.Scan(
		&account.ID,
		&account.UserUID,
		&account.Name,
		&account.Email,
		&account.Role,
		&account.PasswordHash,
		&account.Verified,
		&account.VerifyOTP,
		&account.VerifyOTPExpiresAt,
		&account.ResetOTP,
		&account.ResetOTPExpiresAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Account{}, ErrNotFound
		}
		return types.Account{}, err
	}
	return account, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (types.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.db.QueryRowContext(ctx, query, id))
}

func (r *AccountRepository) GetByUID(ctx context.Context, uid string) (types.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE user_uid = $1`
	return scanAccount(r.db.QueryRowContext(ctx, query, uid))
}

// GetByEmail looks up an account by its normalized (lowercased, trimmed) email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (types.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return scanAccount(r.db.QueryRowContext(ctx, query, email))
}

func (r *AccountRepository) List(ctx context.Context) ([]types.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []types.Account
	for rows.Next() {
		var account types.Account
		if err := rows.Scan(
			&account.ID,
			&account.UserUID,
			&account.Name,
			&account.Email,
			&account.Role,
			&account.PasswordHash,
			&account.Verified,
			&account.VerifyOTP,
			&account.VerifyOTPExpiresAt,
			&account.ResetOTP,
			&account.ResetOTPExpiresAt,
			&account.CreatedAt,
			&account.UpdatedAt,
		); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (r *AccountRepository) Create(ctx context.Context, account types.Account) (types.Account, error) {
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	const query = `
		INSERT INTO accounts (user_uid, name, email, role, password_hash, verified,
			verify_otp, verify_otp_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		account.UserUID,
		account.Name,
		account.Email,
		account.Role,
		account.PasswordHash,
		account.Verified,
		account.VerifyOTP,
		account.VerifyOTPExpiresAt,
		account.CreatedAt,
		account.UpdatedAt,
	).Scan(&account.ID); err != nil {
		return types.Account{}, translateError(err)
	}
	return account, nil
}

// SetVerifyOTP replaces the pending verification OTP, overwriting any
// previous one.
func (r *AccountRepository) SetVerifyOTP(ctx context.Context, id int64, code string, expiresAt time.Time) error {
	const query = `
		UPDATE accounts
		SET verify_otp = $2, verify_otp_expires_at = $3, updated_at = $4
		WHERE id = $1`
	return r.execExpectingRow(ctx, query, id, code, expiresAt, time.Now())
}

// ConsumeVerifyOTP atomically flips the account to verified when the given
// code is the pending one and has not expired. Returns false when the
// condition did not hold (wrong code, expired, or already verified).
func (r *AccountRepository) ConsumeVerifyOTP(ctx context.Context, id int64, code string, now time.Time) (bool, error) {
	const query = `
		UPDATE accounts
		SET verified = TRUE, verify_otp = '', verify_otp_expires_at = NULL, updated_at = $4
		WHERE id = $1 AND verified = FALSE AND verify_otp = $2 AND verify_otp <> ''
			AND verify_otp_expires_at >= $3`
	return r.execCountingRows(ctx, query, id, code, now, now)
}

// ClearVerifyOTPIfExpired clears the pending verification OTP only when it
// matches the given code and its expiry has passed, so two concurrent verify
// attempts cannot both observe the stale code.
func (r *AccountRepository) ClearVerifyOTPIfExpired(ctx context.Context, id int64, code string, now time.Time) (bool, error) {
	const query = `
		UPDATE accounts
		SET verify_otp = '', verify_otp_expires_at = NULL, updated_at = $4
		WHERE id = $1 AND verify_otp = $2 AND verify_otp <> ''
			AND verify_otp_expires_at < $3`
	return r.execCountingRows(ctx, query, id, code, now, now)
}

// SetResetOTP replaces the pending password-reset OTP.
func (r *AccountRepository) SetResetOTP(ctx context.Context, id int64, code string, expiresAt time.Time) error {
	const query = `
		UPDATE accounts
		SET reset_otp = $2, reset_otp_expires_at = $3, updated_at = $4
		WHERE id = $1`
	return r.execExpectingRow(ctx, query, id, code, expiresAt, time.Now())
}

// ConsumeResetOTP atomically replaces the password hash and clears the reset
// OTP when the given code is pending and unexpired. Returns false when the
// condition did not hold; the stored credential is untouched in that case.
func (r *AccountRepository) ConsumeResetOTP(ctx context.Context, id int64, code, passwordHash string, now time.Time) (bool, error) {
	const query = `
		UPDATE accounts
		SET password_hash = $3, reset_otp = '', reset_otp_expires_at = NULL, updated_at = $5
		WHERE id = $1 AND reset_otp = $2 AND reset_otp <> ''
			AND reset_otp_expires_at >= $4`
	return r.execCountingRows(ctx, query, id, code, passwordHash, now, now)
}

// ClearResetOTPIfExpired clears the pending reset OTP only when it matches
// the given code and has expired.
func (r *AccountRepository) ClearResetOTPIfExpired(ctx context.Context, id int64, code string, now time.Time) (bool, error) {
	const query = `
		UPDATE accounts
		SET reset_otp = '', reset_otp_expires_at = NULL, updated_at = $4
		WHERE id = $1 AND reset_otp = $2 AND reset_otp <> ''
			AND reset_otp_expires_at < $3`
	return r.execCountingRows(ctx, query, id, code, now, now)
}

func (r *AccountRepository) execExpectingRow(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AccountRepository) execCountingRows(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
