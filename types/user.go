package types

import "time"

// Account roles. The set is closed; anything else is rejected at registration.
const (
	RoleProfessional = "professional"
	RoleRecruiter    = "recruiter"
	RoleAdmin        = "admin"
)

// ValidRole reports whether role belongs to the closed role set.
func ValidRole(role string) bool {
	switch role {
	case RoleProfessional, RoleRecruiter, RoleAdmin:
		return true
	}
	return false
}

// Account represents one registered identity.
// Marshalling an Account yields the public projection: the password hash and
// both pending OTPs carry `json:"-"` and never leave the server.
type Account struct {
	// ID is the internal database identifier.
	ID int64 `json:"-" db:"id"`

	// UserUID is the opaque public identifier (e.g. "USER-X7Z9Q2M4K").
	UserUID string `json:"userId" db:"user_uid"`

	// Name is the account holder's display name.
	Name string `json:"name" db:"name"`

	// Email is unique, stored lowercased and trimmed.
	Email string `json:"email" db:"email"`

	// Role is one of RoleProfessional, RoleRecruiter, RoleAdmin.
	Role string `json:"role" db:"role"`

	// PasswordHash is the bcrypt hash of the account password.
	PasswordHash string `json:"-" db:"password_hash"`

	// Verified is true once the email-verification OTP has been confirmed.
	// The flag never flips back to false.
	Verified bool `json:"verified" db:"verified"`

	// VerifyOTP is the pending email-verification code; empty when none.
	VerifyOTP string `json:"-" db:"verify_otp"`

	// VerifyOTPExpiresAt is the verification code's expiry; nil when none.
	VerifyOTPExpiresAt *time.Time `json:"-" db:"verify_otp_expires_at"`

	// ResetOTP is the pending password-reset code; empty when none.
	ResetOTP string `json:"-" db:"reset_otp"`

	// ResetOTPExpiresAt is the reset code's expiry; nil when none.
	ResetOTPExpiresAt *time.Time `json:"-" db:"reset_otp_expires_at"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
