package services

import "errors"

// Authentication and verification errors, matched with errors.Is at the
// handler boundary and mapped to HTTP statuses there.
var (
	ErrValidation         = errors.New("invalid input")                 // 400
	ErrEmailTaken         = errors.New("account already exists")        // 409
	ErrInvalidCredentials = errors.New("invalid credentials")           // 401, deliberately generic
	ErrVerificationNeeded = errors.New("account verification required") // 403
	ErrNotFound           = errors.New("account not found")             // 404
	ErrAlreadyVerified    = errors.New("account already verified")      // 409, terminal no-op
	ErrInvalidOTP         = errors.New("invalid otp code")              // 400
	ErrNoPendingOTP       = errors.New("no pending otp code")           // 400
	ErrOTPExpired         = errors.New("otp code expired")              // 400, clears the pending code
	ErrWeakPassword       = errors.New("password is too short")         // 400
)

// Upstream errors.
var (
	ErrMailNotConfigured = errors.New("email service not configured")       // 503
	ErrMailUnavailable   = errors.New("email service unavailable")          // 503
	ErrMailTimeout       = errors.New("email service timed out")            // 504
	ErrScorerUnavailable = errors.New("trust score service unavailable")    // 503
	ErrScorerRejected    = errors.New("trust score service rejected input") // 400
)
