// Package services contains the application's business logic. This file
// implements AuthService, the identity and verification manager: account
// creation, credential checks, OTP issuance and validation for email
// verification and password reset, and the unverified -> verified transition.
package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/techtrust/backend/internal/mail"
	"github.com/techtrust/backend/internal/store"
	"github.com/techtrust/backend/types"
)

const (
	// OTPTTL is how long an issued one-time passcode stays valid.
	OTPTTL = 10 * time.Minute

	// MinPasswordLength applies to registration and password reset.
	MinPasswordLength = 6

	bcryptCost = 10

	uidPrefix = "USER-"
	uidLength = 9
)

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	otpPattern   = regexp.MustCompile(`^\d{6}$`)

	// Compared against on the unknown-email login path so the response takes
	// as long as a real hash comparison.
	dummyHash = func() []byte {
		hash, err := bcrypt.GenerateFromPassword([]byte("timing-parity"), bcryptCost)
		if err != nil {
			panic(err)
		}
		return hash
	}()
)

// AccountRepository defines persistence operations for accounts. The
// Consume*/Clear* operations must be atomic single-row conditional updates.
type AccountRepository interface {
	GetByID(ctx context.Context, id int64) (types.Account, error)
	GetByUID(ctx context.Context, uid string) (types.Account, error)
	GetByEmail(ctx context.Context, email string) (types.Account, error)
	List(ctx context.Context) ([]types.Account, error)
	Create(ctx context.Context, account types.Account) (types.Account, error)
	SetVerifyOTP(ctx context.Context, id int64, code string, expiresAt time.Time) error
	ConsumeVerifyOTP(ctx context.Context, id int64, code string, now time.Time) (bool, error)
	ClearVerifyOTPIfExpired(ctx context.Context, id int64, code string, now time.Time) (bool, error)
	SetResetOTP(ctx context.Context, id int64, code string, expiresAt time.Time) error
	ConsumeResetOTP(ctx context.Context, id int64, code, passwordHash string, now time.Time) (bool, error)
	ClearResetOTPIfExpired(ctx context.Context, id int64, code string, now time.Time) (bool, error)
}

// AuthService encapsulates account and verification use-cases.
type AuthService struct {
	repo   AccountRepository
	mailer *mail.Mailer
	now    func() time.Time
}

func NewAuthService(repo AccountRepository, mailer *mail.Mailer) *AuthService {
	return &AuthService{
		repo:   repo,
		mailer: mailer,
		now:    time.Now,
	}
}

// RegisterInput carries the registration payload. All fields are required.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// Register creates an unverified account, issues a verification OTP, and
// dispatches it by email. The mail sink is checked before any state mutation
// so a misconfigured sink cannot leave a half-registered account. No session
// token is issued; the caller must verify first.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (types.Account, error) {
	if !s.mailer.Configured() {
		return types.Account{}, ErrMailNotConfigured
	}

	name := strings.TrimSpace(input.Name)
	email := NormalizeEmail(input.Email)
	role := strings.TrimSpace(input.Role)
	if name == "" || email == "" || input.Password == "" || role == "" {
		return types.Account{}, fmt.Errorf("%w: name, email, password and role are required", ErrValidation)
	}
	if !emailPattern.MatchString(email) {
		return types.Account{}, fmt.Errorf("%w: malformed email", ErrValidation)
	}
	if !types.ValidRole(role) {
		return types.Account{}, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	if len(input.Password) < MinPasswordLength {
		return types.Account{}, ErrWeakPassword
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return types.Account{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.Account{}, fmt.Errorf("checking existing account: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return types.Account{}, fmt.Errorf("hashing password: %w", err)
	}

	otp, err := generateOTP()
	if err != nil {
		return types.Account{}, fmt.Errorf("generating otp: %w", err)
	}
	expiresAt := s.now().Add(OTPTTL)

	account, err := s.repo.Create(ctx, types.Account{
		UserUID:            newUserUID(),
		Name:               name,
		Email:              email,
		Role:               role,
		PasswordHash:       string(hash),
		Verified:           false,
		VerifyOTP:          otp,
		VerifyOTPExpiresAt: &expiresAt,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.Account{}, ErrEmailTaken
		}
		return types.Account{}, fmt.Errorf("creating account: %w", err)
	}

	// OTP is already persisted: a dispatch failure leaves a usable code
	// behind, never a half-state.
	if err := s.dispatchOTP(ctx, account.Email, "Verification Otp Code",
		fmt.Sprintf("Your Verification Code is %s, Valid for 10 minutes", otp)); err != nil {
		return types.Account{}, err
	}
	return account, nil
}

// Login checks credentials. Unknown email and wrong password produce the
// same ErrInvalidCredentials. An unverified account gets a fresh OTP
// (best-effort dispatch) and ErrVerificationNeeded; no token is ever issued
// before verification.
func (s *AuthService) Login(ctx context.Context, email, password string) (types.Account, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return types.Account{}, fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	if !emailPattern.MatchString(email) {
		return types.Account{}, fmt.Errorf("%w: malformed email", ErrValidation)
	}

	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return types.Account{}, ErrInvalidCredentials
		}
		return types.Account{}, fmt.Errorf("looking up account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return types.Account{}, ErrInvalidCredentials
	}

	if !account.Verified {
		if err := s.reissueVerifyOTP(ctx, &account); err != nil {
			// Best effort: the login response already tells the client to
			// verify, and a stale OTP can be re-requested.
			log.Printf("login: reissuing verification otp for %s: %v", account.UserUID, err)
		}
		return account, ErrVerificationNeeded
	}

	return account, nil
}

// SendVerifyOTP issues a fresh verification code for an unverified account,
// overwriting any pending one.
func (s *AuthService) SendVerifyOTP(ctx context.Context, email string) error {
	if !s.mailer.Configured() {
		return ErrMailNotConfigured
	}
	email = NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}

	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("looking up account: %w", err)
	}
	if account.Verified {
		return ErrAlreadyVerified
	}

	if err := s.reissueVerifyOTP(ctx, &account); err != nil {
		return err
	}
	return nil
}

// VerifyAccount consumes a verification OTP and transitions the account to
// verified. The transition happens exactly once; verifying a verified
// account returns ErrAlreadyVerified. An expired code is cleared as a side
// effect, so retrying it yields ErrNoPendingOTP rather than another expiry
// error. No session token is issued here; the client logs in afterwards.
func (s *AuthService) VerifyAccount(ctx context.Context, email, otp string) (types.Account, error) {
	email = NormalizeEmail(email)
	if email == "" || otp == "" {
		return types.Account{}, fmt.Errorf("%w: email and otp are required", ErrValidation)
	}
	if !otpPattern.MatchString(otp) {
		return types.Account{}, fmt.Errorf("%w: otp must be 6 digits", ErrValidation)
	}

	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Account{}, ErrNotFound
		}
		return types.Account{}, fmt.Errorf("looking up account: %w", err)
	}
	if account.Verified {
		return types.Account{}, ErrAlreadyVerified
	}
	if account.VerifyOTP == "" {
		return types.Account{}, ErrNoPendingOTP
	}
	if account.VerifyOTP != otp {
		return types.Account{}, ErrInvalidOTP
	}

	now := s.now()
	consumed, err := s.repo.ConsumeVerifyOTP(ctx, account.ID, otp, now)
	if err != nil {
		return types.Account{}, fmt.Errorf("consuming verification otp: %w", err)
	}
	if !consumed {
		// The conditional update refused: either the code expired, or a
		// concurrent request won the row. Clear-if-expired is itself
		// conditional, so two racing requests cannot both report expiry.
		cleared, err := s.repo.ClearVerifyOTPIfExpired(ctx, account.ID, otp, now)
		if err != nil {
			return types.Account{}, fmt.Errorf("clearing expired otp: %w", err)
		}
		if cleared {
			return types.Account{}, ErrOTPExpired
		}
		current, err := s.repo.GetByID(ctx, account.ID)
		if err != nil {
			return types.Account{}, fmt.Errorf("reloading account: %w", err)
		}
		if current.Verified {
			return types.Account{}, ErrAlreadyVerified
		}
		if current.VerifyOTP == "" {
			return types.Account{}, ErrNoPendingOTP
		}
		return types.Account{}, ErrInvalidOTP
	}

	account.Verified = true
	account.VerifyOTP = ""
	account.VerifyOTPExpiresAt = nil
	return account, nil
}

// RequestPasswordReset issues a reset OTP. The caller always gets a generic
// success so the endpoint cannot be used to enumerate accounts; an unknown
// email is only logged.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	if !s.mailer.Configured() {
		return ErrMailNotConfigured
	}
	email = NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}

	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Domain only: enough for support to correlate a complaint
			// without writing the address itself to the log.
			log.Printf("password reset requested for unknown email (domain %s)", emailDomain(email))
			return nil
		}
		return fmt.Errorf("looking up account: %w", err)
	}

	otp, err := generateOTP()
	if err != nil {
		return fmt.Errorf("generating otp: %w", err)
	}
	if err := s.repo.SetResetOTP(ctx, account.ID, otp, s.now().Add(OTPTTL)); err != nil {
		return fmt.Errorf("storing reset otp: %w", err)
	}

	return s.dispatchOTP(ctx, account.Email, "Reset Password Otp",
		fmt.Sprintf("Your reset OTP is %s. Use this code to reset your password.", otp))
}

// ResetPassword consumes a reset OTP and replaces the stored credential.
// OTP equality and expiry behave exactly as in VerifyAccount, including the
// clear-on-expiry side effect. An unknown email is indistinguishable from a
// wrong code, so this endpoint cannot enumerate accounts either. The user is
// not logged in afterwards.
func (s *AuthService) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	email = NormalizeEmail(email)
	if email == "" || otp == "" || newPassword == "" {
		return fmt.Errorf("%w: email, otp and new password are required", ErrValidation)
	}
	if !otpPattern.MatchString(otp) {
		return fmt.Errorf("%w: otp must be 6 digits", ErrValidation)
	}
	if len(newPassword) < MinPasswordLength {
		return ErrWeakPassword
	}

	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidOTP
		}
		return fmt.Errorf("looking up account: %w", err)
	}
	if account.ResetOTP == "" {
		return ErrNoPendingOTP
	}
	if account.ResetOTP != otp {
		return ErrInvalidOTP
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	now := s.now()
	consumed, err := s.repo.ConsumeResetOTP(ctx, account.ID, otp, string(hash), now)
	if err != nil {
		return fmt.Errorf("consuming reset otp: %w", err)
	}
	if !consumed {
		cleared, err := s.repo.ClearResetOTPIfExpired(ctx, account.ID, otp, now)
		if err != nil {
			return fmt.Errorf("clearing expired otp: %w", err)
		}
		if cleared {
			return ErrOTPExpired
		}
		current, err := s.repo.GetByID(ctx, account.ID)
		if err != nil {
			return fmt.Errorf("reloading account: %w", err)
		}
		if current.ResetOTP == "" {
			return ErrNoPendingOTP
		}
		return ErrInvalidOTP
	}
	return nil
}

// GetByUID returns the account behind a session subject.
func (s *AuthService) GetByUID(ctx context.Context, uid string) (types.Account, error) {
	account, err := s.repo.GetByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Account{}, ErrNotFound
		}
		return types.Account{}, err
	}
	return account, nil
}

// ListAccounts returns all accounts; callers serialize projections only.
func (s *AuthService) ListAccounts(ctx context.Context) ([]types.Account, error) {
	return s.repo.List(ctx)
}

// NormalizeEmail lowercases and trims an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func emailDomain(email string) string {
	if i := strings.LastIndexByte(email, '@'); i >= 0 {
		return email[i+1:]
	}
	return ""
}

func (s *AuthService) reissueVerifyOTP(ctx context.Context, account *types.Account) error {
	otp, err := generateOTP()
	if err != nil {
		return fmt.Errorf("generating otp: %w", err)
	}
	expiresAt := s.now().Add(OTPTTL)
	if err := s.repo.SetVerifyOTP(ctx, account.ID, otp, expiresAt); err != nil {
		return fmt.Errorf("storing verification otp: %w", err)
	}
	account.VerifyOTP = otp
	account.VerifyOTPExpiresAt = &expiresAt

	return s.dispatchOTP(ctx, account.Email, "Verification Otp Code",
		fmt.Sprintf("Your Verification Code is %s, Valid for 10 minutes", otp))
}

func (s *AuthService) dispatchOTP(ctx context.Context, to, subject, body string) error {
	if err := s.mailer.Send(ctx, to, subject, body); err != nil {
		if errors.Is(err, mail.ErrTimeout) {
			return ErrMailTimeout
		}
		return fmt.Errorf("%w: %v", ErrMailUnavailable, err)
	}
	return nil
}

// generateOTP draws a 6-digit code uniformly from [100000, 999999].
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

const uidAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// newUserUID generates an opaque public account identifier, e.g. "USER-X7Z9Q2M4K".
func newUserUID() string {
	buf := make([]byte, uidLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(uidAlphabet))))
		if err != nil {
			// crypto/rand only fails when the platform source is broken.
			panic(err)
		}
		buf[i] = uidAlphabet[n.Int64()]
	}
	return uidPrefix + string(buf)
}
