// Package auth orchestrates the account lifecycle: signup, login, logout and
// the password-reset flow. It owns no storage of its own; all state lives in
// the identity, session and reset stores.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"clientauth/cmd/identity"
	"clientauth/cmd/internal/auth/reset"
	"clientauth/cmd/internal/auth/session"
)

// Workflow error kinds, mapped to HTTP statuses in the API layer.
var (
	// ErrInvalidCredentials is returned for unknown email AND wrong password
	// alike; callers must not be able to tell which (account enumeration).
	ErrInvalidCredentials = errors.New("invalid_credentials")

	// ErrCreationFailed wraps store failures during signup.
	ErrCreationFailed = errors.New("creation_failed")

	// ErrResetFailed wraps failures after a reset token verified successfully.
	// The token stays live in that case so the caller can retry.
	ErrResetFailed = errors.New("reset_failed")
)

// resetRequestedMessage is returned by RequestPasswordReset in every case,
// registered email or not, success or internal error. Byte-identical
// responses are the enumeration-resistance contract.
const resetRequestedMessage = "If your email is registered, you will receive a password reset link"

// Service is the auth workflow engine.
type Service struct {
	log      *slog.Logger
	accounts identity.Store
	resets   reset.Store
	sessions *session.Service
	notifier Notifier

	// dummyHash absorbs a bcrypt compare when the email is unknown, so the
	// unknown-email and wrong-password paths cost the same.
	dummyHash string
}

// NewService wires the workflow engine. All dependencies are injected; the
// engine holds no global state.
func NewService(log *slog.Logger, accounts identity.Store, resets reset.Store, sessions *session.Service, notifier Notifier) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		log:      log,
		accounts: accounts,
		resets:   resets,
		sessions: sessions,
		notifier: notifier,
	}
	if hash, err := identity.HashPassword("timing-equalizer-only"); err == nil {
		s.dummyHash = hash
	}
	return s
}

// Signup validates input, hashes the password and creates the account plus
// its credential row. The returned Account never carries the password or its
// hash.
func (s *Service) Signup(ctx context.Context, name, email, password string) (identity.Account, error) {
	const op = "auth.Signup"

	name = strings.TrimSpace(name)
	email = identity.NormalizeEmail(email)

	if name == "" {
		return identity.Account{}, identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: "client_name is required"}
	}
	if !identity.ValidEmail(email) {
		return identity.Account{}, identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: "invalid email format"}
	}

	hash, err := identity.HashPassword(password)
	if err != nil {
		return identity.Account{}, err
	}

	acct, err := s.accounts.CreateAccount(ctx, identity.CreateAccountInput{
		ClientName:   name,
		Email:        email,
		PasswordHash: hash,
		Now:          time.Now().UTC(),
	})
	if err != nil {
		if identity.IsConflict(err) || identity.IsInvalidInput(err) {
			return identity.Account{}, err
		}
		s.log.Error("auth.signup.fail", "err", err)
		return identity.Account{}, fmt.Errorf("%w: %w", ErrCreationFailed, err)
	}

	s.log.Info("auth.signup.success", "client_id", acct.ID)
	return acct, nil
}

// Login verifies credentials and issues a fresh session. Every successful
// call creates an independent session with a token never issued before.
func (s *Service) Login(ctx context.Context, email, password string, now time.Time) (session.Issued, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	email = identity.NormalizeEmail(email)

	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if identity.IsNotFound(err) {
			// Equalize timing with the wrong-password path.
			if s.dummyHash != "" {
				identity.VerifyPassword(password, s.dummyHash)
			}
			return session.Issued{}, ErrInvalidCredentials
		}
		return session.Issued{}, fmt.Errorf("auth.Login: %w", err)
	}

	cred, err := s.accounts.GetCredentialByClientID(ctx, acct.ID)
	if err != nil {
		if identity.IsNotFound(err) {
			return session.Issued{}, ErrInvalidCredentials
		}
		return session.Issued{}, fmt.Errorf("auth.Login: %w", err)
	}

	if !identity.VerifyPassword(password, cred.PasswordHash) {
		return session.Issued{}, ErrInvalidCredentials
	}

	if err := s.accounts.SetLastLogin(ctx, cred.AuthID, now); err != nil {
		return session.Issued{}, fmt.Errorf("auth.Login: last_login: %w", err)
	}

	issued, err := s.sessions.Issue(ctx, now, acct.ID)
	if err != nil {
		return session.Issued{}, fmt.Errorf("auth.Login: %w", err)
	}

	s.log.Info("auth.login.success", "client_id", acct.ID)
	return issued, nil
}

// Logout revokes the session behind the bearer token. Revoking a token whose
// session is already gone succeeds.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Revoke(ctx, token); err != nil {
		s.log.Error("auth.logout.fail", "err", err)
		return err
	}
	return nil
}

// ValidateBearer resolves a bearer token to its client id.
func (s *Service) ValidateBearer(ctx context.Context, token string, now time.Time) (string, error) {
	return s.sessions.Validate(ctx, token, now)
}

// RequestPasswordReset starts the reset flow. It returns the same generic
// message no matter what happened: unknown emails create no token, and
// internal failures are logged but swallowed.
func (s *Service) RequestPasswordReset(ctx context.Context, email string, now time.Time) string {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	email = identity.NormalizeEmail(email)

	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if !identity.IsNotFound(err) {
			s.log.Error("auth.reset_request.lookup.fail", "err", err)
		}
		return resetRequestedMessage
	}

	token, err := s.resets.IssueFor(ctx, acct.ID, now)
	if err != nil {
		s.log.Error("auth.reset_request.issue.fail", "err", err)
		return resetRequestedMessage
	}

	if err := s.notifier.SendPasswordReset(ctx, acct.Email, token); err != nil {
		s.log.Error("auth.reset_request.notify.fail", "err", err)
	}

	return resetRequestedMessage
}

// VerifyResetToken checks a reset token and returns the owning client id.
func (s *Service) VerifyResetToken(ctx context.Context, token string, now time.Time) (string, error) {
	return s.resets.Verify(ctx, token, now)
}

// ResetPassword sets a new password for the account owning the token.
//
// The token is consumed only after the password update succeeds; a failed
// update leaves it live for retry. Consuming twice is impossible: the second
// call finds the token gone and fails at verification.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string, now time.Time) error {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	clientID, err := s.resets.Verify(ctx, token, now)
	if err != nil {
		return err
	}

	cred, err := s.accounts.GetCredentialByClientID(ctx, clientID)
	if err != nil {
		s.log.Error("auth.reset.credential.missing", "client_id", clientID, "err", err)
		return fmt.Errorf("%w: auth record missing", ErrResetFailed)
	}

	hash, err := identity.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrResetFailed, err)
	}

	if err := s.accounts.SetPasswordHash(ctx, cred.AuthID, hash, now); err != nil {
		s.log.Error("auth.reset.update.fail", "err", err)
		return fmt.Errorf("%w: %w", ErrResetFailed, err)
	}

	if err := s.resets.Consume(ctx, token); err != nil {
		// Password already changed; a lingering token row is purged on the
		// next issue or verify.
		s.log.Error("auth.reset.consume.fail", "err", err)
	}

	s.log.Info("auth.reset.success", "client_id", clientID)
	return nil
}
