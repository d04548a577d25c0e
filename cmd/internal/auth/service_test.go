package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"clientauth/cmd/identity"
	"clientauth/cmd/internal/auth/reset"
	"clientauth/cmd/internal/auth/session"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// captureNotifier records the tokens handed to SendPasswordReset.
type captureNotifier struct {
	mu     sync.Mutex
	tokens []string
	emails []string
	err    error
}

func (n *captureNotifier) SendPasswordReset(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.tokens = append(n.tokens, token)
	n.emails = append(n.emails, email)
	return nil
}

func (n *captureNotifier) lastToken(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.tokens) == 0 {
		t.Fatal("no reset notification sent")
	}
	return n.tokens[len(n.tokens)-1]
}

type testEnv struct {
	svc      *Service
	accounts *identity.MemoryStore
	resets   *reset.MemoryStore
	sessions *session.MemoryStore
	notifier *captureNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	accounts := identity.NewMemoryStore()
	resets := reset.NewMemoryStore(30 * time.Minute)
	sessStore := session.NewMemoryStore()
	accounts.OnDeleteCascade(sessStore.WipeClient, resets.WipeClient)

	issuer, err := session.NewJWTManager(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := &captureNotifier{}
	svc := NewService(log, accounts, resets, session.NewService(issuer, sessStore), notifier)

	return &testEnv{
		svc:      svc,
		accounts: accounts,
		resets:   resets,
		sessions: sessStore,
		notifier: notifier,
	}
}

func (e *testEnv) signup(t *testing.T, name, email, password string) identity.Account {
	t.Helper()
	acct, err := e.svc.Signup(context.Background(), name, email, password)
	if err != nil {
		t.Fatalf("Signup(%s): %v", email, err)
	}
	return acct
}

func TestSignup_Validation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Signup(ctx, "", "a@example.com", "pw"); !identity.IsInvalidInput(err) {
		t.Fatalf("empty name: got %v", err)
	}
	if _, err := env.svc.Signup(ctx, "Acme", "not-an-email", "pw"); !identity.IsInvalidInput(err) {
		t.Fatalf("bad email: got %v", err)
	}
	if _, err := env.svc.Signup(ctx, "Acme", "a@example.com", ""); !identity.IsInvalidInput(err) {
		t.Fatalf("empty password: got %v", err)
	}
	if env.accounts.AccountCount() != 0 {
		t.Fatalf("accounts created on invalid input: %d", env.accounts.AccountCount())
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.signup(t, "First", "dup@example.com", "password-1")

	_, err := env.svc.Signup(context.Background(), "Second", "DUP@Example.com", "password-2")
	if !identity.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestSignup_StoreFailureWrapsCreationFailed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.accounts.FailNextCredentialInsert(errors.New("disk on fire"))

	_, err := env.svc.Signup(context.Background(), "Acme", "acme@example.com", "password")
	if !errors.Is(err, ErrCreationFailed) {
		t.Fatalf("expected ErrCreationFailed, got %v", err)
	}
	if env.accounts.AccountCount() != 0 {
		t.Fatal("failed signup left an account behind")
	}
}

func TestLogin_SuccessRecordsLastLogin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	acct := env.signup(t, "Acme", "acme@example.com", "password")
	ctx := context.Background()
	now := time.Now().UTC()

	issued, err := env.svc.Login(ctx, "ACME@example.com", "password", now)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if issued.Token == "" {
		t.Fatal("no token issued")
	}

	clientID, err := env.svc.ValidateBearer(ctx, issued.Token, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("ValidateBearer: %v", err)
	}
	if clientID != acct.ID {
		t.Fatalf("clientID=%q want=%q", clientID, acct.ID)
	}

	cred, err := env.accounts.GetCredentialByClientID(ctx, acct.ID)
	if err != nil {
		t.Fatalf("GetCredentialByClientID: %v", err)
	}
	if cred.LastLogin == nil || !cred.LastLogin.Equal(now) {
		t.Fatalf("last_login=%v want=%v", cred.LastLogin, now)
	}
}

func TestLogin_EnumerationResistance(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.signup(t, "Acme", "known@example.com", "password")
	ctx := context.Background()
	now := time.Now().UTC()

	_, errUnknown := env.svc.Login(ctx, "unknown@example.com", "password", now)
	_, errWrongPw := env.svc.Login(ctx, "known@example.com", "wrong", now)

	if !errors.Is(errUnknown, ErrInvalidCredentials) {
		t.Fatalf("unknown email: got %v", errUnknown)
	}
	if !errors.Is(errWrongPw, ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v", errWrongPw)
	}
	// Both failures must be the same sentinel, with no detail to tell apart.
	if errUnknown.Error() != errWrongPw.Error() {
		t.Fatalf("distinguishable failures: %q vs %q", errUnknown, errWrongPw)
	}
}

func TestLogin_IndependentSessions(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	acct := env.signup(t, "Acme", "acme@example.com", "password")
	ctx := context.Background()
	now := time.Now().UTC()

	first, err := env.svc.Login(ctx, "acme@example.com", "password", now)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	second, err := env.svc.Login(ctx, "acme@example.com", "password", now)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if first.Token == second.Token {
		t.Fatal("logins reused a token")
	}
	if env.sessions.CountForClient(acct.ID) != 2 {
		t.Fatalf("sessions=%d want=2", env.sessions.CountForClient(acct.ID))
	}

	if err := env.svc.Logout(ctx, first.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := env.svc.ValidateBearer(ctx, first.Token, now.Add(time.Minute)); !errors.Is(err, session.ErrInvalidToken) {
		t.Fatalf("logged-out token still valid: %v", err)
	}
	if _, err := env.svc.ValidateBearer(ctx, second.Token, now.Add(time.Minute)); err != nil {
		t.Fatalf("unrelated session revoked: %v", err)
	}

	// Logout of an already-dead token still succeeds.
	if err := env.svc.Logout(ctx, first.Token); err != nil {
		t.Fatalf("repeat Logout: %v", err)
	}
}

func TestRequestPasswordReset_UniformResponse(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.signup(t, "Acme", "known@example.com", "password")
	ctx := context.Background()
	now := time.Now().UTC()

	msgKnown := env.svc.RequestPasswordReset(ctx, "known@example.com", now)
	msgUnknown := env.svc.RequestPasswordReset(ctx, "unknown@example.com", now)

	if msgKnown != msgUnknown {
		t.Fatalf("responses differ: %q vs %q", msgKnown, msgUnknown)
	}
	// Only the registered email produced a token.
	if env.resets.Count() != 1 {
		t.Fatalf("reset tokens=%d want=1", env.resets.Count())
	}
	if got := env.notifier.lastToken(t); got == "" {
		t.Fatal("empty token notified")
	}
}

func TestRequestPasswordReset_NotifyFailureSwallowed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.signup(t, "Acme", "known@example.com", "password")
	env.notifier.err = errors.New("smtp down")

	msg := env.svc.RequestPasswordReset(context.Background(), "known@example.com", time.Now().UTC())
	if msg == "" {
		t.Fatal("empty message")
	}
	// The token exists even though delivery failed.
	if env.resets.Count() != 1 {
		t.Fatalf("reset tokens=%d want=1", env.resets.Count())
	}
}

func TestResetPassword_FullLifecycle(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	acct := env.signup(t, "Acme", "acme@example.com", "old-password")
	ctx := context.Background()
	now := time.Now().UTC()

	env.svc.RequestPasswordReset(ctx, "acme@example.com", now)
	token := env.notifier.lastToken(t)

	clientID, err := env.svc.VerifyResetToken(ctx, token, now)
	if err != nil {
		t.Fatalf("VerifyResetToken: %v", err)
	}
	if clientID != acct.ID {
		t.Fatalf("clientID=%q want=%q", clientID, acct.ID)
	}

	if err := env.svc.ResetPassword(ctx, token, "new-password", now); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	// New password works, old one does not.
	if _, err := env.svc.Login(ctx, "acme@example.com", "new-password", now); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if _, err := env.svc.Login(ctx, "acme@example.com", "old-password", now); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still works: %v", err)
	}

	// The token was consumed; a second reset attempt fails at verification.
	if err := env.svc.ResetPassword(ctx, token, "another-password", now); !errors.Is(err, reset.ErrInvalidOrExpired) {
		t.Fatalf("consumed token reused: %v", err)
	}
}

func TestResetPassword_FailedUpdateKeepsToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.signup(t, "Acme", "acme@example.com", "old-password")
	ctx := context.Background()
	now := time.Now().UTC()

	env.svc.RequestPasswordReset(ctx, "acme@example.com", now)
	token := env.notifier.lastToken(t)

	// An unhashable password fails after verification; the token survives.
	if err := env.svc.ResetPassword(ctx, token, "", now); !errors.Is(err, ErrResetFailed) {
		t.Fatalf("expected ErrResetFailed, got %v", err)
	}
	if _, err := env.svc.VerifyResetToken(ctx, token, now); err != nil {
		t.Fatalf("token consumed by failed reset: %v", err)
	}

	// Retry with a usable password succeeds.
	if err := env.svc.ResetPassword(ctx, token, "new-password", now); err != nil {
		t.Fatalf("retry ResetPassword: %v", err)
	}
	if _, err := env.svc.Login(ctx, "acme@example.com", "new-password", now); err != nil {
		t.Fatalf("login after retry: %v", err)
	}
}

func TestResetPassword_ExpiredToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.signup(t, "Acme", "acme@example.com", "password")
	ctx := context.Background()
	now := time.Now().UTC()

	env.svc.RequestPasswordReset(ctx, "acme@example.com", now)
	token := env.notifier.lastToken(t)

	err := env.svc.ResetPassword(ctx, token, "new-password", now.Add(31*time.Minute))
	if !errors.Is(err, reset.ErrInvalidOrExpired) {
		t.Fatalf("expected ErrInvalidOrExpired, got %v", err)
	}
}
