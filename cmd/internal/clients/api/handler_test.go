package clientsapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"clientauth/cmd/identity"
	"clientauth/cmd/internal/auth"
	authapi "clientauth/cmd/internal/auth/api"
	"clientauth/cmd/internal/auth/reset"
	"clientauth/cmd/internal/auth/session"
)

type apiEnv struct {
	srv      *httptest.Server
	accounts *identity.MemoryStore
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	accounts := identity.NewMemoryStore()
	resets := reset.NewMemoryStore(30 * time.Minute)
	sessStore := session.NewMemoryStore()
	accounts.OnDeleteCascade(sessStore.WipeClient, resets.WipeClient)

	issuer, err := session.NewJWTManager([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := auth.NewService(log, accounts, resets, session.NewService(issuer, sessStore), auth.NewLogNotifier(log, "http://localhost:3000"))

	mux := http.NewServeMux()
	authapi.NewHandler(log, authapi.Config{}, svc).Register(mux)
	NewHandler(log, Config{}, accounts, svc).Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &apiEnv{srv: srv, accounts: accounts}
}

func (e *apiEnv) do(t *testing.T, method, path, body, bearer string) (*http.Response, string) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(b)
}

// register creates an account over the API and logs it in.
func (e *apiEnv) register(t *testing.T, name, email, password string) (id, token string) {
	t.Helper()

	resp, body := e.do(t, http.MethodPost, "/auth/signup",
		`{"client_name":"`+name+`","email":"`+email+`","password":"`+password+`"}`, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("signup status=%d body=%s", resp.StatusCode, body)
	}
	var acct authapi.AccountResponse
	if err := json.Unmarshal([]byte(body), &acct); err != nil {
		t.Fatalf("decode signup: %v", err)
	}

	resp, body = e.do(t, http.MethodPost, "/auth/login",
		`{"email":"`+email+`","password":"`+password+`"}`, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status=%d body=%s", resp.StatusCode, body)
	}
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal([]byte(body), &tok); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return acct.ID, tok.AccessToken
}

func TestClients_RequireAuth(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	id, _ := env.register(t, "Acme", "acme@example.com", "password")

	for _, path := range []string{"/clients", "/clients/" + id} {
		resp, _ := env.do(t, http.MethodGet, path, "", "")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("GET %s without bearer status=%d want=401", path, resp.StatusCode)
		}
		resp, _ = env.do(t, http.MethodGet, path, "", "forged-token")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("GET %s with bad bearer status=%d want=401", path, resp.StatusCode)
		}
	}
}

func TestClients_ListAndGet(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	_, tokenA := env.register(t, "Alpha", "alpha@example.com", "password")
	idB, _ := env.register(t, "Beta", "beta@example.com", "password")

	resp, body := env.do(t, http.MethodGet, "/clients", "", tokenA)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status=%d body=%s", resp.StatusCode, body)
	}
	var list []authapi.AccountResponse
	if err := json.Unmarshal([]byte(body), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("list len=%d want=2", len(list))
	}

	// Any authenticated caller may read another account.
	resp, body = env.do(t, http.MethodGet, "/clients/"+idB, "", tokenA)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "beta@example.com") {
		t.Fatalf("get other status=%d body=%s", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodGet, "/clients/does-not-exist", "", tokenA)
	if resp.StatusCode != http.StatusNotFound || !strings.Contains(body, "not_found") {
		t.Fatalf("get unknown status=%d body=%s", resp.StatusCode, body)
	}
}

func TestClients_UpdateOwnerOnly(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	idA, tokenA := env.register(t, "Alpha", "alpha@example.com", "password")
	idB, _ := env.register(t, "Beta", "beta@example.com", "password")

	resp, body := env.do(t, http.MethodPut, "/clients/"+idA,
		`{"client_name":"Alpha Renamed"}`, tokenA)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status=%d body=%s", resp.StatusCode, body)
	}
	var acct authapi.AccountResponse
	if err := json.Unmarshal([]byte(body), &acct); err != nil {
		t.Fatalf("decode update: %v", err)
	}
	if acct.ClientName != "Alpha Renamed" || acct.Email != "alpha@example.com" {
		t.Fatalf("unexpected account: %+v", acct)
	}
	if acct.UpdatedAt == nil {
		t.Fatal("updated_at not set")
	}

	// Mutating someone else's account is forbidden.
	resp, body = env.do(t, http.MethodPut, "/clients/"+idB,
		`{"client_name":"Hijacked"}`, tokenA)
	if resp.StatusCode != http.StatusForbidden || !strings.Contains(body, "forbidden") {
		t.Fatalf("cross-account update status=%d body=%s", resp.StatusCode, body)
	}

	// Email collisions surface as conflicts.
	resp, body = env.do(t, http.MethodPut, "/clients/"+idA,
		`{"email":"beta@example.com"}`, tokenA)
	if resp.StatusCode != http.StatusConflict || !strings.Contains(body, "duplicate_email") {
		t.Fatalf("email conflict status=%d body=%s", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodPut, "/clients/"+idA,
		`{"email":"not-an-email"}`, tokenA)
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(body, "invalid_input") {
		t.Fatalf("bad email status=%d body=%s", resp.StatusCode, body)
	}
}

func TestClients_DeleteCascades(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	idA, tokenA := env.register(t, "Alpha", "alpha@example.com", "password")
	idB, tokenB := env.register(t, "Beta", "beta@example.com", "password")

	// Deleting someone else's account is forbidden.
	resp, body := env.do(t, http.MethodDelete, "/clients/"+idB, "", tokenA)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("cross-account delete status=%d body=%s", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodDelete, "/clients/"+idA, "", tokenA)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Client deleted successfully") {
		t.Fatalf("delete status=%d body=%s", resp.StatusCode, body)
	}

	// The cascade revoked the caller's sessions along with the account.
	resp, _ = env.do(t, http.MethodGet, "/clients", "", tokenA)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("deleted account token status=%d want=401", resp.StatusCode)
	}

	resp, body = env.do(t, http.MethodGet, "/clients/"+idA, "", tokenB)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted status=%d body=%s", resp.StatusCode, body)
	}

	// Login for the deleted account fails like any unknown email.
	resp, _ = env.do(t, http.MethodPost, "/auth/login",
		`{"email":"alpha@example.com","password":"password"}`, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("deleted account login status=%d want=401", resp.StatusCode)
	}

	// The freed email can be registered again.
	env.register(t, "Alpha Again", "alpha@example.com", "password")
}

func TestClients_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	id, token := env.register(t, "Acme", "acme@example.com", "password")

	resp, _ := env.do(t, http.MethodPost, "/clients", "", token)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("POST /clients status=%d want=405", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodPost, "/clients/"+id, `{}`, token)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("POST /clients/{id} status=%d want=405", resp.StatusCode)
	}
}
