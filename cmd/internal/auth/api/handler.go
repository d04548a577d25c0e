// Package authapi wires the /auth HTTP endpoints to the workflow engine.
//
// Error bodies are generic on purpose: internal detail goes to the log, never
// into a response.
package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"clientauth/cmd/identity"
	"clientauth/cmd/internal/auth"
	"clientauth/cmd/internal/auth/reset"
)

// Config controls auth API behavior.
type Config struct {
	MaxBodyBytes int64
}

// Handler serves the /auth endpoints.
type Handler struct {
	log  *slog.Logger
	cfg  Config
	auth *auth.Service
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, svc *auth.Service) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Handler{log: log, cfg: cfg, auth: svc}
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/auth/signup", h.handleSignup)
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/logout", h.handleLogout)
	mux.HandleFunc("/auth/forgot-password", h.handleForgotPassword)
	mux.HandleFunc("/auth/verify-reset-token", h.handleVerifyResetToken)
	mux.HandleFunc("/auth/reset-password", h.handleResetPassword)
}

// ---- handlers ----

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req signupRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	acct, err := h.auth.Signup(r.Context(), req.ClientName, req.Email, req.Password)
	if err != nil {
		switch {
		case identity.IsConflict(err):
			signupTotal.WithLabelValues("duplicate_email").Inc()
			writeError(w, http.StatusConflict, "duplicate_email", "email is already registered")
		case identity.IsInvalidInput(err):
			signupTotal.WithLabelValues("invalid_input").Inc()
			writeError(w, http.StatusBadRequest, "invalid_input", "invalid client_name, email or password")
		default:
			signupTotal.WithLabelValues("error").Inc()
			h.log.Error("auth.signup.fail", "err", err)
			writeError(w, http.StatusBadRequest, "creation_failed", "failed to create account")
		}
		return
	}

	signupTotal.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, ToAccountResponse(acct))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	issued, err := h.auth.Login(r.Context(), req.Email, req.Password, time.Now().UTC())
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			loginTotal.WithLabelValues("invalid_credentials").Inc()
			// One body for unknown email and wrong password alike.
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
			return
		}
		loginTotal.WithLabelValues("error").Inc()
		h.log.Error("auth.login.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	loginTotal.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: issued.Token,
		TokenType:   "bearer",
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	token := BearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if _, err := h.auth.ValidateBearer(r.Context(), token, time.Now().UTC()); err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		return
	}

	if err := h.auth.Logout(r.Context(), token); err != nil {
		writeError(w, http.StatusBadRequest, "logout_failed", "failed to log out")
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Successfully logged out"})
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req forgotPasswordRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	passwordResetTotal.WithLabelValues("request", "success").Inc()
	msg := h.auth.RequestPasswordReset(r.Context(), req.Email, time.Now().UTC())
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

func (h *Handler) handleVerifyResetToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req verifyResetTokenRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	clientID, err := h.auth.VerifyResetToken(r.Context(), req.Token, time.Now().UTC())
	if err != nil {
		if errors.Is(err, reset.ErrInvalidOrExpired) {
			passwordResetTotal.WithLabelValues("verify", "invalid").Inc()
			writeError(w, http.StatusBadRequest, "invalid_or_expired", "invalid or expired token")
			return
		}
		passwordResetTotal.WithLabelValues("verify", "error").Inc()
		h.log.Error("auth.verify_reset_token.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	passwordResetTotal.WithLabelValues("verify", "success").Inc()
	writeJSON(w, http.StatusOK, verifyResetTokenResponse{ClientID: clientID})
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req resetPasswordRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	err := h.auth.ResetPassword(r.Context(), req.Token, req.NewPassword, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, reset.ErrInvalidOrExpired):
			passwordResetTotal.WithLabelValues("reset", "invalid").Inc()
			writeError(w, http.StatusBadRequest, "invalid_or_expired", "invalid or expired token")
		case errors.Is(err, auth.ErrResetFailed):
			passwordResetTotal.WithLabelValues("reset", "failed").Inc()
			h.log.Error("auth.reset_password.fail", "err", err)
			writeError(w, http.StatusBadRequest, "reset_failed", "failed to reset password")
		default:
			passwordResetTotal.WithLabelValues("reset", "error").Inc()
			h.log.Error("auth.reset_password.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	passwordResetTotal.WithLabelValues("reset", "success").Inc()
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password has been reset successfully"})
}

// BearerToken extracts the bearer credential from the Authorization header.
// Exported because the clients API performs the same extraction.
func BearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
