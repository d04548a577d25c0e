// Package clientsapi serves the /clients CRUD endpoints.
//
// All routes require a valid bearer session. Mutations additionally require
// that the caller owns the target account: any bearer can read, only the
// owner can update or delete.
package clientsapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"clientauth/cmd/identity"
	"clientauth/cmd/internal/auth"
	authapi "clientauth/cmd/internal/auth/api"
)

// Config controls clients API behavior.
type Config struct {
	MaxBodyBytes int64
}

// Handler serves the /clients endpoints.
type Handler struct {
	log      *slog.Logger
	cfg      Config
	accounts identity.Store
	auth     *auth.Service
}

// NewHandler constructs a clients Handler.
func NewHandler(log *slog.Logger, cfg Config, accounts identity.Store, svc *auth.Service) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Handler{log: log, cfg: cfg, accounts: accounts, auth: svc}
}

// Register wires client routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/clients", h.handleCollection)
	mux.HandleFunc("/clients/", h.handleItem)
}

type updateClientRequest struct {
	ClientName *string `json:"client_name"`
	Email      *string `json:"email"`
}

func (h *Handler) handleCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := h.requireAuth(w, r); !ok {
		return
	}

	accounts, err := h.accounts.List(r.Context())
	if err != nil {
		h.log.Error("clients.list.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	out := make([]authapi.AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, authapi.ToAccountResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/clients/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not_found", "client not found")
		return
	}

	callerID, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getClient(w, r, id)
	case http.MethodPut:
		h.updateClient(w, r, id, callerID)
	case http.MethodDelete:
		h.deleteClient(w, r, id, callerID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) getClient(w http.ResponseWriter, r *http.Request, id string) {
	acct, err := h.accounts.GetByID(r.Context(), id)
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", "client not found")
			return
		}
		h.log.Error("clients.get.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, authapi.ToAccountResponse(acct))
}

func (h *Handler) updateClient(w http.ResponseWriter, r *http.Request, id, callerID string) {
	if id != callerID {
		writeError(w, http.StatusForbidden, "forbidden", "cannot modify another client")
		return
	}

	var req updateClientRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if req.Email != nil && !identity.ValidEmail(identity.NormalizeEmail(*req.Email)) {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid email format")
		return
	}

	acct, err := h.accounts.Update(r.Context(), id, identity.UpdateAccountInput{
		ClientName: req.ClientName,
		Email:      req.Email,
		Now:        time.Now().UTC(),
	})
	if err != nil {
		switch {
		case identity.IsNotFound(err):
			writeError(w, http.StatusNotFound, "not_found", "client not found")
		case identity.IsConflict(err):
			writeError(w, http.StatusConflict, "duplicate_email", "email is already registered")
		case identity.IsInvalidInput(err):
			writeError(w, http.StatusBadRequest, "invalid_input", "invalid fields")
		default:
			h.log.Error("clients.update.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, authapi.ToAccountResponse(acct))
}

func (h *Handler) deleteClient(w http.ResponseWriter, r *http.Request, id, callerID string) {
	if id != callerID {
		writeError(w, http.StatusForbidden, "forbidden", "cannot delete another client")
		return
	}

	if err := h.accounts.DeleteCascade(r.Context(), id); err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", "client not found")
			return
		}
		h.log.Error("clients.delete.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Client deleted successfully"})
}

// requireAuth resolves the bearer token to the caller's client id.
func (h *Handler) requireAuth(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := authapi.BearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return "", false
	}
	clientID, err := h.auth.ValidateBearer(r.Context(), token, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		return "", false
	}
	return clientID, true
}
