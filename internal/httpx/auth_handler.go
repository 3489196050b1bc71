package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/roadmapai/backend/internal/auth"
	"github.com/roadmapai/backend/internal/store/sqlite"
)

// AuthHandler serves registration and login.
type AuthHandler struct {
	auth *auth.Service
}

func NewAuthHandler(a *auth.Service) *AuthHandler {
	return &AuthHandler{auth: a}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	u, err := h.auth.Register(r.Context(), req.Email, req.Password, req.Name)
	if errors.Is(err, sqlite.ErrEmailTaken) {
		writeError(w, http.StatusConflict, "email_taken", "email is already registered")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "registration failed", "error", err)
		writeError(w, http.StatusInternalServerError, "registration_failed", "")
		return
	}

	writeJSON(w, http.StatusCreated, UserResponse{ID: u.ID, Email: u.Email, Name: u.Name})
}

// Me returns the account behind the presented token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	u, err := h.auth.User(r.Context(), identity.UserID)
	if errors.Is(err, sqlite.ErrUserNotFound) {
		// A valid token for a deleted account.
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "account lookup failed", "user_id", identity.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "lookup_failed", "")
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{ID: u.ID, Email: u.Email, Name: u.Name})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	token, u, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "login_failed", "")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token: token,
		User:  UserResponse{ID: u.ID, Email: u.Email, Name: u.Name},
	})
}
