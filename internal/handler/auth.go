package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/obsidian/internal/apperror"
	"github.com/sakif/obsidian/internal/auth"
	"github.com/sakif/obsidian/internal/model"
	"github.com/sakif/obsidian/internal/service"
)

// AuthHandler serves registration, login and token verification.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister → create an account
//   - HandleLogin    → exchange email + password for a JWT
//   - HandleVerify   → resolve a bearer token back to its user
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: svc, logger: logger}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// RegisterResponse is the body of a successful registration.
type RegisterResponse struct {
	Message string           `json:"message"`
	User    model.PublicUser `json:"user"`
}

// UserResponse wraps a user, as returned by verify.
type UserResponse struct {
	User model.PublicUser `json:"user"`
}

// HandleRegister creates an account.
//
// HTTP: POST /api/auth/register
// REQUEST BODY: {"email": "alice@x.com", "password": "pw1", "name": "Alice"}
// RESPONSE: 201 {"message": "User created", "user": {"id": 1, "email": ..., "name": ...}}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	user, err := h.auth.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, RegisterResponse{Message: "User created", User: *user})
}

// HandleLogin issues an access token.
//
// HTTP: POST /api/auth/login
// REQUEST BODY: {"email": "alice@x.com", "password": "pw1"}
// RESPONSE: 200 {"token": "<jwt>", "user": {...}}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleVerify returns the user a bearer token belongs to.
//
// HTTP: GET /api/auth/verify
// Auth: "Authorization: Bearer <jwt>"
//
// The status codes match RequireAuth (401 without a token, 403 for a bad
// one) so the client can treat verify like any other protected call. A
// valid token for a user that no longer exists answers 404.
func (h *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.BearerToken(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	user, err := h.auth.Verify(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, apperror.ErrUnauthorized):
			writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "Invalid token"})
		case errors.Is(err, apperror.ErrNotFound):
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "User not found"})
		default:
			writeError(w, r, h.logger, err, http.StatusNotFound)
		}
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{User: *user})
}
