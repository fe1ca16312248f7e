package handler

import (
	"errors"
	"net/http"

	"github.com/daleapp/dale-backend/internal/apperr"
	"github.com/daleapp/dale-backend/internal/middleware"
	"github.com/daleapp/dale-backend/internal/service"
)

// AuthHandler handles sign-up, sign-in, sign-out and session requests.
type AuthHandler struct {
	authSvc *service.AuthService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authSvc *service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp handles POST /api/v1/auth/signup
//
// Response codes:
//
//	201 — Account created (returns profile and token)
//	400 — Invalid email or weak password
//	409 — Email already registered
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var in signUpRequest
	if err := decodeJSON(r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	profile, token, err := h.authSvc.SignUp(r.Context(), in.Email, in.Password, in.FullName)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"profile": profile,
		"token":   token,
	})
}

// SignIn handles POST /api/v1/auth/login
//
// Bad credentials always return 401; the response does not reveal whether
// the email exists.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var in signInRequest
	if err := decodeJSON(r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	profile, token, err := h.authSvc.SignIn(r.Context(), in.Email, in.Password)
	if err != nil {
		var aErr apperr.AuthError
		if errors.As(err, &aErr) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error":   "unauthorized",
				"message": aErr.Msg,
			})
			return
		}
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"profile": profile,
		"token":   token,
	})
}

// SignOut handles POST /api/v1/auth/logout
//
// Revokes the presented token. Always 204, even for an invalid token.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.authSvc.SignOut(r.Context(), middleware.BearerToken(r)); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Session handles GET /api/v1/auth/session
//
// Returns the authenticated caller's profile.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	profile, err := h.authSvc.Session(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		var aErr apperr.AuthError
		if errors.As(err, &aErr) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error":   "unauthorized",
				"message": aErr.Msg,
			})
			return
		}
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}
