package api

import (
	"fmt"
	"net/http"

	"github.com/garnizeh/fieldops/internal/auth"
	"github.com/garnizeh/fieldops/internal/authz"
	"github.com/garnizeh/fieldops/internal/models"
)

type AuthHandler struct {
	auth *auth.Service
}

// NewAuthHandler creates a new AuthHandler with required dependencies.
func NewAuthHandler(a *auth.Service) *AuthHandler {
	return &AuthHandler{auth: a}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type signupResponse struct {
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
}

// Signup creates a user. Only admins reach past the policy check.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if err := authz.AuthorizeRole(UserFromContext(r.Context()), authz.Create, authz.User); err != nil {
		writeError(w, r, err)
		return
	}
	var req auth.NewUser
	if err := decodeBody(r, schemaSignup, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u, err := h.auth.Signup(r.Context(), UserFromContext(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, signupResponse{Username: u.Username, Email: u.Email, Role: u.Role}, http.StatusCreated)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, schemaLogin, &req); err != nil {
		writeError(w, r, err)
		return
	}

	pair, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, pair, http.StatusOK)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeBody(r, schemaRefresh, &req); err != nil {
		writeError(w, r, err)
		return
	}

	pair, err := h.auth.Refresh(r.Context(), req.Refresh)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, pair, http.StatusOK)
}

func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	// For stateless JWT, signout is client-side (just delete token)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, `{"message":"signed out"}`)
}
