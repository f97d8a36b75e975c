package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/snowdrift/kanban-app/database"
	"github.com/snowdrift/kanban-app/services"
)

// AuthHandler handles registration, login and identity checks.
type AuthHandler struct {
	authService *services.AuthService
	userService *database.UserService
	log         zerolog.Logger
}

func NewAuthHandler(authService *services.AuthService, userService *database.UserService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
		log:         log,
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string         `json:"token"`
	User  *database.User `json:"user"`
}

// Register creates an account and logs it straight in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "all fields are required")
		return
	}
	if !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "invalid email address")
		return
	}
	if len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}

	hash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		handleError(w, h.log, err)
		return
	}

	user, err := h.userService.Create(r.Context(), req.Username, req.Email, hash)
	if err != nil {
		handleError(w, h.log, err)
		return
	}

	token, err := h.authService.CreateJWT(user.ID, user.Username)
	if err != nil {
		handleError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

// Login verifies credentials and issues a session token. Unknown user
// and wrong password are indistinguishable.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}

	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := h.userService.FindByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		handleError(w, h.log, err)
		return
	}

	if err := h.authService.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.authService.CreateJWT(user.ID, user.Username)
	if err != nil {
		handleError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

// Me returns the identity encoded in the caller's token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":       claims.UserID,
		"username": claims.Username,
	})
}
