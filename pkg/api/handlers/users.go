package handlers

import (
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/luckygong/streambus/pkg/identity"
)

// UserHandler handles credential management API endpoints.
type UserHandler struct {
	store           identity.Admin
	scramIterations int
}

// NewUserHandler creates a new UserHandler. scramIterations is the PBKDF2
// iteration count used when deriving SCRAM verifiers from submitted
// passwords.
func NewUserHandler(store identity.Admin, scramIterations int) (*UserHandler, error) {
	if store == nil {
		return nil, errors.New("NewUserHandler: store is required and must not be nil")
	}
	if scramIterations <= 0 {
		return nil, errors.New("NewUserHandler: scramIterations must be positive")
	}
	return &UserHandler{store: store, scramIterations: scramIterations}, nil
}

// UpsertUserRequest is the request body for PUT /api/v1/users/{username}.
type UpsertUserRequest struct {
	Password string `json:"password"`
	Enabled  *bool  `json:"enabled,omitempty"`
}

// UserResponse describes one credential entry. Verifier material is never
// returned.
type UserResponse struct {
	Username   string   `json:"username"`
	Enabled    bool     `json:"enabled"`
	Mechanisms []string `json:"mechanisms"`
}

// Upsert handles PUT /api/v1/users/{username}.
//
// The submitted password is hashed for PLAIN and expanded into stored
// SCRAM verifiers for both hash families, so the user can authenticate
// with any enabled shared-secret mechanism. An existing entry is
// replaced.
func (h *UserHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if username == "" {
		BadRequest(w, "Username is required")
		return
	}

	var req UpsertUserRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Password == "" {
		BadRequest(w, "Password is required")
		return
	}

	user, err := identity.NewUser(username, req.Password, h.scramIterations)
	if err != nil {
		if errors.Is(err, identity.ErrPasswordTooShort) || errors.Is(err, identity.ErrPasswordTooLong) {
			BadRequest(w, err.Error())
			return
		}
		InternalServerError(w, "Failed to derive credentials")
		return
	}

	if req.Enabled != nil {
		user.Enabled = *req.Enabled
	}

	if err := h.store.Upsert(r.Context(), user); err != nil {
		InternalServerError(w, "Failed to store user")
		return
	}

	WriteJSONCreated(w, userToResponse(user))
}

// Get handles GET /api/v1/users/{username}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	user, err := h.store.Lookup(r.Context(), username)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			NotFound(w, "User not found")
			return
		}
		InternalServerError(w, "Failed to look up user")
		return
	}

	WriteJSONOK(w, userToResponse(user))
}

// List handles GET /api/v1/users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	usernames, err := h.store.List(r.Context())
	if err != nil {
		InternalServerError(w, "Failed to list users")
		return
	}

	sort.Strings(usernames)
	WriteJSONOK(w, map[string][]string{"usernames": usernames})
}

// Delete handles DELETE /api/v1/users/{username}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	if err := h.store.Delete(r.Context(), username); err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			NotFound(w, "User not found")
			return
		}
		InternalServerError(w, "Failed to delete user")
		return
	}

	WriteNoContent(w)
}

func userToResponse(user *identity.User) UserResponse {
	mechanisms := make([]string, 0, len(user.Scram)+1)
	if user.PasswordHash != "" {
		mechanisms = append(mechanisms, "PLAIN")
	}
	for mechanism := range user.Scram {
		mechanisms = append(mechanisms, mechanism)
	}
	sort.Strings(mechanisms)

	return UserResponse{
		Username:   user.Username,
		Enabled:    user.Enabled,
		Mechanisms: mechanisms,
	}
}
