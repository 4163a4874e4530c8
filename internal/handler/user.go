package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/RedPatata13/SAA-E-LIbrary/internal/service"
)

// UserHandler exposes account and session operations on the bridge.
type UserHandler struct {
	users    *service.UserService
	readings *service.ReadingService
	logger   *slog.Logger
}

func NewUserHandler(users *service.UserService, readings *service.ReadingService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, readings: readings, logger: logger}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleAdd creates an account.
// POST /api/users  {"username", "password", "isVerified"}
func (h *UserHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var in service.AddUserInput
	if !decodeJSON(w, r, &in) {
		return
	}
	user, err := h.users.AddUser(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusCreated, map[string]any{"user": user})
}

// HandleList returns every account.
// GET /api/users
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"users": users})
}

// HandleVerify checks credentials and verification without logging in.
// POST /api/users/verify  {"username", "password"}
func (h *UserHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var in credentialsRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	user, err := h.users.VerifyUser(r.Context(), in.Username, in.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"user": user})
}

// HandleUpdateUsername renames an account.
// PATCH /api/users/{uid}/username  {"newUsername"}
func (h *UserHandler) HandleUpdateUsername(w http.ResponseWriter, r *http.Request) {
	var in struct {
		NewUsername string `json:"newUsername"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	user, err := h.users.UpdateUsername(r.Context(), chi.URLParam(r, "uid"), in.NewUsername)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"user": user, "message": "Username updated successfully"})
}

// HandlePasswordReset issues a temporary password.
// POST /api/users/password-reset  {"username"}
func (h *UserHandler) HandlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	reset, err := h.users.RequestPasswordReset(r.Context(), in.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{
		"username":          reset.Username,
		"temporaryPassword": reset.TemporaryPassword,
		"expiresAt":         reset.ExpiresAt,
	})
}

// HandleChangePassword sets a new password.
// PUT /api/users/{uid}/password  {"newPassword"}
func (h *UserHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		NewPassword string `json:"newPassword"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	if err := h.users.ChangePassword(r.Context(), chi.URLParam(r, "uid"), in.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"message": "Password changed successfully"})
}

// HandleSetVerified approves or suspends an account.
// PUT /api/users/{uid}/verified  {"verified"}
func (h *UserHandler) HandleSetVerified(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Verified bool `json:"verified"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	user, err := h.users.SetVerified(r.Context(), chi.URLParam(r, "uid"), in.Verified)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"user": user})
}

// HandleDeactivate deletes an account.
// DELETE /api/users/{uid}
func (h *UserHandler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.users.DeactivateAccount(r.Context(), chi.URLParam(r, "uid")); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"message": "Account deactivated"})
}

// HandleHistory lists a user's reading records.
// GET /api/users/{uid}/history
func (h *UserHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.readings.History(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"history": records})
}

// HandleLogin starts the session.
// POST /api/session  {"username", "password"}
func (h *UserHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentialsRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	user, err := h.users.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"user": user})
}

// HandleLogout ends the session.
// DELETE /api/session
func (h *UserHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Logout(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

// HandleCurrent returns the logged-in user, or null.
// GET /api/session
func (h *UserHandler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.CurrentUser(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"user": user})
}
