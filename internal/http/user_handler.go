package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"auth-service/internal/domain/user"
	"auth-service/internal/platform/apperr"
)

type updateUserRequest struct {
	OldEmail    string `json:"oldEmail"`
	NewEmail    string `json:"newEmail,omitempty"`
	NewPassword string `json:"newPassword,omitempty"`
}

type deleteUserRequest struct {
	Email string `json:"email"`
}

// userSummary is the listing projection; the password hash never
// appears in any payload.
type userSummary struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// @Summary     Update account email or password
// @Tags        users
// @Security    BearerAuth
// @Accept      json
// @Param       request  body  updateUserRequest  true  "Fields to change"
// @Success     200  {object}  map[string]string
// @Failure     404  {object}  map[string]string  "account not found"
// @Failure     409  {object}  map[string]string  "email already exists"
// @Router      /api/auth/update [patch]
func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}
	if req.OldEmail == "" {
		errorResponse(w, apperr.BadRequest("invalid_input", "oldEmail required", nil))
		return
	}

	u, err := h.userSvc.Update(r.Context(), req.OldEmail, req.NewEmail, req.NewPassword)
	if err != nil {
		errorResponse(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "User updated",
		"user":    u.Email,
	})
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	var req deleteUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}
	if req.Email == "" {
		errorResponse(w, apperr.BadRequest("invalid_input", "email required", nil))
		return
	}

	if err := h.userSvc.DeleteByEmail(r.Context(), req.Email); err != nil {
		errorResponse(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("User with email %s deleted", req.Email),
	})
}

func (h *Handler) handleDeleteUserByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid id", err))
		return
	}

	if err := h.userSvc.DeleteByID(r.Context(), id); err != nil {
		errorResponse(w, err)
		return
	}

	slogLogger.Info("user deleted", "id", id, "by", userIDFromCtx(r))

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("User with ID %d deleted", id),
	})
}

// @Summary     Delete every account
// @Tags        users
// @Security    BearerAuth
// @Success     200  {object}  map[string]string
// @Router      /api/auth/delete-all [delete]
func (h *Handler) handleDeleteAllUsers(w http.ResponseWriter, r *http.Request) {
	if err := h.userSvc.DeleteAll(r.Context()); err != nil {
		errorResponse(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "All users deleted"})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	h.listByRole(w, r, user.RoleUser)
}

func (h *Handler) handleListAdmins(w http.ResponseWriter, r *http.Request) {
	h.listByRole(w, r, user.RoleAdmin)
}

func (h *Handler) listByRole(w http.ResponseWriter, r *http.Request, role string) {
	users, err := h.userSvc.ListByRole(r.Context(), role)
	if err != nil {
		errorResponse(w, err)
		return
	}

	summaries := make([]userSummary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, userSummary{ID: u.ID, Email: u.Email, Role: u.Role})
	}

	writeJSON(w, http.StatusOK, summaries)
}
