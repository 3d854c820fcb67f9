package api

import (
	"database/sql"
	"errors"
	"net/http"

	"auth-service/internal/domain/user"
	"auth-service/internal/platform/apperr"
)

func errorResponse(w http.ResponseWriter, err error) {
	appErr := mapError(err)
	writeJSON(w, appErr.StatusCode(), map[string]string{
		"error":   appErr.Code,
		"message": appErr.Message,
	})
}

func mapError(err error) *apperr.AppError {
	if err == nil {
		return apperr.Internal("internal_error", "internal server error", nil)
	}

	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, user.ErrInvalidCredentials):
		return apperr.Unauthorized("invalid_credentials", "invalid credentials", err)
	case errors.Is(err, user.ErrEmailTaken):
		return apperr.Conflict("email_taken", "email already exists", err)
	case errors.Is(err, user.ErrNotFound):
		return apperr.NotFound("account_not_found", "user not found", err)
	case errors.Is(err, user.ErrInvalidResetToken):
		return apperr.BadRequest("invalid_reset_token", "invalid or expired token", err)
	case errors.Is(err, user.ErrInvalidRole):
		return apperr.BadRequest("invalid_role", "invalid role", err)
	case errors.Is(err, sql.ErrNoRows):
		return apperr.NotFound("not_found", "resource not found", err)
	default:
		return apperr.Internal("internal_error", http.StatusText(http.StatusInternalServerError), err)
	}
}
