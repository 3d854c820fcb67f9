package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"auth-service/internal/domain/user"
	jwtpkg "auth-service/internal/platform/jwt"
)

type Handler struct {
	userSvc *user.Service
	jwtMgr  *jwtpkg.Manager
	db      *sql.DB
}

func NewRouter(userSvc *user.Service, jwtMgr *jwtpkg.Manager, db *sql.DB) http.Handler {
	h := &Handler{
		userSvc: userSvc,
		jwtMgr:  jwtMgr,
		db:      db,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(RequestLogger)
	r.Use(CORSMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", h.handleReady)
	r.Get("/swagger/*", httpSwagger.WrapHandler)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", h.handleSignup)
		r.Post("/login", h.handleLogin)
		r.Post("/logout", h.handleLogout)
		r.Post("/forgot-password", h.handleForgotPassword)
		r.Post("/reset-password/{token}", h.handleResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(jwtMgr, userSvc))

			r.Patch("/update", h.handleUpdateUser)
			r.Delete("/delete", h.handleDeleteUser)
			r.Delete("/delete/{id}", h.handleDeleteUserByID)

			// Listing and bulk deletion were open in the original
			// API; both are admin-only here.
			r.Group(func(r chi.Router) {
				r.Use(RequireRole(user.RoleAdmin))
				r.Delete("/delete-all", h.handleDeleteAllUsers)
				r.Get("/admins", h.handleListAdmins)
				r.Get("/users", h.handleListUsers)
			})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseIDParam(r *http.Request, name string) (int64, error) {
	idStr := chi.URLParam(r, name)
	return strconv.ParseInt(idStr, 10, 64)
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":   "db_unavailable",
			"message": "database not configured",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":   "db_unavailable",
			"message": "database not ready",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
