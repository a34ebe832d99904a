package auth

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Middleware is the subset of the auth middleware the router needs
type Middleware interface {
	Authenticate(next http.Handler) http.Handler
	RequireAdmin(next http.Handler) http.Handler
}

// RegisterRoutes mounts the authentication and admin endpoints under
// /api/v1. The login and register endpoints additionally sit behind the
// supplied per-IP rate limiter.
func RegisterRoutes(r chi.Router, h *AuthHandler, admin *AdminHandler, mw Middleware, loginLimiter func(http.Handler) http.Handler) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(loginLimiter)
			r.Post("/auth/token", h.Login)
			r.Post("/auth/register", h.Register)
		})

		r.Post("/auth/refresh", h.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate)
			r.Get("/auth/me", h.Me)
			r.Post("/auth/change-password", h.ChangePassword)
			r.Get("/users/{id}", h.GetUser)

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireAdmin)
				r.Post("/admin/users", admin.CreateUser)
				r.Post("/admin/unlock-account", admin.UnlockAccount)
				r.Post("/admin/assignments", admin.CreateAssignment)
				r.Delete("/admin/assignments", admin.DeleteAssignment)
				r.Get("/admin/audit-events", admin.ListAuditEvents)
			})
		})
	})
}

// DefaultLoginRateWindow is the default window for the login rate limiter
const DefaultLoginRateWindow = time.Minute

// DefaultLoginRateLimit is the default number of credential attempts per
// window per client IP
const DefaultLoginRateLimit = 10
