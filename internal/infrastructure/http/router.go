package http

import (
	"context"
	"net/http"
	"time"

	"holidaysri-admin/internal/infrastructure/cloudinary"
	jwtutil "holidaysri-admin/pkg/jwt"
	"holidaysri-admin/pkg/middleware"
	"holidaysri-admin/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// RouterDeps are the pieces the HTTP surface is assembled from
type RouterDeps struct {
	Log          zerolog.Logger
	JWTManager   *jwtutil.JWTManager
	Payouts      *HTTPPayoutController
	Auth         *HTTPAuthController
	Uploads      *cloudinary.Handler // nil when no asset host is configured
	LoginLimiter *middleware.RateLimiter
	// HealthCheck pings the backing store
	HealthCheck func(ctx context.Context) error
	Timeout     time.Duration
}

// NewRouter builds the admin API
func NewRouter(d RouterDeps) http.Handler {
	if d.Timeout == 0 {
		d.Timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.LoggingMiddleware(d.Log))
	r.Use(middleware.RecoveryMiddleware)
	r.Use(middleware.TimeoutMiddleware(d.Timeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if d.HealthCheck != nil {
			if err := d.HealthCheck(r.Context()); err != nil {
				response.SendServiceUnavailable(w, r, "Storage unavailable")
				return
			}
		}
		response.SendSuccess(w, r, map[string]string{"status": "ok"})
	})

	r.Route("/auth", func(r chi.Router) {
		if d.LoginLimiter != nil {
			r.Use(d.LoginLimiter.Middleware)
		}
		r.Post("/login", d.Auth.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.JWTAuthMiddleware(d.JWTManager))
		r.Use(middleware.RequireAdmin)

		d.Payouts.Mount(r)
		if d.Uploads != nil {
			r.Post("/uploads", d.Uploads.HandleUpload)
		}
	})

	return r
}
