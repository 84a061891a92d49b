// Package server exposes the auth flows over HTTP.
package server

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"followmate/internal/auth"
	"followmate/internal/config"
)

type Server struct {
	Auth           *auth.Service
	Tokens         *auth.TokenIssuer
	RateLimiter    *auth.RateLimiter
	Audit          *auth.AuditLogger
	Logger         *zap.Logger
	Config         config.Config
	trustedProxies []net.IPNet
}

// NewServer wires the handlers. RateLimiter and Audit may be nil, which
// disables throttling and the activity trail.
func NewServer(cfg config.Config, svc *auth.Service, tokens *auth.TokenIssuer, rl *auth.RateLimiter, audit *auth.AuditLogger, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		Auth:           svc,
		Tokens:         tokens,
		RateLimiter:    rl,
		Audit:          audit,
		Logger:         logger,
		Config:         cfg,
		trustedProxies: parseProxyCIDRs(cfg.TrustedProxies),
	}
}

const (
	limitSignup   = "Too many signup attempts from your IP."
	limitVerify   = "Too many verification attempts from your IP."
	limitLogin    = "Too many login attempts from your IP."
	limitPassword = "Too many password attempts from your IP."
	limitDefault  = "Too many requests from this IP, please try later."
)

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(secureHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.Config.ClientURL},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           int((5 * time.Minute).Seconds()),
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/auth", func(ar chi.Router) {
		ar.With(s.throttle(limitSignup)).Post("/signup", s.handleSignup)
		ar.With(s.throttle(limitVerify)).Post("/verify-email", s.handleVerifyEmail)
		ar.With(s.throttle(limitSignup)).Post("/resend-verification", s.handleResendVerification)
		ar.With(s.throttle(limitLogin)).Post("/login", s.handleLogin)
		ar.With(s.throttle(limitLogin)).Post("/google", s.handleGoogle)

		ar.With(s.throttle(limitPassword)).Post("/forgot-password", s.handleForgotPassword)
		ar.With(s.throttle(limitPassword)).Post("/verify-reset-code", s.handleVerifyResetCode)
		ar.With(s.throttle(limitPassword)).Post("/reset-password", s.handleResetPassword)

		ar.Group(func(pr chi.Router) {
			pr.Use(s.requireAuth)

			pr.With(s.throttle(limitDefault)).Put("/profile/photo", s.handleUpdateProfilePhoto)
			pr.With(s.throttle(limitDefault)).Get("/activity", s.handleActivity)

			pr.With(s.throttle(limitPassword)).Post("/change-password/request", s.handleRequestChangePassword)
			pr.With(s.throttle(limitPassword)).Post("/change-password/verify-code", s.handleVerifyChangePasswordCode)
			pr.With(s.throttle(limitPassword)).Post("/change-password", s.handleChangePassword)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
