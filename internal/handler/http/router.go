package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ecomstack/identity/internal/auth"
	"github.com/ecomstack/identity/internal/domain"
	"github.com/ecomstack/identity/internal/service"
	"github.com/ecomstack/identity/pkg/health"
	"github.com/ecomstack/identity/pkg/middleware"
)

// NewRouter creates a chi router with all identity service routes registered.
func NewRouter(
	identityService *service.IdentityService,
	issuer *auth.TokenIssuer,
	healthHandler *health.Handler,
	cookies CookieConfig,
	corsConfig middleware.CORSConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(corsConfig))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("identity"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	authHandler := NewAuthHandler(identityService, cookies, logger)

	// Token validator bridging the auth middleware to the issuer.
	tokenValidator := func(token string) (*middleware.Claims, error) {
		claims, err := issuer.Validate(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			AccountID: claims.Subject,
			Email:     claims.Email,
			Roles:     claims.Roles,
		}, nil
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		// Public endpoints
		r.Post("/register", authHandler.Register)
		r.Post("/verify-email", authHandler.VerifyEmail)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.RefreshToken)
		r.Post("/revoke", authHandler.RevokeToken)
		r.Post("/forgot-password", authHandler.ForgotPassword)
		r.Post("/reset-password", authHandler.ResetPassword)

		// Bearer-authenticated endpoints. Logout acts on an end-user
		// session, so the token must carry the customer role.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokenValidator))
			r.Use(middleware.RequireRole(domain.RoleCustomer))

			r.Post("/logout", authHandler.Logout)
		})
	})

	return r
}
