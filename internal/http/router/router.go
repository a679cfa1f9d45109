package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sandeepkv93/todo-auth-core/internal/health"
	"github.com/sandeepkv93/todo-auth-core/internal/http/handler"
	"github.com/sandeepkv93/todo-auth-core/internal/http/middleware"
	"github.com/sandeepkv93/todo-auth-core/internal/http/response"
	"github.com/sandeepkv93/todo-auth-core/internal/service"
)

const (
	RoutePolicyLogin        = "login"
	RoutePolicyRefresh      = "refresh"
	RoutePolicyVerification = "verification"
	RoutePolicyPassword     = "password"
)

const maxRequestBodyBytes = 1 << 20

type Dependencies struct {
	AuthHandler            *handler.AuthHandler
	SessionHandler         *handler.SessionHandler
	TokenVerifier          service.AccessTokenVerifier
	Sessions               service.SessionChecker
	CORSOrigins            []string
	AuthRateLimitRPM       int
	APIRateLimitRPM        int
	GlobalRateLimiter      GlobalRateLimiterFunc
	AuthRateLimiter        AuthRateLimiterFunc
	RouteRateLimitPolicies RouteRateLimitPolicies
	Readiness              *health.ReadinessRunner
	EnableOTelHTTP         bool
}

type GlobalRateLimiterFunc func(http.Handler) http.Handler
type AuthRateLimiterFunc func(http.Handler) http.Handler

// RouteRateLimitPolicies overrides the auth limiter for individual named
// routes.
type RouteRateLimitPolicies map[string]func(http.Handler) http.Handler

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(maxRequestBodyBytes))
	if dep.GlobalRateLimiter != nil {
		r.Use(dep.GlobalRateLimiter)
	} else {
		r.Use(middleware.NewRateLimiter(nil, middleware.PerMinute(dep.APIRateLimitRPM)).Middleware())
	}

	authLimiter := dep.AuthRateLimiter
	if authLimiter == nil {
		authLimiter = middleware.NewRateLimiter(nil, middleware.PerMinute(dep.AuthRateLimitRPM), middleware.WithScope("auth")).Middleware()
	}
	policy := func(name string) func(http.Handler) http.Handler {
		if mw, ok := dep.RouteRateLimitPolicies[name]; ok && mw != nil {
			return mw
		}
		return authLimiter
	}
	requireAuth := middleware.AuthMiddleware(dep.TokenVerifier, dep.Sessions)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(authLimiter).Post("/register", dep.AuthHandler.Register)
			r.With(policy(RoutePolicyVerification)).Post("/verify-email", dep.AuthHandler.VerifyEmail)
			r.With(policy(RoutePolicyVerification)).Post("/resend-verification", dep.AuthHandler.ResendVerification)
			r.With(policy(RoutePolicyLogin)).Post("/login", dep.AuthHandler.Login)
			r.With(policy(RoutePolicyRefresh)).Post("/refresh", dep.AuthHandler.Refresh)
			r.With(policy(RoutePolicyPassword)).Post("/forgot-password", dep.AuthHandler.ForgotPassword)
			r.With(policy(RoutePolicyPassword)).Post("/reset-password", dep.AuthHandler.ResetPassword)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/logout", dep.AuthHandler.Logout)
				r.Post("/logout-all", dep.AuthHandler.LogoutAll)
				r.With(authLimiter).Patch("/password", dep.AuthHandler.ChangePassword)
				r.Get("/sessions", dep.SessionHandler.List)
				r.Delete("/sessions/{id}", dep.SessionHandler.Revoke)
				r.Get("/security-events", dep.SessionHandler.SecurityEvents)
				r.Get("/credentials", dep.AuthHandler.ListCredentials)
				r.With(authLimiter).Post("/credentials/external", dep.AuthHandler.LinkExternalCredential)
			})
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
