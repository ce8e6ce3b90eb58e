package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/aitools-idm/pkg/audit"
	"github.com/tendant/aitools-idm/pkg/client"
	loginapi "github.com/tendant/aitools-idm/pkg/login/api"
	"github.com/tendant/aitools-idm/pkg/ratelimit"
	twofaapi "github.com/tendant/aitools-idm/pkg/twofa/api"
)

// PrefixConfig holds the mount points of the API groups
type PrefixConfig struct {
	Auth  string
	TwoFA string
	Admin string
}

func DefaultPrefixConfig() PrefixConfig {
	return PrefixConfig{
		Auth:  "/api/auth",
		TwoFA: "/api/2fa",
		Admin: "/api/admin",
	}
}

// ThrottledEndpoints lists the "METHOD /path" keys that get the strict
// per-IP bucket: password checks and every second factor submission.
func (p PrefixConfig) ThrottledEndpoints() []string {
	return []string{
		http.MethodPost + " " + p.Auth + "/login",
		http.MethodPost + " " + p.Auth + "/login/send-code",
		http.MethodPost + " " + p.TwoFA + "/send-code",
		http.MethodPost + " " + p.TwoFA + "/verify",
	}
}

// Config holds all the dependencies and handlers needed to setup routes
type Config struct {
	PrefixConfig PrefixConfig

	LoginHandle *loginapi.Handle
	TwoFaHandle *twofaapi.Handle

	// Verifies session tokens on authenticated routes
	TokenAuth *jwtauth.JWTAuth

	// Optional
	RateLimiter    *ratelimit.Middleware
	Audit          *audit.Middleware
	AllowedOrigins []string
	MetricsEnabled bool
}

// SetupRoutes mounts all IDM routes on the provided router
func SetupRoutes(router chi.Router, cfg Config) {
	if cfg.MetricsEnabled {
		router.Handle("/metrics", promhttp.Handler())
	}

	router.Group(func(r chi.Router) {
		if len(cfg.AllowedOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   cfg.AllowedOrigins,
				AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
				AllowCredentials: true,
				MaxAge:           300,
			}))
		}

		// Public routes
		r.Group(func(r chi.Router) {
			if cfg.RateLimiter != nil {
				r.Use(cfg.RateLimiter.Handler)
			}
			r.Mount(cfg.PrefixConfig.Auth, loginapi.LoginHandler(cfg.LoginHandle))
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(client.Verifier(cfg.TokenAuth))
			r.Use(jwtauth.Authenticator(cfg.TokenAuth))
			r.Use(client.AuthUserMiddleware)
			if cfg.Audit != nil {
				r.Use(cfg.Audit.AuditAuthMiddleware)
			}
			if cfg.RateLimiter != nil {
				r.Use(cfg.RateLimiter.Handler)
			}

			r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
				user, _ := client.GetAuthUser(r)
				render.JSON(w, r, user)
			})
			r.Mount(cfg.PrefixConfig.TwoFA, twofaapi.TwoFaHandler(cfg.TwoFaHandle))
			r.Route(cfg.PrefixConfig.Admin, func(r chi.Router) {
				r.Use(client.RequireRole(client.RoleAdmin))
				r.Mount("/", loginapi.AdminHandler(cfg.LoginHandle))
			})
		})
	})
}
