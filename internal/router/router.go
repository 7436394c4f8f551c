package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-tour-auth/internal/config"
	"go-tour-auth/internal/handler"
	"go-tour-auth/internal/metrics"
	"go-tour-auth/internal/middleware"
	"go-tour-auth/internal/model"
)

type Handlers struct {
	Auth   *handler.AuthHandler
	User   *handler.UserHandler
	Audit  *handler.AuditHandler
	Health *handler.HealthHandler
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, m *metrics.Metrics, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.RealIP(cfg.TrustedProxies))
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics(m))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.Get("/health", h.Health.Health)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(rateLimitMiddleware.Handler)
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/register", h.Auth.Register)
			auth.Post("/login", h.Auth.Login)
			auth.Post("/refresh-token", h.Auth.Refresh)
			auth.With(authMiddleware.RequireAuth).Post("/logout", h.Auth.Logout)
		})

		api.Route("/users", func(users chi.Router) {
			users.Use(authMiddleware.RequireAuth)

			users.Get("/me", h.User.Me)
			users.Put("/me/update", h.User.UpdateProfile)
			users.Delete("/me/delete", h.User.DeleteAccount)
			users.With(authMiddleware.RequireRoles(model.Roles(model.RoleAdmin))).Get("/audit", h.Audit.List)
			users.With(authMiddleware.RequireRoles(model.Roles(model.RoleAdmin, model.RoleTourGuide))).Get("/{id}", h.User.Get)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"message":"Route not found","data":null,"error":{"code":"NOT_FOUND"}}`))
	})

	return r
}
