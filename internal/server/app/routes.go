package app

import (
	"net/http"

	"github.com/DrakonKapysta/web-beat-api/internal/models"
	"github.com/DrakonKapysta/web-beat-api/internal/server/handlers"
	"github.com/DrakonKapysta/web-beat-api/internal/server/middleware"
)

// routes регистрирует маршруты API и оборачивает mux общими middleware
func (a *App) routes(version string) http.Handler {
	cookies := a.cookieConfig()

	auth := handlers.NewAuthHandler(a.logger, a.users, a.sessions, cookies)
	health := handlers.NewHealthHandler(a.logger, a.store, version)

	guard := middleware.SessionGuard(a.sessions, cookies, a.logger)
	limit := func(h http.Handler) http.Handler {
		if a.limiter == nil {
			return h
		}
		return a.limiter.Middleware(h)
	}

	mux := http.NewServeMux()

	// Публичные маршруты
	mux.Handle("POST /api/v1/auth/register", limit(http.HandlerFunc(auth.Register)))
	mux.Handle("POST /api/v1/auth/login", limit(http.HandlerFunc(auth.Login)))

	// Требуют действующей сессии
	mux.Handle("GET /api/v1/auth/validate", guard(http.HandlerFunc(auth.Validate)))
	mux.Handle("GET /api/v1/auth/refresh", guard(http.HandlerFunc(auth.Refresh)))
	mux.Handle("POST /api/v1/auth/logout", guard(http.HandlerFunc(auth.Logout)))
	mux.Handle("GET /api/v1/auth/admin/ping", middleware.Chain(http.HandlerFunc(auth.AdminPing),
		guard,
		middleware.RequireRoles(a.logger, models.RoleAdmin),
	))

	mux.HandleFunc("GET /health", health.Health)
	mux.Handle("GET /metrics", a.metrics.Handler())

	return middleware.Chain(mux,
		middleware.Recovery(a.logger),
		middleware.Logging(a.logger, "/health", "/metrics"),
		middleware.Metrics(a.metrics),
		middleware.CORS(a.cfg.CORSOrigin),
	)
}
