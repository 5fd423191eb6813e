package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bulwark/pkg/platform/httputil"
)

// HealthChecker reports dependency health for the readiness endpoint.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// RouterConfig carries everything the router mounts.
type RouterConfig struct {
	Chat      *ChatHandler
	Admin     *AdminHandler
	Auth      func(http.Handler) http.Handler
	AdminRole string
	Health    HealthChecker
}

// NewRouter assembles the full route tree: public endpoints behind
// authentication, admin endpoints additionally behind a role check, and
// unauthenticated health and metrics endpoints.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestID)

	r.Get("/health", handleHealth(cfg.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(cfg.Auth)
		cfg.Chat.Register(r)

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(cfg.AdminRole))
			cfg.Admin.Register(r)
		})
	})

	return r
}

func handleHealth(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.Health(r.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "degraded",
					"error":  err.Error(),
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
