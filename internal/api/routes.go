package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/leadgate/internal/config"
	"github.com/ignite/leadgate/internal/pkg/httputil"
)

// SetupRoutes configures all routes.
func SetupRoutes(cfg config.ServerConfig, h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		// forms are embedded on landing pages we do not enumerate
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health.HandleHealth)
	r.Get("/health/ready", h.health.HandleReadiness)
	if h.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.deps.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/lead", h.SubmitLead)
		r.Get("/lead/health", h.LeadHealth)
		r.Post("/webhooks/tilda", h.TildaWebhook)
		r.Post("/webhooks/marquiz", h.MarquizWebhook)

		r.Group(func(r chi.Router) {
			r.Use(adminAuth(cfg.AdminToken))

			r.Get("/lead/stats", h.LeadStats)
			r.Get("/lead/check-phone", h.CheckPhone)

			r.Route("/reports", func(r chi.Router) {
				r.Get("/quality", h.QualityReport)
				r.Get("/blacklist", h.ListBlacklist)
				r.Post("/blacklist", h.AddBlacklist)
				r.Delete("/blacklist", h.RemoveBlacklist)
				r.Post("/blacklist/refresh", h.RefreshBlacklist)
			})
		})
	})

	return r
}

// adminAuth requires "Authorization: Bearer <token>". An empty token
// disables the admin endpoints.
func adminAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" || !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				httputil.Unauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
