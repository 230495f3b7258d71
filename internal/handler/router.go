package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ventia/console-gateway/internal/middleware"
	"github.com/ventia/console-gateway/pkg/logger"
)

// ScopeSuperAdmin gates the administration passthrough.
const ScopeSuperAdmin = "superadmin"

// tenantResources are relayed to the backend for any authenticated tenant.
var tenantResources = []string{"orders", "invoices", "assistant", "metrics"}

// adminResources are relayed under /admin and need ScopeSuperAdmin.
var adminResources = []string{"tenants", "api-keys", "metrics"}

// RouterConfig collects what NewRouter wires together.
type RouterConfig struct {
	Logger            *logger.Logger
	JWTSecret         string
	JWTIssuer         string
	AllowedOrigins    []string
	RateLimitRequests int
	RateLimitWindow   time.Duration

	Health    *HealthHandler
	Proxy     *ProxyHandler
	Workspace *WorkspaceHandler
	Stream    *StreamHandler
}

// NewRouter builds the gateway's HTTP routes.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret, cfg.JWTIssuer))
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		// Messaging façade
		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", cfg.Proxy.ListConversations)
			r.Route("/{id}", func(r chi.Router) {
				r.Patch("/", cfg.Proxy.UpdateConversation)
				r.Get("/messages", cfg.Proxy.ListMessages)
				r.Post("/labels", cfg.Proxy.AddLabel)
				r.Delete("/labels/{labelId}", cfg.Proxy.RemoveLabel)
			})
		})
		r.Get("/inboxes", cfg.Proxy.ListInboxes)
		r.Get("/labels", cfg.Proxy.ListLabels)
		r.Post("/labels", cfg.Proxy.CreateLabel)

		// Backend passthrough
		r.Route("/backend", func(r chi.Router) {
			for _, res := range tenantResources {
				r.Handle("/"+res, cfg.Proxy.Forward("/"+res))
				r.Handle("/"+res+"/*", cfg.Proxy.Forward("/"+res))
			}
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireScope(ScopeSuperAdmin))
				for _, res := range adminResources {
					r.Handle("/"+res, cfg.Proxy.Forward("/admin/"+res))
					r.Handle("/"+res+"/*", cfg.Proxy.Forward("/admin/"+res))
				}
			})
		})

		// Inbox workspace
		r.Route("/workspace", func(r chi.Router) {
			r.Post("/", cfg.Workspace.Open)
			r.Get("/", cfg.Workspace.Get)
			r.Delete("/", cfg.Workspace.Close)
			r.Post("/select", cfg.Workspace.Select)
			r.Post("/back", cfg.Workspace.Back)
			r.Post("/info", cfg.Workspace.Info)
			r.Get("/events", cfg.Stream.Events)

			r.Route("/conversations/{id}", func(r chi.Router) {
				r.Delete("/", cfg.Workspace.Delete)
				r.Get("/panel", cfg.Workspace.Panel)
				r.Get("/messages", cfg.Workspace.Messages)
				r.Post("/labels", cfg.Workspace.AddLabel)
				r.Post("/labels/new", cfg.Workspace.CreateLabel)
				r.Delete("/labels/{labelId}", cfg.Workspace.RemoveLabel)
				r.Post("/temperature", cfg.Workspace.Temperature)
				r.Post("/temperature/suggest", cfg.Workspace.SuggestTemperature)
			})
		})
	})

	return r
}
