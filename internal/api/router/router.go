package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/frontline-crm-sync/internal/directory"
	"github.com/wolfman30/frontline-crm-sync/internal/frontline"
	httpmiddleware "github.com/wolfman30/frontline-crm-sync/internal/http/middleware"
	"github.com/wolfman30/frontline-crm-sync/internal/routing"
	"github.com/wolfman30/frontline-crm-sync/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger           *logging.Logger
	DirectoryHandler *directory.Handler
	EventsHandler    *frontline.Handler
	RoutingHandler   *routing.Handler
	MetricsHandler   http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/webhooks/frontline", func(r chi.Router) {
		r.Post("/crm", cfg.DirectoryHandler.Lookup)
		r.Post("/conversations", cfg.EventsHandler.ConversationsWebhook)
		r.Post("/routing", cfg.RoutingHandler.RoutingWebhook)
	})

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}
