package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pipewise/pipeline-engine/internal/http/handlers"
	httpmiddleware "github.com/pipewise/pipeline-engine/internal/http/middleware"
	"github.com/pipewise/pipeline-engine/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger *logging.Logger

	Contacts *handlers.ContactsHandler
	Meetings *handlers.MeetingsHandler
	Feed     *handlers.FeedHandler
	Sweep    *handlers.SweepHandler

	UserAuthSecret string
	SweepSecret    string

	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Requests/sec per IP; zero disables rate limiting.
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	if cfg.RateLimitPerSecond > 0 {
		r.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
	}

	// Public endpoints.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// User-facing API, scoped to the caller's org via JWT claims.
	r.Route("/api", func(api chi.Router) {
		api.Use(httpmiddleware.UserJWT(cfg.UserAuthSecret))

		api.Route("/contacts/{contactID}", func(r chi.Router) {
			r.Get("/insights", cfg.Contacts.Insights)
			r.Post("/next-action", cfg.Contacts.ApplyNextAction)
			r.Post("/claim", cfg.Contacts.Claim)
		})

		api.Post("/meetings", cfg.Meetings.Create)
		api.Post("/meetings/{meetingID}/cancel", cfg.Meetings.Cancel)

		api.Get("/feed", cfg.Feed.Get)
	})

	// Internal trigger for the external scheduler.
	r.Route("/internal", func(internal chi.Router) {
		internal.Use(httpmiddleware.SweepSecret(cfg.SweepSecret))
		internal.Post("/sweep", cfg.Sweep.Trigger)
	})

	return r
}
