package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"lendchain/core/events"
	"lendchain/gateway/middleware"
	"lendchain/native/lending"
	"lendchain/native/lendpool"
)

// Config wires the read-only gateway against the protocol engines.
type Config struct {
	Lending       *lending.Engine
	Pool          *lendpool.Engine
	Recorder      *events.Recorder
	Authenticator *middleware.Authenticator
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
}

// New assembles the gateway router: health, versioned read endpoints, the
// websocket event feed and the metrics scrape endpoint.
func New(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(cfg.CORS))

	obs := cfg.Observability
	if obs != nil {
		r.Use(obs.Middleware("root"))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	lendingBridge := &lendingRoutes{engine: cfg.Lending}
	poolBridge := &poolRoutes{engine: cfg.Pool}

	r.Route("/v1", func(sr chi.Router) {
		if cfg.Authenticator != nil {
			sr.Use(cfg.Authenticator.Middleware())
		}
		if obs != nil {
			sr.Use(obs.Middleware("v1"))
		}
		lendingBridge.mount(sr)
		poolBridge.mount(sr)
	})

	if cfg.Recorder != nil {
		feed := &eventFeed{recorder: cfg.Recorder}
		r.Get("/ws/events", feed.handle)
	}

	if obs != nil {
		r.Handle("/metrics", obs.MetricsHandler())
	}

	return r
}
