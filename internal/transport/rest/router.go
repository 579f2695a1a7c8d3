package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type RouterDeps struct {
	Handler  *Handler
	Sessions *SessionManager
	Pool     *pgxpool.Pool
	Redis    *redis.Client
}

func NewRouter(d RouterDeps) http.Handler {
	if d.Handler == nil {
		panic("rest.NewRouter: nil handler")
	}
	if d.Sessions == nil {
		panic("rest.NewRouter: nil sessions")
	}

	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(MetricsMiddleware)
	r.Use(HTTPLogger)
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeaders)

	r.Get("/healthz", healthzHandler)
	r.Get("/readyz", readyzHandler(d.Pool, d.Redis))
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", d.Handler.Root)
	r.Get("/party/new", d.Handler.NewPartyForm)

	r.Group(func(r chi.Router) {
		r.Use(d.Sessions.expirySessionMiddleware)

		r.Post("/party", d.Handler.CreateParty)
		r.Get("/party", d.Handler.PartyStatus)
		r.Delete("/party", d.Handler.Leave)
		r.Patch("/party/check-in", d.Handler.CheckIn)
		r.Get("/party/events", d.Handler.Events)
	})

	return r
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func readyzHandler(pool *pgxpool.Pool, rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				http.Error(w, "db unreachable", http.StatusServiceUnavailable)
				return
			}
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				http.Error(w, "redis unreachable", http.StatusServiceUnavailable)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	}
}
