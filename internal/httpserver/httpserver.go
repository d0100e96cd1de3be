// Package httpserver exposes the small ops-only surface each process
// serves: /healthz, /readyz, /metrics. This is NOT a user-facing API —
// spec.md's "no interactive surface" (§7) scopes out anything else.
// Grounded on event-service's internal/transport/http/router/router.go
// and internal/transport/http/handlers/health.go.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dripwave/sequencer/internal/metrics"
)

// ReadyChecker reports whether the process's dependencies are reachable.
type ReadyChecker func(ctx context.Context) error

func New(pool *pgxpool.Pool, enableMetrics bool, ready ReadyChecker) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
		defer cancel()

		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"not_ready","reason":"db"}`))
				return
			}
		}
		if ready != nil {
			if err := ready(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"not_ready"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	if enableMetrics {
		r.Handle("/metrics", metrics.Handler())
	}

	return r
}
