// Package postgres is the Postgres access layer shared by the Scheduler,
// Pump and Worker: pool construction, the WithTx transaction wrapper, and
// the per-component repositories. Grounded on join-service's
// internal/infrastructure/postgres (pgxpool + tx pattern) and
// event-service's internal/infrastructure/db/postgres/outbox.go (claim
// query shape).
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool opens a connection pool sized per spec.md §5 ("max 10-20
// connections, idle timeout 30s, connect timeout 10s").
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	poolCfg.MaxConns = 20
	poolCfg.MinConns = 2
	poolCfg.MaxConnIdleTime = 30 * time.Second
	poolCfg.ConnConfig.ConnectTimeout = 10 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}
