package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WithTx begins a transaction, runs fn, and commits on success or rolls
// back on error or panic. Mirrors the begin/defer-rollback/commit shape
// used throughout join-service's repository, but generalized into a
// reusable helper instead of being repeated per call site.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) (err error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	err = fn(tx)
	return err
}

// abortTx is the sentinel error the Scheduler's enqueue transaction uses
// to signal "nothing went wrong, just skip this lead" — a return value
// rather than a thrown domain error, per spec.md §9's guidance to prefer a
// sentinel over control-flow-by-exception.
type abortTx struct{ reason string }

func (a *abortTx) Error() string { return a.reason }

// Aborted reports whether err is the sentinel produced by abortCommit.
func Aborted(err error) bool {
	_, ok := err.(*abortTx)
	return ok
}

func abortCommit(reason string) error {
	return &abortTx{reason: reason}
}
