package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PumpRepo struct {
	pool *pgxpool.Pool
}

func NewPumpRepo(pool *pgxpool.Pool) *PumpRepo {
	return &PumpRepo{pool: pool}
}

// ClaimedOutbox is one row returned by the Pump's claim query.
type ClaimedOutbox struct {
	ID      string
	Topic   string
	Payload []byte
	IdemKey string
	Retries int
}

// claimSQL is the single-statement claim query from spec.md §4.2: mark up
// to $1 unprocessed, non-exhausted rows processed in the same statement
// that selects them, using SKIP LOCKED for horizontal scaling.
const claimSQL = `
UPDATE "Outbox" SET "processed"=true, "processedAt"=now(), "retries"="retries"+1
WHERE "id" IN (
  SELECT "id" FROM "Outbox"
  WHERE "processed"=false AND "retries" < "maxRetries"
  ORDER BY "createdAt"
  LIMIT $1
  FOR UPDATE SKIP LOCKED
)
RETURNING "id", "topic", "payload", "idemKey", "retries"
`

func (r *PumpRepo) Claim(ctx context.Context, limit int) ([]ClaimedOutbox, error) {
	rows, err := r.pool.Query(ctx, claimSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClaimedOutbox
	for rows.Next() {
		var row ClaimedOutbox
		if err := rows.Scan(&row.ID, &row.Topic, &row.Payload, &row.IdemKey, &row.Retries); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Revert undoes a claim after a publish failure so a later Pump attempt
// picks the row back up, bounded by maxRetries (spec.md §4.2). This is the
// corrected form of the revert statement — see the trailing-comma Open
// Question resolution in DESIGN.md.
const revertSQL = `UPDATE "Outbox" SET "processed"=false, "processedAt"=NULL WHERE "id"=$1`

func (r *PumpRepo) Revert(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, revertSQL, id)
	return err
}
