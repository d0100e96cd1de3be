package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dripwave/sequencer/internal/apperrors"
	"github.com/dripwave/sequencer/internal/domain"
	"github.com/dripwave/sequencer/internal/idkey"
)

// uniqueViolation is Postgres's SQLSTATE for a unique-constraint violation.
const uniqueViolation = "23505"

type SchedulerRepo struct {
	pool *pgxpool.Pool
}

func NewSchedulerRepo(pool *pgxpool.Pool) *SchedulerRepo {
	return &SchedulerRepo{pool: pool}
}

const eligibilitySQL = `
SELECT s."id", s."leadId", s."sequenceId", s."currentStep",
       st."id", st."stepNumber", st."minIntervalMin"
FROM "LeadSequenceState" s
JOIN "SequenceStep" st
  ON st."sequenceId" = s."sequenceId" AND st."stepNumber" = s."currentStep" + 1
WHERE s."status" IN ('PENDING', 'RUNNING')
  AND (s."lastSentAt" IS NULL OR now() - s."lastSentAt" > (st."minIntervalMin" || ' minutes')::interval)
  AND s."updatedAt" < now() - interval '1 hour'
ORDER BY s."updatedAt" ASC
LIMIT $1
`

// Eligible runs the Scheduler's eligibility query (spec.md §4.1).
func (r *SchedulerRepo) Eligible(ctx context.Context, batchSize int) ([]domain.PendingLead, error) {
	rows, err := r.pool.Query(ctx, eligibilitySQL, batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PendingLead
	for rows.Next() {
		var row domain.PendingLead
		if err := rows.Scan(&row.LeadStateID, &row.LeadID, &row.SequenceID, &row.CurrentStep,
			&row.StepID, &row.StepNumber, &row.MinIntervalMin); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// EnqueueResult distinguishes a skipped (duplicate idemKey) lead from an
// actually-enqueued one, so the caller can log/count each differently.
type EnqueueResult struct {
	Enqueued bool
	IdemKey  string
	// Reason is set whenever Enqueued is false, carrying the structured
	// taxonomy entry for why the lead was skipped (spec.md §7).
	Reason *apperrors.AppError
}

// Enqueue runs the per-lead enqueue transaction (spec.md §4.1 steps 1-4):
// compute idemKey, check for an existing outbox row under it, insert the
// outbox row and flip state to RUNNING, all in one transaction.
func (r *SchedulerRepo) Enqueue(ctx context.Context, row domain.PendingLead) (EnqueueResult, error) {
	nextStep := row.CurrentStep + 1
	key := idkey.ForStep(row.SequenceID, row.LeadID, nextStep)

	result := EnqueueResult{IdemKey: key}

	err := WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var count int
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM "Outbox" WHERE "idemKey" = $1`, key).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			result.Reason = apperrors.DuplicateIdemKey(key)
			return abortCommit("duplicate idemKey, an outbox row is already in flight")
		}

		payload, err := json.Marshal(row)
		if err != nil {
			return err
		}

		outboxID := uuid.NewString()
		if _, err := tx.Exec(ctx, `
			INSERT INTO "Outbox" ("id", "topic", "payload", "idemKey", "processed", "retries", "maxRetries", "createdAt")
			VALUES ($1, $2, $3, $4, false, 0, $5, now())
		`, outboxID, domain.SequenceTopic, payload, key, domain.DefaultMaxRetries); err != nil {
			// Two concurrent schedulers can both pass the count-check above
			// and race to this INSERT; the loser hits idemKey's unique
			// constraint instead. spec.md §7: that is expected and must be
			// downgraded to the same info-level skip path as the
			// count-check, not logged as a HIGH/error Database failure.
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				result.Reason = apperrors.DuplicateIdemKey(key)
				return abortCommit("duplicate idemKey, lost the insert race to a concurrent scheduler")
			}
			return err
		}

		tag, err := tx.Exec(ctx, `
			UPDATE "LeadSequenceState" SET "status" = 'RUNNING', "updatedAt" = now()
			WHERE "id" = $1 AND "status" IN ('PENDING', 'RUNNING')
		`, row.LeadStateID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			result.Reason = apperrors.ConcurrentStateAdvance(row.LeadStateID)
			return abortCommit("state was concurrently advanced past PENDING/RUNNING")
		}

		result.Enqueued = true
		return nil
	})

	if err != nil && Aborted(err) {
		return result, nil
	}
	return result, err
}
