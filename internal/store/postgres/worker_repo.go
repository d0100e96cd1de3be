package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WorkerRepo struct {
	pool *pgxpool.Pool
}

func NewWorkerRepo(pool *pgxpool.Pool) *WorkerRepo {
	return &WorkerRepo{pool: pool}
}

// AdvanceResult carries the post-update row, or Advanced=false when the
// conditional UPDATE matched zero rows (spec.md §4.3 step 6: "concurrently
// advanced or terminal - treat as success, but log").
type AdvanceResult struct {
	Advanced    bool
	Status      string
	CurrentStep int
}

const advanceSQL = `
UPDATE "LeadSequenceState" SET
  "currentStep" = "currentStep" + 1,
  "status" = CASE WHEN "currentStep" + 1 >= $2 THEN 'COMPLETED' ELSE 'RUNNING' END,
  "lastSentAt" = now(), "failureCount" = 0, "updatedAt" = now()
WHERE "id" = $1 AND "status" IN ('PENDING', 'RUNNING')
RETURNING "id", "status", "currentStep"
`

// Advance runs the Worker's conditional state-advancement transaction
// (spec.md §4.3 step 6). maxStepNumber is the sequence's highest stepNumber,
// used to decide COMPLETED vs RUNNING.
func (r *WorkerRepo) Advance(ctx context.Context, leadStateID string, maxStepNumber int) (AdvanceResult, error) {
	var id, status string
	var currentStep int
	err := r.pool.QueryRow(ctx, advanceSQL, leadStateID, maxStepNumber).Scan(&id, &status, &currentStep)
	if err != nil {
		if err == pgx.ErrNoRows {
			return AdvanceResult{Advanced: false}, nil
		}
		return AdvanceResult{}, err
	}
	return AdvanceResult{Advanced: true, Status: status, CurrentStep: currentStep}, nil
}
