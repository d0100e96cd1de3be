//go:build integration

package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

func insertOutboxRow(t *testing.T, pool *pgxpool.Pool, retries, maxRetries int) string {
	t.Helper()
	id := uuid.NewString()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO "Outbox" ("id","topic","payload","idemKey","processed","retries","maxRetries","createdAt")
		VALUES ($1,'SEQUENCE_TOPIC','{}','idem-'||$1,false,$2,$3,now())
	`, id, retries, maxRetries)
	require.NoError(t, err)
	return id
}

func TestPumpRepo_Claim_MarksRowProcessedAndReturnsIt(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewPumpRepo(pool)

	id := insertOutboxRow(t, pool, 0, 5)

	claimed, err := repo.Claim(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.Equal(t, id, claimed[0].ID)
	require.Equal(t, "SEQUENCE_TOPIC", claimed[0].Topic)

	var processed bool
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT "processed" FROM "Outbox" WHERE "id"=$1`, id).Scan(&processed))
	require.True(t, processed)
}

func TestPumpRepo_Claim_SkipsExhaustedRows(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewPumpRepo(pool)

	insertOutboxRow(t, pool, 5, 5)

	claimed, err := repo.Claim(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, claimed, "a row with retries >= maxRetries must not be claimed again")
}

func TestPumpRepo_Claim_ConcurrentCallersNeverClaimTheSameRow(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewPumpRepo(pool)

	const rowCount = 20
	for i := 0; i < rowCount; i++ {
		insertOutboxRow(t, pool, 0, 5)
	}

	results := make(chan []ClaimedOutbox, 2)
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			claimed, err := repo.Claim(context.Background(), rowCount)
			results <- claimed
			errs <- err
		}()
	}

	var total int
	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		require.NoError(t, <-errs)
		for _, row := range <-results {
			require.False(t, seen[row.ID], "row %s claimed by more than one caller", row.ID)
			seen[row.ID] = true
			total++
		}
	}
	require.Equal(t, rowCount, total, "SKIP LOCKED must partition all rows across the two concurrent claimers")
}

func TestPumpRepo_Revert_MakesRowClaimableAgain(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewPumpRepo(pool)

	id := insertOutboxRow(t, pool, 0, 5)

	claimed, err := repo.Claim(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	require.NoError(t, repo.Revert(context.Background(), id))

	reclaimed, err := repo.Claim(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)
	require.Equal(t, id, reclaimed[0].ID)
	require.Equal(t, 2, reclaimed[0].Retries, "the claim query increments retries again on the reclaimed pass")
}
