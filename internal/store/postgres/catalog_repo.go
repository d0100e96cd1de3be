package postgres

import (
	"context"
	"math/rand"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dripwave/sequencer/internal/domain"
)

// CatalogRepo is the Worker's read-only view over Lead, SequenceStep and
// SequenceTemplate — the "persisted catalog" spec.md §1 treats as an
// external collaborator.
type CatalogRepo struct {
	pool *pgxpool.Pool
}

func NewCatalogRepo(pool *pgxpool.Pool) *CatalogRepo {
	return &CatalogRepo{pool: pool}
}

const leadByIDSQL = `
SELECT l."id", l."email", l."firstName", l."lastName", l."jobTitle", l."companyName",
       l."industry", l."companySize", l."country", l."state", l."address", l."linkedinUrl",
       l."source", l."isSubscribedToEmail", l."isEmailValid"
FROM "Lead" l
WHERE l."id" = $1
`

func (r *CatalogRepo) LeadByID(ctx context.Context, leadID string) (*domain.Lead, error) {
	var lead domain.Lead
	var validity string
	err := r.pool.QueryRow(ctx, leadByIDSQL, leadID).Scan(
		&lead.ID, &lead.Email, &lead.FirstName, &lead.LastName, &lead.JobTitle, &lead.CompanyName,
		&lead.Industry, &lead.CompanySize, &lead.Country, &lead.State, &lead.Address, &lead.LinkedInURL,
		&lead.Source, &lead.IsSubscribedToEmail, &validity,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	lead.IsEmailValid = domain.EmailValidity(validity)
	return &lead, nil
}

const maxStepNumberSQL = `SELECT max("stepNumber") FROM "SequenceStep" WHERE "sequenceId" = $1`

func (r *CatalogRepo) MaxStepNumber(ctx context.Context, sequenceID string) (int, error) {
	var max int
	err := r.pool.QueryRow(ctx, maxStepNumberSQL, sequenceID).Scan(&max)
	return max, err
}

const stepByIDSQL = `
SELECT "id", "sequenceId", "stepNumber", "minIntervalMin", "requireNoReply", "stopOnBounce"
FROM "SequenceStep" WHERE "id" = $1
`

func (r *CatalogRepo) StepByID(ctx context.Context, stepID string) (*domain.SequenceStep, error) {
	var step domain.SequenceStep
	err := r.pool.QueryRow(ctx, stepByIDSQL, stepID).Scan(
		&step.ID, &step.SequenceID, &step.StepNumber, &step.MinIntervalMin,
		&step.RequireNoReply, &step.StopOnBounce,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &step, nil
}

const templatesForStepSQL = `
SELECT t."id", t."subject", t."body"
FROM "SequenceTemplate" t
JOIN "_SequenceStepToSequenceTemplate" j ON j."B" = t."id"
WHERE j."A" = $1
`

// TemplatesForStep returns every template attached to a step; the Worker
// picks one uniformly at random (spec.md §3).
func (r *CatalogRepo) TemplatesForStep(ctx context.Context, stepID string) ([]domain.SequenceTemplate, error) {
	rows, err := r.pool.Query(ctx, templatesForStepSQL, stepID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SequenceTemplate
	for rows.Next() {
		var t domain.SequenceTemplate
		if err := rows.Scan(&t.ID, &t.Subject, &t.Body); err != nil {
			return nil, err
		}
		t.StepID = stepID
		out = append(out, t)
	}
	return out, rows.Err()
}

// PickRandomTemplate selects uniformly among templates, per spec.md §3
// ("selection policy is random uniform at worker time").
func PickRandomTemplate(templates []domain.SequenceTemplate) (domain.SequenceTemplate, bool) {
	if len(templates) == 0 {
		return domain.SequenceTemplate{}, false
	}
	return templates[rand.Intn(len(templates))], true
}
