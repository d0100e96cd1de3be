// Package worker implements the Worker component from spec.md §4.3:
// consume SEQUENCE_TOPIC, load full context, render, send, advance state.
// Grounded on email-service's app/consumer/consumer.go for the handler
// shape and auth-service's app/handlers/validation.go for the validator
// usage.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/dripwave/sequencer/internal/apperrors"
	"github.com/dripwave/sequencer/internal/circuitbreaker"
	"github.com/dripwave/sequencer/internal/domain"
	"github.com/dripwave/sequencer/internal/metrics"
	"github.com/dripwave/sequencer/internal/provider"
	"github.com/dripwave/sequencer/internal/store/postgres"
	"github.com/dripwave/sequencer/internal/store/rediscache"
	"github.com/dripwave/sequencer/internal/template"
)

const externalCallTimeout = 10 * time.Second

var validate = validator.New()

// errEligibility marks a step-3 eligibility-check failure (missing lead,
// unsubscribed, invalid email, no template) — these route through the
// retry/DLQ path per spec.md §4.3, unlike malformed-payload errors which
// ack immediately without retry.
type errEligibility struct{ reason string }

func (e *errEligibility) Error() string { return e.reason }

type Worker struct {
	catalog   *postgres.CatalogRepo
	workerDB  *postgres.WorkerRepo
	cache     *rediscache.Cache
	processor *template.Processor
	provider  provider.Provider
	breaker   *circuitbreaker.Breaker
	log       zerolog.Logger
}

func New(
	catalog *postgres.CatalogRepo,
	workerDB *postgres.WorkerRepo,
	cache *rediscache.Cache,
	processor *template.Processor,
	prov provider.Provider,
	breaker *circuitbreaker.Breaker,
	log zerolog.Logger,
) *Worker {
	return &Worker{
		catalog:   catalog,
		workerDB:  workerDB,
		cache:     cache,
		processor: processor,
		provider:  prov,
		breaker:   breaker,
		log:       log.With().Str("component", "worker").Logger(),
	}
}

// Handle is the rabbitmq.Handler for the SEQUENCE_TOPIC queue (spec.md
// §4.3 steps 1-7).
func (w *Worker) Handle(ctx context.Context, body []byte, retries int) error {
	metrics.WorkerMessagesConsumedTotal.Inc()

	var pending domain.PendingLead
	if err := json.Unmarshal(body, &pending); err != nil {
		apperrors.Validation("malformed payload; dropping (ack, no redelivery)", err).Log(w.log)
		return nil
	}
	if err := validate.Struct(pending); err != nil {
		apperrors.Validation("payload failed schema validation; dropping (ack, no redelivery)", err).Log(w.log)
		return nil
	}

	lead, step, tmpl, err := w.loadContext(ctx, pending)
	if err != nil {
		return err
	}

	if err := checkEligibility(lead, tmpl); err != nil {
		return err
	}

	data := w.render(ctx, *lead, *tmpl, pending)

	start := time.Now()
	result := w.sendWithBreaker(ctx, data)
	metrics.ObserveSend(w.provider.Name(), result.Success, time.Since(start))

	if !result.Success {
		appErr := apperrors.External("provider send failed", result.Error).
			WithContext("lead_id", lead.ID).WithContext("step_number", step.StepNumber)
		appErr.Log(w.log)
		return appErr
	}

	maxStep, err := w.catalog.MaxStepNumber(ctx, pending.SequenceID)
	if err != nil {
		appErr := apperrors.Database("load max step number failed", err).WithContext("sequence_id", pending.SequenceID)
		appErr.Log(w.log)
		return appErr
	}

	adv, err := w.workerDB.Advance(ctx, pending.LeadStateID, maxStep)
	if err != nil {
		appErr := apperrors.Database("advance state failed", err).WithContext("lead_state_id", pending.LeadStateID)
		appErr.Log(w.log)
		return appErr
	}
	if !adv.Advanced {
		w.log.Info().Str("lead_state_id", pending.LeadStateID).
			Msg("state already advanced or terminal; treating redelivery as success")
		return nil
	}

	w.log.Info().Str("lead_state_id", pending.LeadStateID).Str("status", adv.Status).
		Int("current_step", adv.CurrentStep).Int("step_number", step.StepNumber).
		Str("message_id", result.MessageID).Msg("step sent and state advanced")
	return nil
}

func (w *Worker) loadContext(ctx context.Context, pending domain.PendingLead) (*domain.Lead, *domain.SequenceStep, *domain.SequenceTemplate, error) {
	type leadResult struct {
		lead *domain.Lead
		err  error
	}
	type stepResult struct {
		step *domain.SequenceStep
		err  error
	}
	type templatesResult struct {
		templates []domain.SequenceTemplate
		err       error
	}

	leadCh := make(chan leadResult, 1)
	stepCh := make(chan stepResult, 1)
	tmplCh := make(chan templatesResult, 1)

	go func() {
		if w.cache != nil {
			var cached domain.Lead
			if w.cache.Get(ctx, "lead:"+pending.LeadID, &cached) {
				leadCh <- leadResult{lead: &cached}
				return
			}
		}
		lead, err := w.catalog.LeadByID(ctx, pending.LeadID)
		if err == nil && lead != nil && w.cache != nil {
			w.cache.Set(ctx, "lead:"+pending.LeadID, lead, 5*time.Minute)
		}
		leadCh <- leadResult{lead: lead, err: err}
	}()

	go func() {
		step, err := w.catalog.StepByID(ctx, pending.StepID)
		stepCh <- stepResult{step: step, err: err}
	}()

	go func() {
		templates, err := w.catalog.TemplatesForStep(ctx, pending.StepID)
		tmplCh <- templatesResult{templates: templates, err: err}
	}()

	lr, sr, tr := <-leadCh, <-stepCh, <-tmplCh

	if lr.err != nil {
		appErr := apperrors.Database("load lead failed", lr.err).WithContext("lead_id", pending.LeadID)
		appErr.Log(w.log)
		return nil, nil, nil, appErr
	}
	if sr.err != nil {
		appErr := apperrors.Database("load step failed", sr.err).WithContext("step_id", pending.StepID)
		appErr.Log(w.log)
		return nil, nil, nil, appErr
	}
	if tr.err != nil {
		appErr := apperrors.Database("load templates failed", tr.err).WithContext("step_id", pending.StepID)
		appErr.Log(w.log)
		return nil, nil, nil, appErr
	}
	if lr.lead == nil {
		return nil, nil, nil, &errEligibility{"lead not found"}
	}
	if sr.step == nil {
		return nil, nil, nil, &errEligibility{"step not found"}
	}

	tmpl, ok := postgres.PickRandomTemplate(tr.templates)
	if !ok {
		return nil, nil, nil, &errEligibility{"step has no attached templates"}
	}

	return lr.lead, sr.step, &tmpl, nil
}

// checkEligibility implements spec.md §4.3 step 3's hard-fail checks,
// which route through the retry/DLQ path rather than being silently
// skipped.
func checkEligibility(lead *domain.Lead, tmpl *domain.SequenceTemplate) error {
	if !lead.Eligible() {
		return &errEligibility{"lead not eligible: unsubscribed, invalid email, or missing email"}
	}
	if tmpl == nil || tmpl.ID == "" {
		return &errEligibility{"no template available"}
	}
	return nil
}

func (w *Worker) render(ctx context.Context, lead domain.Lead, tmpl domain.SequenceTemplate, pending domain.PendingLead) provider.EmailData {
	vars := template.FlattenLead(lead)

	renderCtx, cancel := context.WithTimeout(ctx, externalCallTimeout)
	defer cancel()

	subject := w.processor.Render(renderCtx, tmpl.Subject, lead.ID, vars)
	body := w.processor.Render(renderCtx, tmpl.Body, lead.ID, vars)

	return provider.EmailData{
		To:         lead.Email,
		Subject:    subject,
		Body:       body,
		LeadID:     lead.ID,
		SequenceID: pending.SequenceID,
		StepID:     pending.StepID,
		TemplateID: tmpl.ID,
	}
}

func (w *Worker) sendWithBreaker(ctx context.Context, data provider.EmailData) provider.Result {
	var result provider.Result

	err := w.breaker.Call(ctx, func(ctx context.Context) error {
		sendCtx, cancel := context.WithTimeout(ctx, externalCallTimeout)
		defer cancel()
		result = w.provider.Send(sendCtx, data)
		if !result.Success {
			return result.Error
		}
		return nil
	})

	if errors.Is(err, circuitbreaker.ErrOpen) {
		return provider.Result{Success: false, Error: err}
	}
	return result
}
