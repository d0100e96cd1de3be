package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dripwave/sequencer/internal/circuitbreaker"
	"github.com/dripwave/sequencer/internal/domain"
	"github.com/dripwave/sequencer/internal/provider"
	"github.com/dripwave/sequencer/internal/template"
)

type fakeProvider struct {
	name   string
	result provider.Result
	calls  int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Send(ctx context.Context, data provider.EmailData) provider.Result {
	f.calls++
	return f.result
}

func newTestWorker(p provider.Provider) *Worker {
	return &Worker{
		processor: template.NewProcessor("https://app.example.com"),
		provider:  p,
		breaker:   circuitbreaker.New(5, time.Minute),
		log:       zerolog.Nop(),
	}
}

func TestCheckEligibility_RejectsUnsubscribed(t *testing.T) {
	lead := &domain.Lead{Email: "a@b.com", IsSubscribedToEmail: false, IsEmailValid: domain.EmailValid}
	tmpl := &domain.SequenceTemplate{ID: "tmpl-1"}

	err := checkEligibility(lead, tmpl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not eligible")
}

func TestCheckEligibility_RejectsInvalidEmail(t *testing.T) {
	lead := &domain.Lead{Email: "a@b.com", IsSubscribedToEmail: true, IsEmailValid: domain.EmailInvalid}
	tmpl := &domain.SequenceTemplate{ID: "tmpl-1"}

	err := checkEligibility(lead, tmpl)
	require.Error(t, err)
}

func TestCheckEligibility_RejectsMissingTemplate(t *testing.T) {
	lead := &domain.Lead{Email: "a@b.com", IsSubscribedToEmail: true, IsEmailValid: domain.EmailValid}

	err := checkEligibility(lead, &domain.SequenceTemplate{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no template")
}

func TestCheckEligibility_AllowsEligibleLead(t *testing.T) {
	lead := &domain.Lead{Email: "a@b.com", IsSubscribedToEmail: true, IsEmailValid: domain.EmailUnknown}
	tmpl := &domain.SequenceTemplate{ID: "tmpl-1"}

	assert.NoError(t, checkEligibility(lead, tmpl))
}

func TestRender_InterpolatesLeadVariables(t *testing.T) {
	w := newTestWorker(&fakeProvider{})
	lead := domain.Lead{ID: "lead-1", Email: "jane@example.com", FirstName: "Jane"}
	tmpl := domain.SequenceTemplate{ID: "tmpl-1", Subject: "Hi [[firstname]]", Body: "Unsubscribe: [[unsubscribe]]"}
	pending := domain.PendingLead{SequenceID: "seq-1", StepID: "step-1"}

	data := w.render(context.Background(), lead, tmpl, pending)

	assert.Equal(t, "Hi Jane", data.Subject)
	assert.Contains(t, data.Body, "https://app.example.com/unsubscribe/lead-1")
	assert.Equal(t, "jane@example.com", data.To)
	assert.Equal(t, "tmpl-1", data.TemplateID)
}

func TestSendWithBreaker_ReturnsProviderResult(t *testing.T) {
	fp := &fakeProvider{result: provider.Result{Success: true, MessageID: "msg-1"}}
	w := newTestWorker(fp)

	result := w.sendWithBreaker(context.Background(), provider.EmailData{To: "a@b.com"})

	assert.True(t, result.Success)
	assert.Equal(t, "msg-1", result.MessageID)
	assert.Equal(t, 1, fp.calls)
}

func TestSendWithBreaker_TripsAfterRepeatedFailures(t *testing.T) {
	fp := &fakeProvider{result: provider.Result{Success: false, Error: errors.New("smtp down")}}
	w := newTestWorker(fp)
	w.breaker = circuitbreaker.New(2, time.Minute)

	_ = w.sendWithBreaker(context.Background(), provider.EmailData{})
	_ = w.sendWithBreaker(context.Background(), provider.EmailData{})

	result := w.sendWithBreaker(context.Background(), provider.EmailData{})
	require.Error(t, result.Error)
	assert.ErrorIs(t, result.Error, circuitbreaker.ErrOpen)
	// the breaker should have short-circuited the third call.
	assert.Equal(t, 2, fp.calls)
}

func TestHandle_MalformedPayloadIsAckedNotRetried(t *testing.T) {
	w := newTestWorker(&fakeProvider{})

	err := w.Handle(context.Background(), []byte("not json"), 0)
	assert.NoError(t, err)
}

func TestHandle_InvalidPayloadIsAckedNotRetried(t *testing.T) {
	w := newTestWorker(&fakeProvider{})

	// missing every required field.
	err := w.Handle(context.Background(), []byte(`{}`), 0)
	assert.NoError(t, err)
}
