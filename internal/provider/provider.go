// Package provider is the email-sending boundary spec.md §1 treats as an
// external collaborator ("the email provider (AWS SES or equivalent)
// exposed only by send(EmailData) -> Result"). Grounded on email-service's
// app/email/provider.go interface shape and app/email/providers/ses.go's
// provider responsibilities, with the real aws-sdk-go-v2/service/sesv2
// client replacing the teacher's hand-rolled SigV4 signing (see
// SPEC_FULL.md's DOMAIN STACK table).
package provider

import (
	"context"
	"time"
)

// EmailData is the send request shape from spec.md §6.
type EmailData struct {
	To         string
	Subject    string
	Body       string
	LeadID     string
	SequenceID string
	StepID     string
	TemplateID string
	FromEmail  string
	FromName   string
	ReplyTo    string
	CC         []string
	BCC        []string
}

// Result is the send outcome.
type Result struct {
	Success   bool
	MessageID string
	Error     error
}

// Provider sends one email and reports the outcome.
type Provider interface {
	Send(ctx context.Context, data EmailData) Result
	Name() string
}

// retryAttempts/retryDelay implement spec.md §7: "Provider retries
// internally up to retryAttempts=3 with linear backoff retryDelay*attempt".
const (
	retryAttempts = 3
	retryDelay    = 200 * time.Millisecond
)

// WithRetry wraps a Provider with the spec's internal linear-backoff retry
// policy, shared by every concrete provider so SES and the mock behave
// identically under transient failure.
func WithRetry(p Provider) Provider {
	return &retryingProvider{inner: p}
}

type retryingProvider struct {
	inner Provider
}

func (r *retryingProvider) Name() string { return r.inner.Name() }

func (r *retryingProvider) Send(ctx context.Context, data EmailData) Result {
	var last Result
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		last = r.inner.Send(ctx, data)
		if last.Success {
			return last
		}
		if attempt == retryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return Result{Success: false, Error: ctx.Err()}
		case <-time.After(retryDelay * time.Duration(attempt)):
		}
	}
	return last
}
