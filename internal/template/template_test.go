package template

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dripwave/sequencer/internal/domain"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRender_ResolvesVariable(t *testing.T) {
	p := NewProcessor("https://app.example.com")
	vars := map[string]string{"firstname": "Ada"}

	got := p.Render(context.Background(), "Hello [[firstname]]!", "lead-1", vars)
	assert.Equal(t, "Hello Ada!", got)
}

func TestRender_UsesFallbackWhenVariableMissing(t *testing.T) {
	p := NewProcessor("https://app.example.com")

	got := p.Render(context.Background(), "Hello [[firstname || friend]]!", "lead-1", nil)
	assert.Equal(t, "Hello friend!", got)
}

func TestRender_EmptyVariableFallsThroughToFallback(t *testing.T) {
	p := NewProcessor("https://app.example.com")
	vars := map[string]string{"firstname": ""}

	got := p.Render(context.Background(), "Hello [[firstname || friend]]!", "lead-1", vars)
	assert.Equal(t, "Hello friend!", got)
}

func TestRender_LenientModeResolvesUndefinedToEmptyString(t *testing.T) {
	p := NewProcessor("https://app.example.com")

	got := p.Render(context.Background(), "Hello [[nosuchkey]]!", "lead-1", nil)
	assert.Equal(t, "Hello !", got)
}

func TestRender_StrictModeUsesReplacement(t *testing.T) {
	p := NewProcessor("https://app.example.com")
	p.AllowUndefinedVariables = false
	p.Replacement = "[missing]"

	got := p.Render(context.Background(), "Hello [[nosuchkey]]!", "lead-1", nil)
	assert.Equal(t, "Hello [missing]!", got)
}

func TestRender_SpecialUnsubscribe(t *testing.T) {
	p := NewProcessor("https://app.example.com/")

	got := p.Render(context.Background(), "Bye: [[unsubscribe]]", "lead-42", nil)
	assert.Equal(t, "Bye: https://app.example.com/unsubscribe/lead-42", got)
}

func TestRender_SpecialCurrentDateUsesInjectedClock(t *testing.T) {
	p := NewProcessor("https://app.example.com")
	p.now = fixedNow(time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC))

	got := p.Render(context.Background(), "[[currentdate]] / [[currentyear]] / [[currentmonth]] / [[currentday]]", "lead-1", nil)
	assert.Equal(t, "2026-07-31 / 2026 / 7 / 31", got)
}

func TestRender_CustomSpecialOverridesRegistry(t *testing.T) {
	p := NewProcessor("https://app.example.com")
	p.RegisterSpecial("aiopener", func(ctx context.Context, leadID string) (string, error) {
		return "Hi there, custom opener for " + leadID, nil
	})

	got := p.Render(context.Background(), "[[aiOpener]]", "lead-7", nil)
	assert.Equal(t, "Hi there, custom opener for lead-7", got)
}

func TestRender_SpecialFuncFailureStillUsesItsFallbackText(t *testing.T) {
	p := NewProcessor("https://app.example.com")
	p.RegisterSpecial("aiopener", func(ctx context.Context, leadID string) (string, error) {
		return "Hi! Let's connect.", assert.AnError
	})

	got := p.Render(context.Background(), "[[aiOpener]]", "lead-7", nil)
	assert.Equal(t, "Hi! Let's connect.", got, "a non-empty special-func return must survive a non-nil error")
}

func TestRender_VariableTakesPrecedenceOverSpecial(t *testing.T) {
	p := NewProcessor("https://app.example.com")
	vars := map[string]string{"unsubscribe": "https://override.example.com/unsub"}

	got := p.Render(context.Background(), "[[unsubscribe]]", "lead-1", vars)
	assert.Equal(t, "https://override.example.com/unsub", got)
}

func TestFlattenLead_ProducesBaseAndTitleCaseVariants(t *testing.T) {
	lead := domain.Lead{FirstName: "ada", LastName: "lovelace", CompanyName: "acme corp"}

	vars := FlattenLead(lead)

	assert.Equal(t, "ada", vars["firstname"])
	assert.Equal(t, "Ada", vars["tfirstname"])
	assert.Equal(t, "Acme Corp", vars["tcompanyname"])
	assert.Equal(t, "Ada Lovelace", vars["tfullname"])
}

func TestMergeCustom_CustomOverridesLeadVariable(t *testing.T) {
	base := map[string]string{"firstname": "Ada"}
	custom := map[string]string{"FirstName": "Grace"}

	merged := MergeCustom(base, custom)

	assert.Equal(t, "Grace", merged["firstname"])
}
