package apperrors

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/dripwave/sequencer/internal/metrics"
)

func TestNew_DefaultsSeverityFromCategory(t *testing.T) {
	err := New("X", CategoryDatabase, "boom", nil)
	assert.Equal(t, SeverityHigh, err.Severity)

	err = New("Y", CategoryValidation, "bad input", nil)
	assert.Equal(t, SeverityLow, err.Severity)

	err = New("Z", CategoryConfiguration, "missing env", nil)
	assert.Equal(t, SeverityCritical, err.Severity)
}

func TestError_WrapsUnderlyingError(t *testing.T) {
	inner := errors.New("connection refused")
	err := Database("query failed", inner)

	assert.Contains(t, err.Error(), "query failed")
	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, inner)
}

func TestWithContext_AttachesKeyValue(t *testing.T) {
	err := Validation("bad field", nil).WithContext("field", "email")
	assert.Equal(t, "email", err.Context["field"])
}

func TestDuplicateIdemKey_IsLowSeverityAndDetectable(t *testing.T) {
	err := DuplicateIdemKey("abc123")

	assert.Equal(t, SeverityLow, err.Severity)
	assert.Equal(t, "abc123", err.Context["idem_key"])
	assert.True(t, IsDuplicateIdemKey(err))
}

func TestIsDuplicateIdemKey_FalseForOtherErrors(t *testing.T) {
	assert.False(t, IsDuplicateIdemKey(errors.New("plain error")))
	assert.False(t, IsDuplicateIdemKey(Database("other db error", nil)))
}

func TestConcurrentStateAdvance_IsLowSeverity(t *testing.T) {
	err := ConcurrentStateAdvance("lead-state-1")

	assert.Equal(t, SeverityLow, err.Severity)
	assert.Equal(t, "lead-state-1", err.Context["lead_state_id"])
}

func TestLog_IncrementsErrorsTotalByCategoryAndCode(t *testing.T) {
	before := testutil.ToFloat64(metrics.ErrorsTotal.WithLabelValues(string(CategoryDatabase), "DATABASE_ERROR"))

	Database("boom", errors.New("conn reset")).Log(zerolog.Nop())

	after := testutil.ToFloat64(metrics.ErrorsTotal.WithLabelValues(string(CategoryDatabase), "DATABASE_ERROR"))
	assert.Equal(t, before+1, after)
}

func TestConvenienceConstructors_SetExpectedCategories(t *testing.T) {
	cases := []struct {
		err      *AppError
		category Category
	}{
		{Validation("m", nil), CategoryValidation},
		{Database("m", nil), CategoryDatabase},
		{Network("m", nil), CategoryNetwork},
		{External("m", nil), CategoryExternal},
		{Configuration("m", nil), CategoryConfiguration},
		{System("m", nil), CategorySystem},
	}
	for _, c := range cases {
		assert.Equal(t, c.category, c.err.Category)
	}
}
