package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func failing(ctx context.Context) error { return errBoom }
func ok(ctx context.Context) error      { return nil }

func TestBreaker_StaysClosedBelowThreshold(t *testing.T) {
	b := New(3, time.Minute)

	for i := 0; i < 2; i++ {
		err := b.Call(context.Background(), failing)
		assert.ErrorIs(t, err, errBoom)
	}

	assert.Equal(t, Closed, b.State())
}

func TestBreaker_OpensAtThresholdAndRejectsCalls(t *testing.T) {
	b := New(2, time.Minute)

	_ = b.Call(context.Background(), failing)
	_ = b.Call(context.Background(), failing)
	assert.Equal(t, Open, b.State())

	calls := 0
	err := b.Call(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, ErrOpen)
	assert.Equal(t, 0, calls, "fn must not run while the circuit is open")
}

func TestBreaker_HalfOpenProbeClosesOnSuccess(t *testing.T) {
	b := New(1, 10*time.Millisecond)

	_ = b.Call(context.Background(), failing)
	assert.Equal(t, Open, b.State())

	time.Sleep(20 * time.Millisecond)

	err := b.Call(context.Background(), ok)
	require.NoError(t, err)
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_HalfOpenProbeReopensOnFailure(t *testing.T) {
	b := New(1, 10*time.Millisecond)

	_ = b.Call(context.Background(), failing)
	time.Sleep(20 * time.Millisecond)

	err := b.Call(context.Background(), failing)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, Open, b.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", Closed.String())
	assert.Equal(t, "open", Open.String())
	assert.Equal(t, "half-open", HalfOpen.String())
}
