package idkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerive_Deterministic(t *testing.T) {
	a := Derive("seq-1", "lead-1", 2, 0, "")
	b := Derive("seq-1", "lead-1", 2, 0, "")
	require.Equal(t, a, b)
	assert.Len(t, a, length)
}

func TestDerive_DistinctInputsDiffer(t *testing.T) {
	base := Derive("seq-1", "lead-1", 1, 0, "")

	cases := map[string]string{
		"sequence": Derive("seq-2", "lead-1", 1, 0, ""),
		"lead":     Derive("seq-1", "lead-2", 1, 0, ""),
		"step":     Derive("seq-1", "lead-1", 2, 0, ""),
		"attempt":  Derive("seq-1", "lead-1", 1, 1, ""),
		"suffix":   Derive("seq-1", "lead-1", 1, 0, "x"),
	}

	for name, v := range cases {
		assert.NotEqual(t, base, v, "expected %s to change the key", name)
	}
}

func TestForStep_MatchesDeriveWithZeroAttempt(t *testing.T) {
	assert.Equal(t, Derive("s", "l", 3, 0, ""), ForStep("s", "l", 3))
}

func TestDerive_NoDelimiterCollision(t *testing.T) {
	// "a","b1" should not collide with "ab","1" despite naive string concatenation.
	a := Derive("a", "b1", 1, 0, "")
	b := Derive("ab", "1", 1, 0, "")
	assert.NotEqual(t, a, b)
}
