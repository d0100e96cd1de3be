// Package idkey derives the deterministic idempotency key that anchors
// dedup across this core: the SHA-256 of a canonical encoding of
// (sequenceId, leadId, stepNumber, attempt, suffix), truncated to 32 hex
// characters. See spec.md §3 "Idempotency key".
package idkey

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const length = 32

// Derive computes H(sequenceId, leadId, stepNumber, attempt, suffix).
// The canonical encoding is a fixed-order, NUL-separated join so that no
// field's content can be mistaken for a delimiter.
func Derive(sequenceID, leadID string, stepNumber, attempt int, suffix string) string {
	canonical := fmt.Sprintf("%s\x00%s\x00%d\x00%d\x00%s", sequenceID, leadID, stepNumber, attempt, suffix)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])[:length]
}

// ForStep is the normal-progression key used by the Scheduler: attempt=0,
// no suffix.
func ForStep(sequenceID, leadID string, stepNumber int) string {
	return Derive(sequenceID, leadID, stepNumber, 0, "")
}
