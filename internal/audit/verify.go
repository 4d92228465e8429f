package audit

import (
	"fmt"

	"github.com/rasike-dev/chronosops/internal/model"
)

// Failure reasons reported by Verify.
const (
	FailureBrokenLink   = "prev_hash does not match previous event hash"
	FailureHashMismatch = "event content does not match stored hash"
	FailureBadOrder     = "events are not in strictly increasing seq order"
)

// VerifyResult reports the outcome of a chain verification walk.
// FirstFailureIndex is the seq of the first failing event, -1 when ok.
type VerifyResult struct {
	OK                 bool   `json:"ok"`
	VerifiedCount      int    `json:"verified_count"`
	FirstFailureIndex  int64  `json:"first_failure_index"`
	FirstFailureReason string `json:"first_failure_reason,omitempty"`
}

// Verify walks events (ordered by seq ascending) and checks, per event,
// chain continuity (prevHash linkage) and content integrity (recomputed
// hash). It stops at the first failure, reporting exactly which invariant
// broke and at which seq. An empty chain verifies trivially.
func Verify(events []model.AuditEvent) VerifyResult {
	res := VerifyResult{OK: true, FirstFailureIndex: -1}

	var prev *model.AuditEvent
	for i := range events {
		ev := &events[i]

		fail := func(reason string) VerifyResult {
			res.OK = false
			res.FirstFailureIndex = ev.Seq
			res.FirstFailureReason = reason
			return res
		}

		if prev != nil && ev.Seq <= prev.Seq {
			return fail(FailureBadOrder)
		}

		// Continuity.
		if prev == nil {
			if ev.PrevHash != model.GenesisHash {
				return fail(FailureBrokenLink)
			}
		} else if ev.PrevHash != prev.Hash {
			return fail(FailureBrokenLink)
		}

		// Content integrity.
		computed, err := EventHash(*ev)
		if err != nil {
			return fail(fmt.Sprintf("hash recompute failed: %v", err))
		}
		if computed != ev.Hash {
			return fail(FailureHashMismatch)
		}

		res.VerifiedCount++
		prev = ev
	}
	return res
}
