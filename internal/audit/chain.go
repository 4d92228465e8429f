// Package audit implements the tamper-evident hash chain: deterministic
// event hashing, chain extension, full-chain verification, and a no-throw
// recorder so bookkeeping never blocks business writes.
package audit

import (
	"fmt"
	"time"

	"github.com/rasike-dev/chronosops/internal/canonical"
	"github.com/rasike-dev/chronosops/internal/model"
)

// Draft is the caller-supplied part of an audit event. Sequence number,
// hash linkage, and timestamps are assigned by the chain.
type Draft struct {
	ChainID    string
	EventType  model.AuditEventType
	EntityType string
	EntityID   string
	EntityRef  string
	Payload    map[string]any
}

// hashInput is the exact field set committed to by an event hash. The hash
// itself and the stored timestamp are excluded.
type hashInput struct {
	ChainID    string         `json:"chain_id"`
	Seq        int64          `json:"seq"`
	PrevHash   string         `json:"prev_hash"`
	EventType  string         `json:"event_type"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	EntityRef  string         `json:"entity_ref"`
	Payload    map[string]any `json:"payload"`
}

// EventHash computes the canonical content hash of an event, ignoring the
// stored Hash field.
func EventHash(e model.AuditEvent) (string, error) {
	h, err := canonical.Hash(hashInput{
		ChainID:    e.ChainID,
		Seq:        e.Seq,
		PrevHash:   e.PrevHash,
		EventType:  string(e.EventType),
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		EntityRef:  e.EntityRef,
		Payload:    e.Payload,
	})
	if err != nil {
		return "", fmt.Errorf("audit: hash event: %w", err)
	}
	return h, nil
}

// Next extends a chain by one event: it assigns the next sequence number,
// links to the previous event's hash (or the genesis sentinel), and computes
// the content hash. prev is nil for an empty chain. Pure; the caller is
// responsible for the transactional read-latest-then-insert boundary.
func Next(prev *model.AuditEvent, d Draft, now time.Time) (model.AuditEvent, error) {
	if d.ChainID == "" {
		return model.AuditEvent{}, fmt.Errorf("audit: chain id is required")
	}
	ev := model.AuditEvent{
		ChainID:    d.ChainID,
		Seq:        1,
		PrevHash:   model.GenesisHash,
		EventType:  d.EventType,
		EntityType: d.EntityType,
		EntityID:   d.EntityID,
		EntityRef:  d.EntityRef,
		Payload:    d.Payload,
		CreatedAt:  now.UTC(),
	}
	if prev != nil {
		if prev.ChainID != d.ChainID {
			return model.AuditEvent{}, fmt.Errorf("audit: previous event belongs to chain %q, not %q", prev.ChainID, d.ChainID)
		}
		ev.Seq = prev.Seq + 1
		ev.PrevHash = prev.Hash
	}
	h, err := EventHash(ev)
	if err != nil {
		return model.AuditEvent{}, err
	}
	ev.Hash = h
	return ev, nil
}
