package model

import "time"

// GenesisHash is the prev-hash sentinel for the first event of a chain.
const GenesisHash = "GENESIS"

// AuditEventType categorizes entries in the audit hash chain.
type AuditEventType string

const (
	AuditSessionStarted    AuditEventType = "SessionStarted"
	AuditSessionFinished   AuditEventType = "SessionFinished"
	AuditIterationRecorded AuditEventType = "IterationRecorded"
	AuditBundleCreated     AuditEventType = "BundleCreated"
	AuditAnalysisRecorded  AuditEventType = "AnalysisRecorded"
	AuditRequestsGated     AuditEventType = "EvidenceRequestsGated"
	AuditCollectionRan     AuditEventType = "CollectionRan"
)

// AuditEvent is one append-only entry in a tamper-evident hash chain.
// Seq is strictly increasing per ChainID; Hash commits to every other field
// and PrevHash links to the previous event (GenesisHash for seq 1).
type AuditEvent struct {
	ChainID    string         `json:"chain_id"`
	Seq        int64          `json:"seq"`
	PrevHash   string         `json:"prev_hash"`
	Hash       string         `json:"hash"`
	EventType  AuditEventType `json:"event_type"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	EntityRef  string         `json:"entity_ref,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
