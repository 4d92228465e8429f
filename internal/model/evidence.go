package model

import "time"

// EvidenceKind identifies one category of collectible evidence.
type EvidenceKind string

const (
	KindMetrics      EvidenceKind = "METRICS"
	KindLogs         EvidenceKind = "LOGS"
	KindTraces       EvidenceKind = "TRACES"
	KindDeploys      EvidenceKind = "DEPLOYS"
	KindConfig       EvidenceKind = "CONFIG"
	KindGoogleStatus EvidenceKind = "GOOGLE_STATUS"
)

// CollectableKinds are the kinds that resolve to a collector. GOOGLE_STATUS
// evidence is injected out-of-band and never collected directly.
var CollectableKinds = []EvidenceKind{KindMetrics, KindLogs, KindTraces, KindDeploys, KindConfig}

// AllowedKinds is the policy allowlist for evidence requests.
var AllowedKinds = []EvidenceKind{KindMetrics, KindLogs, KindTraces, KindDeploys, KindConfig, KindGoogleStatus}

// ValidKind reports whether s names an allowlisted evidence kind.
func ValidKind(s string) bool {
	for _, k := range AllowedKinds {
		if string(k) == s {
			return true
		}
	}
	return false
}

// NeedPriority orders evidence needs. P0 is most urgent.
type NeedPriority string

const (
	PriorityP0 NeedPriority = "P0"
	PriorityP1 NeedPriority = "P1"
	PriorityP2 NeedPriority = "P2"
)

// Rank returns a sortable weight; lower is more urgent.
func (p NeedPriority) Rank() int {
	switch p {
	case PriorityP0:
		return 0
	case PriorityP1:
		return 1
	case PriorityP2:
		return 2
	default:
		return 3
	}
}

// ValidPriority reports whether s is a recognized need priority.
func ValidPriority(s string) bool {
	switch NeedPriority(s) {
	case PriorityP0, PriorityP1, PriorityP2:
		return true
	default:
		return false
	}
}

// ArtifactMode records how an artifact was produced. Stub artifacts are
// synthesized locally and not independently verified, so they weaken the
// completeness score.
type ArtifactMode string

const (
	ModeReal ArtifactMode = "real"
	ModeStub ArtifactMode = "stub"
)

// EvidenceArtifact is one normalized unit of evidence. ArtifactID is stable
// across rebuilds so hypotheses and audit events can cross-reference it.
type EvidenceArtifact struct {
	Kind       EvidenceKind   `json:"kind"`
	ArtifactID string         `json:"artifact_id"`
	Title      string         `json:"title"`
	Summary    string         `json:"summary"`
	Mode       ArtifactMode   `json:"mode"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Bundle hashing parameters. HashInputVersion is bumped whenever the set of
// fields feeding the bundle hash changes, so old ids remain explainable.
const (
	BundleHashAlgo         = "sha256"
	BundleHashInputVersion = 1
)

// EvidenceBundle is an immutable, content-addressed snapshot of all
// artifacts collected for an incident. BundleID is the canonical hash of the
// bundle content; two bundles with identical content share an id.
type EvidenceBundle struct {
	BundleID         string             `json:"bundle_id"`
	IncidentID       string             `json:"incident_id"`
	CreatedAt        time.Time          `json:"created_at"`
	CreatedBy        string             `json:"created_by"`
	Sources          []string           `json:"sources"`
	Artifacts        []EvidenceArtifact `json:"artifacts"`
	HashAlgo         string             `json:"hash_algo"`
	HashInputVersion int                `json:"hash_input_version"`
}

// HasKind reports whether the bundle contains at least one artifact of kind k.
func (b *EvidenceBundle) HasKind(k EvidenceKind) bool {
	if b == nil {
		return false
	}
	for _, a := range b.Artifacts {
		if a.Kind == k {
			return true
		}
	}
	return false
}

// EvidenceNeed is one missing evidence kind with a priority and justification.
type EvidenceNeed struct {
	Need     EvidenceKind `json:"need"`
	Priority NeedPriority `json:"priority"`
	Reason   string       `json:"reason"`
}

// EvidenceCompleteness is a derived projection of a bundle: how much of the
// expected evidence surface is present for the incident's primary signal.
// Recomputed every iteration, never the source of truth.
type EvidenceCompleteness struct {
	Score   int            `json:"score"`
	Present []EvidenceKind `json:"present"`
	Missing []EvidenceNeed `json:"missing"`
	Notes   []string       `json:"notes,omitempty"`
}

// EvidenceRequest is a raw evidence request as proposed by a reasoning step.
// Fields are deliberately loose: the producer is external and possibly
// adversarial, so the policy gate validates everything at runtime.
type EvidenceRequest struct {
	Need     string   `json:"need"`
	Priority string   `json:"priority"`
	Reason   string   `json:"reason"`
	Window   *Window  `json:"window,omitempty"`
	MaxItems *int     `json:"max_items,omitempty"`
	Hints    []string `json:"hints,omitempty"`
}

// ApprovedRequest is an evidence request that passed the policy gate, with
// all fields normalized and bounded.
type ApprovedRequest struct {
	Need     EvidenceKind `json:"need"`
	Priority NeedPriority `json:"priority"`
	Reason   string       `json:"reason"`
	Window   *Window      `json:"window,omitempty"`
	MaxItems int          `json:"max_items"`
	Hints    []string     `json:"hints,omitempty"`
}

// RejectedRequest pairs a rejected request with a machine-readable code and
// human-readable reason for the audit trail. Nothing is silently dropped.
type RejectedRequest struct {
	Request EvidenceRequest `json:"request"`
	Code    string          `json:"code"`
	Reason  string          `json:"reason"`
}
