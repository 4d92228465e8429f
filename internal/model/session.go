package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of an investigation session.
// RUNNING is the only non-terminal state.
type SessionStatus string

const (
	StatusRunning   SessionStatus = "RUNNING"
	StatusCompleted SessionStatus = "COMPLETED"
	StatusStopped   SessionStatus = "STOPPED"
	StatusFailed    SessionStatus = "FAILED"
)

// Terminal reports whether the status is final.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusStopped || s == StatusFailed
}

// Well-known stop reasons recorded on the session row. Every stop has a
// recorded cause; there is no silent failure mode.
const (
	ReasonNoApprovedRequests = "NO_APPROVED_EVIDENCE_REQUESTS"
	ReasonNoNewEvidence      = "no new evidence could be collected"
	ReasonNoProgress         = "completeness did not improve and no new evidence was collected"
	ReasonMaxIterations      = "maximum iterations reached"
	ReasonConfidenceReached  = "confidence target reached"
)

// InvestigationSession is created once per investigation run and mutated
// only by the loop controller. Terminal once status leaves RUNNING.
type InvestigationSession struct {
	SessionID        uuid.UUID     `json:"session_id"`
	IncidentID       string        `json:"incident_id"`
	Status           SessionStatus `json:"status"`
	CurrentIteration int           `json:"current_iteration"`
	MaxIterations    int           `json:"max_iterations"`
	ConfidenceTarget float64       `json:"confidence_target"`
	Reason           string        `json:"reason,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// IterationDecision summarizes what the controller decided at the end of one
// loop pass. Stored as JSON on the iteration record.
type IterationDecision struct {
	Action            string   `json:"action"` // continue | complete | stop
	Reason            string   `json:"reason,omitempty"`
	ApprovedNeeds     []string `json:"approved_needs,omitempty"`
	RejectedCount     int      `json:"rejected_count,omitempty"`
	CollectedKinds    []string `json:"collected_kinds,omitempty"`
	UsedFallbackPlan  bool     `json:"used_fallback_plan,omitempty"`
	ReasoningDegraded bool     `json:"reasoning_degraded,omitempty"`
}

// InvestigationIteration is one immutable record per loop pass.
// Append-only history, never edited.
type InvestigationIteration struct {
	SessionID         uuid.UUID         `json:"session_id"`
	Iteration         int               `json:"iteration"`
	EvidenceBundleID  string            `json:"evidence_bundle_id,omitempty"`
	AnalysisID        *uuid.UUID        `json:"analysis_id,omitempty"`
	CompletenessScore int               `json:"completeness_score"`
	OverallConfidence float64           `json:"overall_confidence"`
	Decision          IterationDecision `json:"decision"`
	Notes             []string          `json:"notes,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

// Explainability captures why the reasoning step believes what it believes.
type Explainability struct {
	PrimarySignal PrimarySignal `json:"primary_signal"`
	LatencyFactor float64       `json:"latency_factor"`
	ErrorFactor   float64       `json:"error_factor"`
	Rationale     string        `json:"rationale"`
}

// Hypothesis is one validated root-cause hypothesis produced by a reasoning
// step. ID is always a member of the candidate set offered for that call.
type Hypothesis struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Confidence   float64  `json:"confidence"`
	Rationale    string   `json:"rationale"`
	EvidenceRefs []string `json:"evidence_refs,omitempty"`
}

// AnalysisResult is the persisted outcome of one successful reasoning call.
// Prompt and response hashes allow cross-system reproducibility checks.
type AnalysisResult struct {
	AnalysisID        uuid.UUID      `json:"analysis_id"`
	SessionID         uuid.UUID      `json:"session_id"`
	Iteration         int            `json:"iteration"`
	Hypotheses        []Hypothesis   `json:"hypotheses"`
	Explainability    Explainability `json:"explainability"`
	OverallConfidence float64        `json:"overall_confidence"`
	PromptHash        string         `json:"prompt_hash"`
	ResponseHash      string         `json:"response_hash"`
	CreatedAt         time.Time      `json:"created_at"`
}

// IterationSummary is the per-iteration slice of the session status read model.
type IterationSummary struct {
	Iteration         int        `json:"iteration"`
	CreatedAt         time.Time  `json:"created_at"`
	EvidenceBundleID  string     `json:"evidence_bundle_id,omitempty"`
	AnalysisID        *uuid.UUID `json:"analysis_id,omitempty"`
	CompletenessScore int        `json:"completeness_score"`
	OverallConfidence float64    `json:"overall_confidence"`
}

// SessionStatusView is the read model exposed to operators.
type SessionStatusView struct {
	SessionID        uuid.UUID          `json:"session_id"`
	IncidentID       string             `json:"incident_id"`
	Status           SessionStatus      `json:"status"`
	CurrentIteration int                `json:"current_iteration"`
	MaxIterations    int                `json:"max_iterations"`
	ConfidenceTarget float64            `json:"confidence_target"`
	Reason           string             `json:"reason,omitempty"`
	Iterations       []IterationSummary `json:"iterations"`
}
