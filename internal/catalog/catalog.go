// Package catalog holds the fixed set of root-cause hypotheses the
// reasoning step may choose among, and the preselector that ranks them
// against observed incident signals.
package catalog

import "github.com/rasike-dev/chronosops/internal/model"

// Trigger tags derived from incident signals and flags.
const (
	TagLatencySpike      = "latency_spike"
	TagErrorSpike        = "error_spike"
	TagRecentDeploy      = "recent_deploy"
	TagConfigChange      = "config_change"
	TagNewErrorSignature = "new_error_signature"
	TagTimeouts          = "timeouts"
	TagLowCompleteness   = "low_completeness"
)

// Hypothesis ids. The reasoning step may only emit ids from this set.
const (
	IDBadDeploy              = "bad_deploy"
	IDConfigChange           = "config_change"
	IDUpstreamProviderOutage = "upstream_provider_outage"
	IDTimeoutCascade         = "timeout_cascade"
	IDResourceExhaustion     = "resource_exhaustion"
	IDDatabaseContention     = "database_contention"
	IDTrafficSpike           = "traffic_spike"
	IDNewDefect              = "new_defect"
	IDQuotaExhaustion        = "quota_exhaustion"
	IDNetworkDegradation     = "network_degradation"
	IDCacheDegradation       = "cache_degradation"
)

// FallbackID is the catch-all hypothesis that always terminates the
// candidate list so the reasoning step has a safe default.
const FallbackID = "unknown"

// Entry is one static catalog row. The catalog is versioned with the engine
// and never mutated at runtime.
type Entry struct {
	ID          string
	Title       string
	Description string
	Triggers    []string
	Requires    []model.EvidenceKind
}

// Version identifies the catalog revision; recorded with each analysis so
// old results stay interpretable after catalog changes.
const Version = "2026-06"

// Entries is the full catalog in declaration order. Declaration order breaks
// score ties during preselection, so more common causes come first.
var Entries = []Entry{
	{
		ID:          IDBadDeploy,
		Title:       "Recent deployment introduced a regression",
		Description: "A deploy inside or shortly before the incident window changed behavior of the affected service.",
		Triggers:    []string{TagRecentDeploy, TagErrorSpike, TagLatencySpike},
		Requires:    []model.EvidenceKind{model.KindDeploys, model.KindMetrics},
	},
	{
		ID:          IDConfigChange,
		Title:       "Configuration change altered runtime behavior",
		Description: "A config or flag change shifted limits, routing, or feature behavior.",
		Triggers:    []string{TagConfigChange, TagRecentDeploy},
		Requires:    []model.EvidenceKind{model.KindConfig, model.KindDeploys},
	},
	{
		ID:          IDUpstreamProviderOutage,
		Title:       "Upstream provider degradation or outage",
		Description: "A dependency outside our control (model API, cloud service) is degraded.",
		Triggers:    []string{TagErrorSpike, TagTimeouts},
		Requires:    []model.EvidenceKind{model.KindGoogleStatus, model.KindMetrics},
	},
	{
		ID:          IDTimeoutCascade,
		Title:       "Timeout cascade across service boundaries",
		Description: "Slow downstream calls exhaust caller budgets, amplifying latency and errors upstream.",
		Triggers:    []string{TagTimeouts, TagLatencySpike},
		Requires:    []model.EvidenceKind{model.KindTraces, model.KindMetrics},
	},
	{
		ID:          IDResourceExhaustion,
		Title:       "Resource exhaustion (CPU, memory, connections)",
		Description: "The service is saturating a bounded resource, degrading throughput and latency.",
		Triggers:    []string{TagLatencySpike},
		Requires:    []model.EvidenceKind{model.KindMetrics, model.KindLogs},
	},
	{
		ID:          IDDatabaseContention,
		Title:       "Database contention or slow queries",
		Description: "Lock contention, slow queries, or pool exhaustion in the storage tier.",
		Triggers:    []string{TagLatencySpike, TagTimeouts},
		Requires:    []model.EvidenceKind{model.KindTraces, model.KindLogs},
	},
	{
		ID:          IDTrafficSpike,
		Title:       "Unexpected traffic or load pattern shift",
		Description: "Request volume or shape changed beyond provisioned capacity.",
		Triggers:    []string{TagLatencySpike, TagErrorSpike},
		Requires:    []model.EvidenceKind{model.KindMetrics},
	},
	{
		ID:          IDNewDefect,
		Title:       "New application defect surfaced",
		Description: "A previously unseen error signature points at an application bug.",
		Triggers:    []string{TagNewErrorSignature, TagErrorSpike},
		Requires:    []model.EvidenceKind{model.KindLogs, model.KindDeploys},
	},
	{
		ID:          IDQuotaExhaustion,
		Title:       "Quota or rate limit exhaustion",
		Description: "An external quota (API, token, request) is exhausted, rejecting or throttling calls.",
		Triggers:    []string{TagErrorSpike},
		Requires:    []model.EvidenceKind{model.KindLogs, model.KindConfig},
	},
	{
		ID:          IDNetworkDegradation,
		Title:       "Network degradation between components",
		Description: "Packet loss, DNS issues, or connectivity faults between service tiers.",
		Triggers:    []string{TagTimeouts},
		Requires:    []model.EvidenceKind{model.KindTraces, model.KindMetrics},
	},
	{
		ID:          IDCacheDegradation,
		Title:       "Cache degradation or cold cache",
		Description: "A cache flush, eviction storm, or hit-rate collapse pushed load to the backing store.",
		Triggers:    []string{TagLatencySpike},
		Requires:    []model.EvidenceKind{model.KindMetrics, model.KindConfig},
	},
	{
		ID:          FallbackID,
		Title:       "Root cause not yet determined",
		Description: "Evidence collected so far does not support a specific hypothesis.",
		Triggers:    []string{TagLowCompleteness},
		Requires:    nil,
	},
}

// Lookup returns the catalog entry for id, or false if absent.
func Lookup(id string) (Entry, bool) {
	for _, e := range Entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// ValidID reports whether id names a catalog entry.
func ValidID(id string) bool {
	_, ok := Lookup(id)
	return ok
}
