// Package completeness scores how much of the expected evidence surface is
// present for an incident. The scorer is pure: identical inputs always
// produce identical results, with no clock or randomness involved.
package completeness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rasike-dev/chronosops/internal/model"
)

// Weights per evidence kind. Metrics carry the most weight because every
// incident signal ultimately shows up there first.
var kindWeights = []struct {
	kind   model.EvidenceKind
	weight int
}{
	{model.KindMetrics, 25},
	{model.KindLogs, 20},
	{model.KindTraces, 20},
	{model.KindDeploys, 15},
	{model.KindConfig, 15},
}

const (
	externalStatusWeight = 5
	stubPenalty          = 5
	maxScore             = 100
)

// Score computes the completeness of a bundle (nil means no evidence yet)
// for an incident with the given source type and primary signal.
func Score(bundle *model.EvidenceBundle, sourceType string, signal model.PrimarySignal) model.EvidenceCompleteness {
	needsStatus := model.RequiresExternalStatus(sourceType)

	var (
		score   int
		present []model.EvidenceKind
		notes   []string
	)
	for _, kw := range kindWeights {
		if hasEvidence(bundle, kw.kind) {
			score += kw.weight
			present = append(present, kw.kind)
		}
	}
	statusPresent := hasEvidence(bundle, model.KindGoogleStatus)
	if needsStatus && statusPresent {
		score += externalStatusWeight
		present = append(present, model.KindGoogleStatus)
	}

	// Stub artifacts are synthesized rather than independently verified,
	// so each one weakens the score.
	stubs := 0
	if bundle != nil {
		for _, a := range bundle.Artifacts {
			if a.Mode == model.ModeStub {
				stubs++
			}
		}
	}
	if stubs > 0 {
		score -= stubs * stubPenalty
		notes = append(notes, fmt.Sprintf("%d stub artifact(s) reduced the score", stubs))
	}
	if score < 0 {
		score = 0
	}
	if score > maxScore {
		score = maxScore
	}

	missing := missingNeeds(bundle, signal)
	if needsStatus && !statusPresent {
		missing = append(missing, model.EvidenceNeed{
			Need:     model.KindGoogleStatus,
			Priority: model.PriorityP0,
			Reason:   fmt.Sprintf("incident source %q depends on an upstream Google service", sourceType),
		})
	}
	missing = dedupeNeeds(missing)

	return model.EvidenceCompleteness{
		Score:   score,
		Present: present,
		Missing: missing,
		Notes:   notes,
	}
}

// hasEvidence checks both artifact kinds and the bundle's declared sources,
// since a source can contribute context without yielding a full artifact.
func hasEvidence(bundle *model.EvidenceBundle, kind model.EvidenceKind) bool {
	if bundle == nil {
		return false
	}
	if bundle.HasKind(kind) {
		return true
	}
	needle := strings.ToLower(string(kind))
	for _, src := range bundle.Sources {
		if strings.Contains(strings.ToLower(src), needle) {
			return true
		}
	}
	return false
}

// missingNeeds builds the prioritized list of absent collectable kinds using
// signal-specific rules.
func missingNeeds(bundle *model.EvidenceBundle, signal model.PrimarySignal) []model.EvidenceNeed {
	var out []model.EvidenceNeed
	for _, kind := range model.CollectableKinds {
		if hasEvidence(bundle, kind) {
			continue
		}
		prio, reason := needPriority(kind, signal)
		out = append(out, model.EvidenceNeed{Need: kind, Priority: prio, Reason: reason})
	}
	return out
}

func needPriority(kind model.EvidenceKind, signal model.PrimarySignal) (model.NeedPriority, string) {
	if kind == model.KindMetrics {
		// Metrics anchor every investigation regardless of signal.
		return model.PriorityP0, "metrics establish the incident timeline and blast radius"
	}
	switch signal {
	case model.SignalLatency:
		switch kind {
		case model.KindTraces:
			return model.PriorityP0, "traces localize where latency accumulates"
		case model.KindDeploys:
			return model.PriorityP1, "a recent deploy is a common latency regression cause"
		case model.KindConfig:
			return model.PriorityP1, "config changes can shift timeouts and limits"
		case model.KindLogs:
			return model.PriorityP2, "logs add supporting detail for a latency incident"
		}
	case model.SignalErrors:
		switch kind {
		case model.KindLogs:
			return model.PriorityP0, "logs carry the error signatures driving the incident"
		case model.KindTraces, model.KindDeploys, model.KindConfig:
			return model.PriorityP1, "needed to correlate the error spike with a cause"
		}
	default:
		switch kind {
		case model.KindLogs, model.KindTraces:
			return model.PriorityP1, "logs and traces narrow down an unclassified signal"
		}
	}
	return model.PriorityP2, "broadens coverage for the current signal"
}

// dedupeNeeds keeps the highest-priority entry per need and orders the
// result by priority, then kind, for stable output.
func dedupeNeeds(needs []model.EvidenceNeed) []model.EvidenceNeed {
	best := make(map[model.EvidenceKind]model.EvidenceNeed)
	for _, n := range needs {
		if cur, ok := best[n.Need]; !ok || n.Priority.Rank() < cur.Priority.Rank() {
			best[n.Need] = n
		}
	}
	out := make([]model.EvidenceNeed, 0, len(best))
	for _, n := range best {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority.Rank() != out[j].Priority.Rank() {
			return out[i].Priority.Rank() < out[j].Priority.Rank()
		}
		return out[i].Need < out[j].Need
	})
	return out
}
