package catalog

import (
	"sort"

	"github.com/rasike-dev/chronosops/internal/model"
)

// Preselection bounds. The candidate list never exceeds MaxCandidates and
// always terminates with the fallback id.
const (
	MaxCandidates = 8
	maxScored     = MaxCandidates - 1

	// lowCompletenessThreshold marks evidence too thin to commit to a
	// specific hypothesis.
	lowCompletenessThreshold = 40
)

// Capabilities records which evidence kinds are currently present.
type Capabilities struct {
	Metrics      bool
	Logs         bool
	Traces       bool
	Deploys      bool
	Config       bool
	GoogleStatus bool
}

// Has reports whether evidence of kind k is present.
func (c Capabilities) Has(k model.EvidenceKind) bool {
	switch k {
	case model.KindMetrics:
		return c.Metrics
	case model.KindLogs:
		return c.Logs
	case model.KindTraces:
		return c.Traces
	case model.KindDeploys:
		return c.Deploys
	case model.KindConfig:
		return c.Config
	case model.KindGoogleStatus:
		return c.GoogleStatus
	default:
		return false
	}
}

// Flags are boolean observations extracted from the evidence collected so far.
type Flags struct {
	RecentDeploy      bool
	ConfigChanged     bool
	NewErrorSignature bool
	Timeouts          bool
}

// Preselect ranks catalog entries against the observed signals and returns
// an ordered list of up to MaxCandidates hypothesis ids, always ending with
// the fallback id. The result is deterministic: ties are broken by catalog
// declaration order.
func Preselect(signal model.PrimarySignal, completenessScore int, caps Capabilities, flags Flags) []string {
	tags := deriveTags(signal, completenessScore, flags)

	type scored struct {
		index int
		id    string
		score float64
	}
	var ranked []scored
	for i, e := range Entries {
		var s float64
		for _, trig := range e.Triggers {
			if tags[trig] {
				s++
			}
		}
		for _, req := range e.Requires {
			if caps.Has(req) {
				s += 0.5
			}
		}
		if s > 0 {
			ranked = append(ranked, scored{index: i, id: e.ID, score: s})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if len(ranked) > maxScored {
		ranked = ranked[:maxScored]
	}

	ids := make([]string, 0, MaxCandidates)
	fallbackSeen := false
	for _, r := range ranked {
		ids = append(ids, r.id)
		if r.id == FallbackID {
			fallbackSeen = true
		}
	}
	if !fallbackSeen {
		ids = append(ids, FallbackID)
	}
	if len(ids) > MaxCandidates {
		ids = ids[:MaxCandidates]
	}
	return ids
}

func deriveTags(signal model.PrimarySignal, completenessScore int, flags Flags) map[string]bool {
	tags := make(map[string]bool)
	switch signal {
	case model.SignalLatency:
		tags[TagLatencySpike] = true
	case model.SignalErrors:
		tags[TagErrorSpike] = true
	}
	if flags.RecentDeploy {
		tags[TagRecentDeploy] = true
	}
	if flags.ConfigChanged {
		tags[TagConfigChange] = true
	}
	if flags.NewErrorSignature {
		tags[TagNewErrorSignature] = true
	}
	if flags.Timeouts {
		tags[TagTimeouts] = true
	}
	if completenessScore < lowCompletenessThreshold {
		tags[TagLowCompleteness] = true
	}
	return tags
}
