package collect

import (
	"sort"

	"github.com/rasike-dev/chronosops/internal/model"
)

// FallbackMaxCollectors bounds the deterministic fallback plan.
const FallbackMaxCollectors = 2

// Task pairs one collector with the scope it should run over.
type Task struct {
	Collector Collector
	Ctx       Context
	Reason    string
}

// PlanFromRequests maps approved evidence requests to collector tasks
// (model-directed selection). The collection context comes from each
// request's scope, falling back to the session window and hints when the
// request leaves them unset. GOOGLE_STATUS never resolves to a collector;
// such requests are a no-op here because that evidence arrives out-of-band.
func PlanFromRequests(reg *Registry, approved []model.ApprovedRequest, incident model.IncidentContext) []Task {
	var tasks []Task
	for _, req := range approved {
		if req.Need == model.KindGoogleStatus {
			continue
		}
		c, ok := reg.Get(req.Need)
		if !ok {
			continue
		}
		cc := Context{
			IncidentID: incident.IncidentID,
			Window:     incident.Window,
			Hints:      incident.Hints,
			MaxItems:   req.MaxItems,
		}
		if req.Window != nil {
			cc.Window = *req.Window
		}
		if len(req.Hints) > 0 {
			cc.Hints = req.Hints
		}
		tasks = append(tasks, Task{Collector: c, Ctx: cc, Reason: req.Reason})
	}
	return tasks
}

// PlanFromMissing builds the deterministic fallback plan: rank the
// completeness scorer's missing needs by priority and select up to
// FallbackMaxCollectors collectors directly. Used whenever no approved
// model-directed requests exist.
func PlanFromMissing(reg *Registry, missing []model.EvidenceNeed, incident model.IncidentContext) []Task {
	ranked := make([]model.EvidenceNeed, len(missing))
	copy(ranked, missing)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Priority.Rank() < ranked[j].Priority.Rank()
	})

	var tasks []Task
	for _, need := range ranked {
		if len(tasks) >= FallbackMaxCollectors {
			break
		}
		if need.Need == model.KindGoogleStatus {
			continue
		}
		c, ok := reg.Get(need.Need)
		if !ok {
			continue
		}
		tasks = append(tasks, Task{
			Collector: c,
			Ctx: Context{
				IncidentID: incident.IncidentID,
				Window:     incident.Window,
				Hints:      incident.Hints,
			},
			Reason: need.Reason,
		})
	}
	return tasks
}
