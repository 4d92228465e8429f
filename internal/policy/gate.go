// Package policy validates and bounds evidence requests before any
// collector runs. The gate is pure given its Limits, which makes every
// branch unit-testable; safe mode tightens all numeric bounds.
package policy

import (
	"fmt"
	"sort"
	"time"

	"github.com/rasike-dev/chronosops/internal/model"
)

// Rejection codes. Every rejected request carries exactly one of these plus
// a human-readable reason; nothing is silently dropped.
const (
	CodeInvalidSchema     = "INVALID_SCHEMA"
	CodeNeedNotAllowed    = "NEED_NOT_ALLOWED"
	CodeWindowOutOfBounds = "WINDOW_OUT_OF_BOUNDS"
	CodeInvalidWindow     = "INVALID_WINDOW"
	CodeWindowTooLarge    = "WINDOW_TOO_LARGE"
	CodeMaxItemsTooHigh   = "MAX_ITEMS_TOO_HIGH"
	CodePerIterationLimit = "PER_ITERATION_LIMIT_EXCEEDED"
)

// Limits are the numeric bounds the gate enforces. Construct with
// LimitsFor; the zero value rejects everything sensible.
type Limits struct {
	WindowCap         time.Duration
	MaxItemsCap       int
	NeedsPerIteration int
}

// LimitsFor returns the bounds for the given posture. Safe mode halves the
// collection surface: shorter windows, fewer items, one need per iteration.
func LimitsFor(safeMode bool) Limits {
	if safeMode {
		return Limits{
			WindowCap:         2 * time.Hour,
			MaxItemsCap:       50,
			NeedsPerIteration: 1,
		}
	}
	return Limits{
		WindowCap:         6 * time.Hour,
		MaxItemsCap:       200,
		NeedsPerIteration: 2,
	}
}

// Result is the gate's verdict over one batch of requests.
type Result struct {
	Approved []model.ApprovedRequest
	Rejected []model.RejectedRequest
}

// Gate validates evidence requests against a fixed rule order.
type Gate struct {
	limits Limits
}

// New creates a policy gate with the given limits.
func New(limits Limits) *Gate {
	return &Gate{limits: limits}
}

// Evaluate applies the rules to each request in order, short-circuiting on
// the first failure per request, then deduplicates by need and enforces the
// per-iteration quota on distinct approved needs.
func (g *Gate) Evaluate(requests []model.EvidenceRequest, session model.Window) Result {
	var res Result

	var candidates []model.ApprovedRequest
	for _, req := range requests {
		approved, rej := g.evaluateOne(req, session)
		if rej != nil {
			res.Rejected = append(res.Rejected, *rej)
			continue
		}
		candidates = append(candidates, approved)
	}

	// Dedupe by need, keeping the highest-priority request per need.
	best := make(map[model.EvidenceKind]model.ApprovedRequest)
	var order []model.EvidenceKind
	for _, c := range candidates {
		cur, ok := best[c.Need]
		if !ok {
			best[c.Need] = c
			order = append(order, c.Need)
			continue
		}
		if c.Priority.Rank() < cur.Priority.Rank() {
			best[c.Need] = c
		}
	}
	deduped := make([]model.ApprovedRequest, 0, len(best))
	for _, need := range order {
		deduped = append(deduped, best[need])
	}

	// Quota on distinct needs per iteration: most urgent first, the rest
	// rejected with an explicit code.
	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].Priority.Rank() < deduped[j].Priority.Rank()
	})
	for i, c := range deduped {
		if i < g.limits.NeedsPerIteration {
			res.Approved = append(res.Approved, c)
			continue
		}
		res.Rejected = append(res.Rejected, model.RejectedRequest{
			Request: model.EvidenceRequest{
				Need:     string(c.Need),
				Priority: string(c.Priority),
				Reason:   c.Reason,
				Window:   c.Window,
				Hints:    c.Hints,
			},
			Code: CodePerIterationLimit,
			Reason: fmt.Sprintf("only %d distinct evidence need(s) allowed per iteration",
				g.limits.NeedsPerIteration),
		})
	}
	return res
}

func (g *Gate) evaluateOne(req model.EvidenceRequest, session model.Window) (model.ApprovedRequest, *model.RejectedRequest) {
	reject := func(code, reason string) (model.ApprovedRequest, *model.RejectedRequest) {
		return model.ApprovedRequest{}, &model.RejectedRequest{Request: req, Code: code, Reason: reason}
	}

	// 1. Schema validity.
	if req.Need == "" {
		return reject(CodeInvalidSchema, "request has no evidence need")
	}
	if req.Priority != "" && !model.ValidPriority(req.Priority) {
		return reject(CodeInvalidSchema, fmt.Sprintf("unknown priority %q", req.Priority))
	}

	// 2. Allowlist.
	if !model.ValidKind(req.Need) {
		return reject(CodeNeedNotAllowed, fmt.Sprintf("evidence need %q is not allowlisted", req.Need))
	}

	// 3. Window placement.
	if req.Window != nil {
		if !req.Window.Valid() {
			return reject(CodeInvalidWindow, "window start must be before window end")
		}
		if !session.Contains(*req.Window) {
			return reject(CodeWindowOutOfBounds, "window lies outside the session window")
		}
		// 4. Window duration cap.
		if req.Window.Duration() > g.limits.WindowCap {
			return reject(CodeWindowTooLarge,
				fmt.Sprintf("window duration %s exceeds cap %s", req.Window.Duration(), g.limits.WindowCap))
		}
	}

	// 5. Item cap.
	maxItems := g.limits.MaxItemsCap
	if req.MaxItems != nil {
		if *req.MaxItems < 1 || *req.MaxItems > g.limits.MaxItemsCap {
			return reject(CodeMaxItemsTooHigh,
				fmt.Sprintf("max_items %d outside [1, %d]", *req.MaxItems, g.limits.MaxItemsCap))
		}
		maxItems = *req.MaxItems
	}

	priority := model.NeedPriority(req.Priority)
	if req.Priority == "" {
		priority = model.PriorityP2
	}
	return model.ApprovedRequest{
		Need:     model.EvidenceKind(req.Need),
		Priority: priority,
		Reason:   req.Reason,
		Window:   req.Window,
		MaxItems: maxItems,
		Hints:    req.Hints,
	}, nil
}
