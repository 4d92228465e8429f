package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/rasike-dev/chronosops/internal/audit"
	"github.com/rasike-dev/chronosops/internal/bundle"
	"github.com/rasike-dev/chronosops/internal/canonical"
	"github.com/rasike-dev/chronosops/internal/catalog"
	"github.com/rasike-dev/chronosops/internal/collect"
	"github.com/rasike-dev/chronosops/internal/completeness"
	"github.com/rasike-dev/chronosops/internal/model"
	"github.com/rasike-dev/chronosops/internal/policy"
	"github.com/rasike-dev/chronosops/internal/reason"
	"github.com/rasike-dev/chronosops/internal/storage"
)

// outcome is the controller's verdict after one iteration.
type outcome struct {
	terminal bool
	status   model.SessionStatus
	reason   string
}

func continueLoop() outcome {
	return outcome{}
}

func finish(status model.SessionStatus, why string) outcome {
	return outcome{terminal: true, status: status, reason: why}
}

// run drives the session until a stop rule fires. Every exit path updates
// the session row to a terminal status with a recorded cause.
func (e *Engine) run(ctx context.Context, session model.InvestigationSession, p Params) {
	var timeline []string
	final := finish(model.StatusStopped, model.ReasonMaxIterations)

	for i := 1; i <= e.cfg.MaxIterations; i++ {
		iterCtx, cancel := context.WithTimeout(ctx, e.cfg.IterationTimeout)
		start := time.Now()
		out, note, err := e.runIteration(iterCtx, session, p, i, timeline)
		e.iterationDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.Int("iteration", i)))
		cancel()

		if err != nil {
			e.logger.Error("iteration failed",
				"session_id", session.SessionID,
				"iteration", i,
				"error", err)
			final = finish(model.StatusFailed, fmt.Sprintf("iteration %d: %v", i, err))
			session.CurrentIteration = i
			break
		}

		timeline = append(timeline, note)
		session.CurrentIteration = i

		if out.terminal {
			final = out
			break
		}

		if err := e.updateSession(ctx, session); err != nil {
			e.logger.Error("session update failed", "session_id", session.SessionID, "error", err)
			final = finish(model.StatusFailed, fmt.Sprintf("persist iteration %d: %v", i, err))
			break
		}
	}

	// The terminal write must land even when the caller's context is gone
	// (SIGINT cancels it); a cancelled session must not stay RUNNING.
	finCtx := context.WithoutCancel(ctx)

	session.Status = final.status
	session.Reason = final.reason
	if err := e.updateSession(finCtx, session); err != nil {
		e.logger.Error("terminal session update failed", "session_id", session.SessionID, "error", err)
	}

	e.sessionsFinished.Add(finCtx, 1, metric.WithAttributes(
		attribute.String("status", string(final.status))))
	e.recorder.Record(finCtx, audit.Draft{
		ChainID:    chainID(session.SessionID),
		EventType:  model.AuditSessionFinished,
		EntityType: "session",
		EntityID:   session.SessionID.String(),
		Payload: map[string]any{
			"status":     string(final.status),
			"reason":     final.reason,
			"iterations": session.CurrentIteration,
		},
	})
	e.logger.Info("session finished",
		"session_id", session.SessionID,
		"status", final.status,
		"reason", final.reason,
		"iterations", session.CurrentIteration)
}

// runIteration executes one loop pass and records its immutable iteration
// row. The returned note summarizes the pass for the reasoning timeline.
func (e *Engine) runIteration(ctx context.Context, session model.InvestigationSession, p Params, iteration int, timeline []string) (outcome, string, error) {
	chain := chainID(session.SessionID)

	prior, err := e.loadBundle(ctx, p.Incident.IncidentID)
	if err != nil {
		return outcome{}, "", err
	}
	comp := completeness.Score(prior, p.Incident.SourceType, p.Signal)

	candidates := catalog.Preselect(p.Signal, comp.Score, e.capabilities(prior), deriveFlags(p.Incident.Hints))

	record := model.InvestigationIteration{
		SessionID:         session.SessionID,
		Iteration:         iteration,
		CompletenessScore: comp.Score,
	}
	if prior != nil {
		record.EvidenceBundleID = prior.BundleID
	}

	// Reasoning. A failed call degrades the iteration instead of failing
	// the session: the controller falls back to scorer-directed collection.
	req := e.buildRequest(p, iteration, candidates, comp, prior, timeline)
	resp, rerr := e.reasoner.Reason(ctx, req)
	if rerr != nil {
		e.logger.Warn("reasoning degraded, using fallback plan",
			"session_id", session.SessionID,
			"iteration", iteration,
			"error", rerr)
		record.Decision.ReasoningDegraded = true
	} else {
		analysis, err := e.recordAnalysis(ctx, session, iteration, req, resp)
		if err != nil {
			return outcome{}, "", err
		}
		record.AnalysisID = &analysis.AnalysisID
		record.OverallConfidence = resp.OverallConfidence

		// Confidence is judged on the analysis just recorded, before this
		// pass collects anything: a completing session leaves its final
		// evidence requests uncollected.
		if resp.OverallConfidence >= session.ConfidenceTarget {
			record.Decision.Action = "complete"
			record.Decision.Reason = model.ReasonConfidenceReached
			if err := e.insertIteration(ctx, record); err != nil {
				return outcome{}, "", err
			}
			return finish(model.StatusCompleted, model.ReasonConfidenceReached),
				iterationNote(iteration, comp.Score, record.OverallConfidence), nil
		}
	}

	// Plan collection: model-directed through the policy gate, or the
	// bounded fallback plan when reasoning was unavailable or proposed
	// nothing. Proposing requests and having every one rejected is terminal;
	// proposing none is not.
	var tasks []collect.Task
	if rerr != nil {
		tasks = collect.PlanFromMissing(e.registry, comp.Missing, p.Incident)
		record.Decision.UsedFallbackPlan = true
	} else {
		verdict := e.gateRequests(ctx, session, iteration, resp.EvidenceRequests, p.Incident.Window)
		record.Decision.RejectedCount = len(verdict.Rejected)
		for _, a := range verdict.Approved {
			record.Decision.ApprovedNeeds = append(record.Decision.ApprovedNeeds, string(a.Need))
		}
		switch {
		case len(verdict.Approved) > 0:
			tasks = collect.PlanFromRequests(e.registry, verdict.Approved, p.Incident)
		case len(resp.EvidenceRequests) > 0:
			record.Decision.Action = "stop"
			record.Decision.Reason = model.ReasonNoApprovedRequests
			if err := e.insertIteration(ctx, record); err != nil {
				return outcome{}, "", err
			}
			return finish(model.StatusStopped, model.ReasonNoApprovedRequests),
				iterationNote(iteration, comp.Score, record.OverallConfidence), nil
		default:
			tasks = collect.PlanFromMissing(e.registry, comp.Missing, p.Incident)
			record.Decision.UsedFallbackPlan = true
		}
	}

	// Bounded by construction: an empty plan means no way to make progress,
	// so the loop stops here instead of spinning.
	if len(tasks) == 0 {
		record.Decision.Action = "stop"
		record.Decision.Reason = model.ReasonNoNewEvidence
		if err := e.insertIteration(ctx, record); err != nil {
			return outcome{}, "", err
		}
		return finish(model.StatusStopped, model.ReasonNoNewEvidence),
			iterationNote(iteration, comp.Score, record.OverallConfidence), nil
	}

	artifacts, sources := e.collectAll(ctx, session, iteration, tasks)
	for _, a := range artifacts {
		record.Decision.CollectedKinds = append(record.Decision.CollectedKinds, string(a.Kind))
	}

	if len(artifacts) == 0 {
		record.Decision.Action = "stop"
		record.Decision.Reason = model.ReasonNoNewEvidence
		if err := e.insertIteration(ctx, record); err != nil {
			return outcome{}, "", err
		}
		return finish(model.StatusStopped, model.ReasonNoNewEvidence),
			iterationNote(iteration, comp.Score, record.OverallConfidence), nil
	}

	newBundle, err := bundle.Build(bundle.Input{
		Prior:      prior,
		IncidentID: p.Incident.IncidentID,
		CreatedBy:  e.cfg.CreatedBy,
		Artifacts:  artifacts,
		Sources:    sources,
		Now:        time.Now(),
	})
	if err != nil {
		return outcome{}, "", fmt.Errorf("build bundle: %w", err)
	}

	inserted, err := e.store.UpsertBundle(ctx, newBundle)
	if err != nil {
		return outcome{}, "", err
	}
	if inserted {
		// The storage layer's inserted flag is the authoritative
		// "new bundle" signal; audit emission keys off it so replays
		// of identical evidence never duplicate chain entries.
		e.recorder.Record(ctx, audit.Draft{
			ChainID:    chain,
			EventType:  model.AuditBundleCreated,
			EntityType: "evidence_bundle",
			EntityID:   newBundle.BundleID,
			EntityRef:  p.Incident.IncidentID,
			Payload: map[string]any{
				"iteration": iteration,
				"artifacts": len(newBundle.Artifacts),
				"sources":   newBundle.Sources,
			},
		})
	}
	record.EvidenceBundleID = newBundle.BundleID

	if !inserted {
		// Content-identical replay: completeness cannot have moved and
		// nothing new was added, so another pass would repeat this one.
		record.Decision.Action = "stop"
		record.Decision.Reason = model.ReasonNoProgress
		if err := e.insertIteration(ctx, record); err != nil {
			return outcome{}, "", err
		}
		return finish(model.StatusStopped, model.ReasonNoProgress),
			iterationNote(iteration, comp.Score, record.OverallConfidence), nil
	}

	// A flat completeness score alone is not a stop signal: fresh artifacts
	// of an already-present kind are still new evidence, and the iteration
	// cap bounds the session either way.
	newComp := completeness.Score(&newBundle, p.Incident.SourceType, p.Signal)

	record.Decision.Action = "continue"
	if err := e.insertIteration(ctx, record); err != nil {
		return outcome{}, "", err
	}
	return continueLoop(), iterationNote(iteration, newComp.Score, record.OverallConfidence), nil
}

func (e *Engine) loadBundle(ctx context.Context, incidentID string) (*model.EvidenceBundle, error) {
	b, err := e.store.LatestBundle(ctx, incidentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func (e *Engine) capabilities(b *model.EvidenceBundle) catalog.Capabilities {
	var caps catalog.Capabilities
	for _, k := range e.registry.Kinds() {
		switch k {
		case model.KindMetrics:
			caps.Metrics = true
		case model.KindLogs:
			caps.Logs = true
		case model.KindTraces:
			caps.Traces = true
		case model.KindDeploys:
			caps.Deploys = true
		case model.KindConfig:
			caps.Config = true
		}
	}
	caps.GoogleStatus = b.HasKind(model.KindGoogleStatus)
	return caps
}

// deriveFlags extracts boolean observations from the caller's hints.
func deriveFlags(hints []string) catalog.Flags {
	var f catalog.Flags
	for _, h := range hints {
		switch h {
		case catalog.TagRecentDeploy:
			f.RecentDeploy = true
		case catalog.TagConfigChange:
			f.ConfigChanged = true
		case catalog.TagNewErrorSignature:
			f.NewErrorSignature = true
		case catalog.TagTimeouts:
			f.Timeouts = true
		}
	}
	return f
}

func (e *Engine) buildRequest(p Params, iteration int, candidates []string, comp model.EvidenceCompleteness, prior *model.EvidenceBundle, timeline []string) reason.Request {
	req := reason.Request{
		IncidentID:     p.Incident.IncidentID,
		SourceType:     p.Incident.SourceType,
		Signal:         p.Signal,
		Iteration:      iteration,
		CandidateIDs:   candidates,
		Completeness:   comp,
		Timeline:       timeline,
		CatalogVersion: catalog.Version,
	}
	if prior != nil {
		for _, a := range prior.Artifacts {
			req.Artifacts = append(req.Artifacts, reason.ArtifactSummary{
				Kind:       a.Kind,
				ArtifactID: a.ArtifactID,
				Title:      a.Title,
				Summary:    a.Summary,
				Mode:       a.Mode,
			})
		}
	}
	return req
}

func (e *Engine) recordAnalysis(ctx context.Context, session model.InvestigationSession, iteration int, req reason.Request, resp *reason.Response) (model.AnalysisResult, error) {
	analysis, err := e.store.InsertAnalysis(ctx, model.AnalysisResult{
		SessionID:         session.SessionID,
		Iteration:         iteration,
		Hypotheses:        resp.Hypotheses,
		Explainability:    resp.Explainability,
		OverallConfidence: resp.OverallConfidence,
		PromptHash:        canonical.MustHash(req),
		ResponseHash:      canonical.MustHash(resp),
	})
	if err != nil {
		return model.AnalysisResult{}, err
	}

	e.recorder.Record(ctx, audit.Draft{
		ChainID:    chainID(session.SessionID),
		EventType:  model.AuditAnalysisRecorded,
		EntityType: "analysis",
		EntityID:   analysis.AnalysisID.String(),
		EntityRef:  session.SessionID.String(),
		Payload: map[string]any{
			"iteration":          iteration,
			"overall_confidence": resp.OverallConfidence,
			"hypotheses":         len(resp.Hypotheses),
			"prompt_hash":        analysis.PromptHash,
			"response_hash":      analysis.ResponseHash,
		},
	})
	return analysis, nil
}

func (e *Engine) gateRequests(ctx context.Context, session model.InvestigationSession, iteration int, requests []model.EvidenceRequest, window model.Window) policy.Result {
	verdict := e.gate.Evaluate(requests, window)

	rejections := make([]map[string]any, 0, len(verdict.Rejected))
	for _, r := range verdict.Rejected {
		rejections = append(rejections, map[string]any{
			"need":   r.Request.Need,
			"code":   r.Code,
			"reason": r.Reason,
		})
	}
	approved := make([]string, 0, len(verdict.Approved))
	for _, a := range verdict.Approved {
		approved = append(approved, string(a.Need))
	}
	e.recorder.Record(ctx, audit.Draft{
		ChainID:    chainID(session.SessionID),
		EventType:  model.AuditRequestsGated,
		EntityType: "session",
		EntityID:   session.SessionID.String(),
		Payload: map[string]any{
			"iteration": iteration,
			"requested": len(requests),
			"approved":  approved,
			"rejected":  rejections,
		},
	})
	return verdict
}

// collectAll fans collectors out concurrently. Faults are isolated per
// collector: one failure is logged and skipped without aborting siblings.
func (e *Engine) collectAll(ctx context.Context, session model.InvestigationSession, iteration int, tasks []collect.Task) ([]model.EvidenceArtifact, []string) {
	results := make([]*model.EvidenceArtifact, len(tasks))

	var mu sync.Mutex
	var failed []string

	g, gctx := errgroup.WithContext(ctx)
	for i, task := range tasks {
		g.Go(func() error {
			artifact, err := task.Collector.Collect(gctx, task.Ctx)
			if err != nil {
				e.logger.Warn("collector failed",
					"session_id", session.SessionID,
					"kind", task.Collector.Kind(),
					"source", task.Collector.Source(),
					"error", err)
				mu.Lock()
				failed = append(failed, string(task.Collector.Kind()))
				mu.Unlock()
				return nil
			}
			results[i] = artifact
			return nil
		})
	}
	// Collector errors are swallowed above; only context cancellation can
	// surface here.
	if err := g.Wait(); err != nil {
		e.logger.Warn("collection cancelled", "session_id", session.SessionID, "error", err)
	}

	var artifacts []model.EvidenceArtifact
	var sources []string
	for i, r := range results {
		if r == nil {
			continue
		}
		artifacts = append(artifacts, *r)
		sources = append(sources, tasks[i].Collector.Source())
	}

	e.recorder.Record(ctx, audit.Draft{
		ChainID:    chainID(session.SessionID),
		EventType:  model.AuditCollectionRan,
		EntityType: "session",
		EntityID:   session.SessionID.String(),
		Payload: map[string]any{
			"iteration": iteration,
			"planned":   len(tasks),
			"collected": len(artifacts),
			"failed":    failed,
		},
	})
	return artifacts, sources
}

func (e *Engine) insertIteration(ctx context.Context, record model.InvestigationIteration) error {
	err := storage.WithRetry(ctx, 2, 25*time.Millisecond, func() error {
		return e.store.InsertIteration(ctx, record)
	})
	if err != nil {
		return fmt.Errorf("insert iteration %d: %w", record.Iteration, err)
	}

	e.recorder.Record(ctx, audit.Draft{
		ChainID:    chainID(record.SessionID),
		EventType:  model.AuditIterationRecorded,
		EntityType: "iteration",
		EntityID:   fmt.Sprintf("%s/%d", record.SessionID, record.Iteration),
		Payload: map[string]any{
			"iteration":          record.Iteration,
			"completeness_score": record.CompletenessScore,
			"overall_confidence": record.OverallConfidence,
			"action":             record.Decision.Action,
			"reason":             record.Decision.Reason,
		},
	})
	return nil
}

func (e *Engine) updateSession(ctx context.Context, session model.InvestigationSession) error {
	return storage.WithRetry(ctx, 2, 25*time.Millisecond, func() error {
		return e.store.UpdateSession(ctx, session)
	})
}

func iterationNote(iteration, score int, confidence float64) string {
	return fmt.Sprintf("iteration %d: completeness %d, confidence %.2f", iteration, score, confidence)
}
