package collect

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rasike-dev/chronosops/internal/canonical"
	"github.com/rasike-dev/chronosops/internal/model"
)

// ModePolicy resolves each collector's completeness mode. Safe mode
// restricts collectors to synthetic output unless the kind is explicitly
// allowlisted; without a configured backend the output is synthetic
// regardless of posture.
type ModePolicy struct {
	SafeMode  bool
	RealKinds map[model.EvidenceKind]bool
}

// Resolve returns the artifact mode for a kind given whether a real backend
// is configured for it.
func (p ModePolicy) Resolve(kind model.EvidenceKind, backendConfigured bool) model.ArtifactMode {
	if !backendConfigured {
		return model.ModeStub
	}
	if p.SafeMode && !p.RealKinds[kind] {
		return model.ModeStub
	}
	return model.ModeReal
}

// Synthetic is the built-in collector for one evidence kind. It produces a
// deterministic summary artifact for the requested scope; the artifact id is
// derived from the scope so recollecting the same scope yields the same
// artifact instead of piling up duplicates.
type Synthetic struct {
	kind   model.EvidenceKind
	mode   model.ArtifactMode
	source string
	logger *slog.Logger
}

// NewSynthetic creates a synthetic collector for kind, tagging its output
// with the resolved mode.
func NewSynthetic(kind model.EvidenceKind, mode model.ArtifactMode, logger *slog.Logger) *Synthetic {
	return &Synthetic{
		kind:   kind,
		mode:   mode,
		source: "synthetic/" + string(kind),
		logger: logger,
	}
}

// NewSyntheticSet builds one synthetic collector per collectable kind with
// modes resolved through the policy. backends reports, per kind, whether a
// real backend is configured.
func NewSyntheticSet(policy ModePolicy, backends map[model.EvidenceKind]bool, logger *slog.Logger) *Registry {
	collectors := make([]Collector, 0, len(model.CollectableKinds))
	for _, kind := range model.CollectableKinds {
		mode := policy.Resolve(kind, backends[kind])
		collectors = append(collectors, NewSynthetic(kind, mode, logger))
	}
	return NewRegistry(collectors...)
}

func (s *Synthetic) Kind() model.EvidenceKind { return s.kind }

func (s *Synthetic) Source() string { return s.source }

// Collect produces the summary artifact for the scope. The id commits to
// kind, incident, and window, so identical scopes are idempotent.
func (s *Synthetic) Collect(ctx context.Context, cc Context) (*model.EvidenceArtifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cc.IncidentID == "" {
		return nil, fmt.Errorf("collect: incident id is required")
	}

	id, err := canonical.Hash(map[string]any{
		"kind":     string(s.kind),
		"incident": cc.IncidentID,
		"start":    cc.Window.Start.UTC().Format(time.RFC3339Nano),
		"end":      cc.Window.End.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("collect: derive artifact id: %w", err)
	}

	art := &model.EvidenceArtifact{
		Kind:       s.kind,
		ArtifactID: fmt.Sprintf("%s-%s", kindSlug(s.kind), id[:12]),
		Title:      artifactTitle(s.kind),
		Summary:    artifactSummary(s.kind, cc),
		Mode:       s.mode,
		Payload: map[string]any{
			"incident_id":  cc.IncidentID,
			"window_start": cc.Window.Start.UTC().Format(time.RFC3339),
			"window_end":   cc.Window.End.UTC().Format(time.RFC3339),
			"hints":        cc.Hints,
			"max_items":    cc.MaxItems,
			"mode":         string(s.mode),
		},
	}
	s.logger.Debug("collect: produced artifact",
		"kind", s.kind, "artifact_id", art.ArtifactID, "mode", s.mode)
	return art, nil
}

func kindSlug(k model.EvidenceKind) string {
	switch k {
	case model.KindMetrics:
		return "metrics"
	case model.KindLogs:
		return "logs"
	case model.KindTraces:
		return "traces"
	case model.KindDeploys:
		return "deploys"
	case model.KindConfig:
		return "config"
	default:
		return "evidence"
	}
}

func artifactTitle(k model.EvidenceKind) string {
	switch k {
	case model.KindMetrics:
		return "Service metrics summary"
	case model.KindLogs:
		return "Log error signature summary"
	case model.KindTraces:
		return "Trace latency breakdown"
	case model.KindDeploys:
		return "Deployment history"
	case model.KindConfig:
		return "Configuration change history"
	default:
		return "Evidence summary"
	}
}

func artifactSummary(k model.EvidenceKind, cc Context) string {
	return fmt.Sprintf("%s for incident %s over %s to %s",
		artifactTitle(k), cc.IncidentID,
		cc.Window.Start.UTC().Format(time.RFC3339),
		cc.Window.End.UTC().Format(time.RFC3339))
}
