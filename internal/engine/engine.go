// Package engine runs the bounded investigation loop: score evidence
// completeness, preselect candidate hypotheses, reason, gate the model's
// evidence requests, collect approved evidence, and repeat until a stop
// rule fires. Every session terminates with a recorded cause.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/rasike-dev/chronosops/internal/audit"
	"github.com/rasike-dev/chronosops/internal/collect"
	"github.com/rasike-dev/chronosops/internal/model"
	"github.com/rasike-dev/chronosops/internal/policy"
	"github.com/rasike-dev/chronosops/internal/reason"
	"github.com/rasike-dev/chronosops/internal/telemetry"
)

// Store is the persistence surface the loop controller needs. *storage.DB
// satisfies it; tests substitute an in-memory implementation.
type Store interface {
	CreateSession(ctx context.Context, s model.InvestigationSession) (model.InvestigationSession, error)
	UpdateSession(ctx context.Context, s model.InvestigationSession) error
	InsertIteration(ctx context.Context, it model.InvestigationIteration) error
	UpsertBundle(ctx context.Context, b model.EvidenceBundle) (bool, error)
	LatestBundle(ctx context.Context, incidentID string) (model.EvidenceBundle, error)
	InsertAnalysis(ctx context.Context, a model.AnalysisResult) (model.AnalysisResult, error)
	SessionStatus(ctx context.Context, sessionID uuid.UUID) (model.SessionStatusView, error)
}

// Config bounds one engine instance. All sessions started on the instance
// share these limits.
type Config struct {
	MaxIterations    int
	ConfidenceTarget float64
	IterationTimeout time.Duration
	SafeMode         bool
	CreatedBy        string
}

// Engine wires the investigation loop's collaborators together.
type Engine struct {
	cfg      Config
	store    Store
	registry *collect.Registry
	gate     *policy.Gate
	reasoner reason.Reasoner
	recorder *audit.Recorder
	logger   *slog.Logger

	iterationDuration metric.Float64Histogram
	sessionsFinished  metric.Int64Counter
}

// New creates an engine. The recorder may wrap a nil appender when audit
// persistence is not configured.
func New(cfg Config, store Store, registry *collect.Registry, reasoner reason.Reasoner, recorder *audit.Recorder, logger *slog.Logger) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("engine: store is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("engine: collector registry is required")
	}
	if reasoner == nil {
		return nil, fmt.Errorf("engine: reasoner is required")
	}
	if cfg.MaxIterations <= 0 {
		return nil, fmt.Errorf("engine: max iterations must be positive")
	}
	if cfg.ConfidenceTarget <= 0 || cfg.ConfidenceTarget > 1 {
		return nil, fmt.Errorf("engine: confidence target must be in (0,1]")
	}
	if cfg.IterationTimeout <= 0 {
		cfg.IterationTimeout = 2 * time.Minute
	}
	if cfg.CreatedBy == "" {
		cfg.CreatedBy = "chronosops-engine"
	}
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = audit.NewRecorder(nil, logger)
	}

	meter := telemetry.Meter("chronosops/engine")
	iterationDuration, err := meter.Float64Histogram("chronosops.iteration.duration",
		metric.WithDescription("Wall time of one investigation iteration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("engine: create iteration histogram: %w", err)
	}
	sessionsFinished, err := meter.Int64Counter("chronosops.sessions.finished",
		metric.WithDescription("Finished investigation sessions by terminal status"))
	if err != nil {
		return nil, fmt.Errorf("engine: create session counter: %w", err)
	}

	return &Engine{
		cfg:               cfg,
		store:             store,
		registry:          registry,
		gate:              policy.New(policy.LimitsFor(cfg.SafeMode)),
		reasoner:          reasoner,
		recorder:          recorder,
		logger:            logger,
		iterationDuration: iterationDuration,
		sessionsFinished:  sessionsFinished,
	}, nil
}

// Params describes one investigation to run.
type Params struct {
	Incident model.IncidentContext
	Signal   model.PrimarySignal
}

// Investigation is a handle to a running session.
type Investigation struct {
	Session model.InvestigationSession
	done    chan struct{}
}

// Done is closed when the session reaches a terminal state.
func (inv *Investigation) Done() <-chan struct{} { return inv.done }

// Wait blocks until the session terminates or ctx is cancelled.
func (inv *Investigation) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-inv.done:
		return nil
	}
}

// Start validates the incident, persists the session row, and launches the
// loop in a goroutine. It returns as soon as the session exists, so callers
// can observe the investigation while it runs.
func (e *Engine) Start(ctx context.Context, p Params) (*Investigation, error) {
	if p.Incident.IncidentID == "" {
		return nil, fmt.Errorf("engine: incident id is required")
	}
	if !p.Incident.Window.Valid() {
		return nil, fmt.Errorf("engine: incident window is invalid")
	}
	if p.Signal == "" {
		p.Signal = model.SignalUnknown
	}

	session, err := e.store.CreateSession(ctx, model.InvestigationSession{
		IncidentID:       p.Incident.IncidentID,
		Status:           model.StatusRunning,
		MaxIterations:    e.cfg.MaxIterations,
		ConfidenceTarget: e.cfg.ConfidenceTarget,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: create session: %w", err)
	}

	e.recorder.Record(ctx, audit.Draft{
		ChainID:    chainID(session.SessionID),
		EventType:  model.AuditSessionStarted,
		EntityType: "session",
		EntityID:   session.SessionID.String(),
		Payload: map[string]any{
			"incident_id":       p.Incident.IncidentID,
			"source_type":       p.Incident.SourceType,
			"primary_signal":    string(p.Signal),
			"max_iterations":    e.cfg.MaxIterations,
			"confidence_target": e.cfg.ConfidenceTarget,
			"safe_mode":         e.cfg.SafeMode,
		},
	})

	inv := &Investigation{Session: session, done: make(chan struct{})}
	go func() {
		defer close(inv.done)
		e.run(ctx, session, p)
	}()
	return inv, nil
}

// Status returns the operator-facing read model for a session.
func (e *Engine) Status(ctx context.Context, sessionID uuid.UUID) (model.SessionStatusView, error) {
	return e.store.SessionStatus(ctx, sessionID)
}

func chainID(sessionID uuid.UUID) string {
	return "session:" + sessionID.String()
}
