package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rasike-dev/chronosops/internal/audit"
	"github.com/rasike-dev/chronosops/internal/collect"
	"github.com/rasike-dev/chronosops/internal/engine"
	"github.com/rasike-dev/chronosops/internal/model"
	"github.com/rasike-dev/chronosops/internal/reason"
)

var investigateFlags struct {
	incident    string
	source      string
	signal      string
	windowStart string
	windowEnd   string
	duration    time.Duration
	hints       []string
}

var investigateCmd = &cobra.Command{
	Use:   "investigate",
	Short: "Run a bounded investigation for one incident",
	Long: `Start an investigation session for an incident and follow it to its
terminal state. The loop collects evidence, reasons over it, and stops when
the confidence target is reached, progress stalls, or the iteration cap is
hit. The final session status is printed as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.shutdown(ctx)

		window, err := parseWindow(investigateFlags.windowStart, investigateFlags.windowEnd, investigateFlags.duration)
		if err != nil {
			return err
		}

		recorder := audit.NewRecorder(a.db, a.logger)
		registry := collect.NewSyntheticSet(collect.ModePolicy{
			SafeMode:  a.cfg.SafeMode,
			RealKinds: a.cfg.RealKinds,
		}, a.cfg.CollectorBackends, a.logger)

		var reasoner reason.Reasoner
		if a.cfg.AnthropicAPIKey != "" {
			reasoner, err = reason.NewClient(reason.ClientConfig{
				APIKey:  a.cfg.AnthropicAPIKey,
				Model:   a.cfg.AnthropicModel,
				Timeout: a.cfg.ReasonTimeout,
			}, a.logger)
			if err != nil {
				return err
			}
		} else {
			a.logger.Warn("no Anthropic key configured, using the deterministic stub reasoner")
			reasoner = &reason.Stub{}
		}

		eng, err := engine.New(engine.Config{
			MaxIterations:    a.cfg.MaxIterations,
			ConfidenceTarget: a.cfg.ConfidenceTarget,
			IterationTimeout: a.cfg.IterationTimeout,
			SafeMode:         a.cfg.SafeMode,
		}, a.db, registry, reasoner, recorder, a.logger)
		if err != nil {
			return err
		}

		inv, err := eng.Start(ctx, engine.Params{
			Incident: model.IncidentContext{
				IncidentID: investigateFlags.incident,
				SourceType: investigateFlags.source,
				Window:     window,
				Hints:      investigateFlags.hints,
			},
			Signal: model.ParsePrimarySignal(investigateFlags.signal),
		})
		if err != nil {
			return err
		}
		a.logger.Info("investigation started",
			"session_id", inv.Session.SessionID,
			"incident_id", investigateFlags.incident)

		if err := inv.Wait(ctx); err != nil {
			return fmt.Errorf("wait for session: %w", err)
		}

		view, err := eng.Status(ctx, inv.Session.SessionID)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	},
}

// parseWindow accepts either an explicit start/end pair (RFC 3339) or a
// duration ending now.
func parseWindow(start, end string, dur time.Duration) (model.Window, error) {
	if start == "" && end == "" {
		now := time.Now().UTC()
		return model.Window{Start: now.Add(-dur), End: now}, nil
	}
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return model.Window{}, fmt.Errorf("parse --window-start: %w", err)
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return model.Window{}, fmt.Errorf("parse --window-end: %w", err)
	}
	w := model.Window{Start: s, End: e}
	if !w.Valid() {
		return model.Window{}, fmt.Errorf("window start must be before window end")
	}
	return w, nil
}

func init() {
	investigateCmd.Flags().StringVar(&investigateFlags.incident, "incident", "", "incident identifier (required)")
	investigateCmd.Flags().StringVar(&investigateFlags.source, "source", model.SourceVertexAI, "incident source type (vertex_ai, gemini_api, google_cloud, ...)")
	investigateCmd.Flags().StringVar(&investigateFlags.signal, "signal", "UNKNOWN", "primary signal (LATENCY, ERRORS, UNKNOWN)")
	investigateCmd.Flags().StringVar(&investigateFlags.windowStart, "window-start", "", "incident window start (RFC 3339)")
	investigateCmd.Flags().StringVar(&investigateFlags.windowEnd, "window-end", "", "incident window end (RFC 3339)")
	investigateCmd.Flags().DurationVar(&investigateFlags.duration, "duration", time.Hour, "window length ending now, when start/end are not given")
	investigateCmd.Flags().StringSliceVar(&investigateFlags.hints, "hints", nil, "investigation hints (recent_deploy, config_change, timeouts, new_error_signature)")
	_ = investigateCmd.MarkFlagRequired("incident")
	rootCmd.AddCommand(investigateCmd)
}
