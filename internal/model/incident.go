// Package model defines the core domain types for the investigation engine.
// Types here carry no behavior beyond validation helpers; business logic
// lives in the service packages.
package model

import "time"

// PrimarySignal is the dominant incident symptom category. It biases
// completeness scoring and hypothesis preselection.
type PrimarySignal string

const (
	SignalLatency PrimarySignal = "LATENCY"
	SignalErrors  PrimarySignal = "ERRORS"
	SignalUnknown PrimarySignal = "UNKNOWN"
)

// ParsePrimarySignal maps a raw string to a PrimarySignal, defaulting to UNKNOWN.
func ParsePrimarySignal(s string) PrimarySignal {
	switch PrimarySignal(s) {
	case SignalLatency, SignalErrors:
		return PrimarySignal(s)
	default:
		return SignalUnknown
	}
}

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether the window is well-formed (start strictly before end).
func (w Window) Valid() bool {
	return !w.Start.IsZero() && !w.End.IsZero() && w.Start.Before(w.End)
}

// Duration returns End - Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Contains reports whether other lies entirely within w.
func (w Window) Contains(other Window) bool {
	return !other.Start.Before(w.Start) && !other.End.After(w.End)
}

// IncidentContext describes the incident under investigation. It is owned
// by the caller and read-only to the engine for the lifetime of a session.
type IncidentContext struct {
	IncidentID string   `json:"incident_id"`
	SourceType string   `json:"source_type"`
	Window     Window   `json:"window"`
	Hints      []string `json:"hints,omitempty"`
}

// Source types whose incidents depend on an upstream Google service, making
// external status evidence mandatory for a complete picture.
const (
	SourceVertexAI    = "vertex_ai"
	SourceGeminiAPI   = "gemini_api"
	SourceGoogleCloud = "google_cloud"
)

// RequiresExternalStatus reports whether incidents from this source type
// need Google status page evidence before the picture is considered complete.
func RequiresExternalStatus(sourceType string) bool {
	switch sourceType {
	case SourceVertexAI, SourceGeminiAPI, SourceGoogleCloud:
		return true
	default:
		return false
	}
}
