package audit

import (
	"context"
	"log/slog"

	"github.com/rasike-dev/chronosops/internal/model"
)

// Appender appends one event to a chain, atomically allocating its sequence
// number. Implemented by the storage layer.
type Appender interface {
	AppendAuditEvent(ctx context.Context, d Draft) (model.AuditEvent, error)
}

// Recorder is a no-throw wrapper around an Appender. An audit write failure
// is logged and swallowed: evidence capture must never be blocked by
// bookkeeping.
type Recorder struct {
	appender Appender
	logger   *slog.Logger
}

// NewRecorder creates a best-effort audit recorder. appender may be nil,
// in which case every Record call is a logged no-op.
func NewRecorder(appender Appender, logger *slog.Logger) *Recorder {
	return &Recorder{appender: appender, logger: logger}
}

// Record appends an event, best effort. It never returns an error.
func (r *Recorder) Record(ctx context.Context, d Draft) {
	if r.appender == nil {
		r.logger.Debug("audit: no appender configured, dropping event",
			"chain_id", d.ChainID, "event_type", d.EventType)
		return
	}
	if _, err := r.appender.AppendAuditEvent(ctx, d); err != nil {
		r.logger.Warn("audit: append failed (non-fatal)",
			"chain_id", d.ChainID, "event_type", d.EventType, "error", err)
	}
}
