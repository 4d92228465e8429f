package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rasike-dev/chronosops/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buildChain(t *testing.T, chainID string, n int) []model.AuditEvent {
	t.Helper()
	var events []model.AuditEvent
	var prev *model.AuditEvent
	for i := 0; i < n; i++ {
		ev, err := Next(prev, Draft{
			ChainID:    chainID,
			EventType:  model.AuditIterationRecorded,
			EntityType: "investigation_iteration",
			EntityID:   "iter",
			Payload:    map[string]any{"iteration": i + 1},
		}, time.Date(2026, 3, 10, 9, i, 0, 0, time.UTC))
		require.NoError(t, err)
		events = append(events, ev)
		prev = &events[len(events)-1]
	}
	return events
}

func TestNext_GenesisAndLinkage(t *testing.T) {
	events := buildChain(t, "session-1", 3)

	assert.Equal(t, int64(1), events[0].Seq)
	assert.Equal(t, model.GenesisHash, events[0].PrevHash)
	for i := 1; i < len(events); i++ {
		assert.Equal(t, events[i-1].Seq+1, events[i].Seq)
		assert.Equal(t, events[i-1].Hash, events[i].PrevHash)
	}
}

func TestNext_RejectsCrossChainPrev(t *testing.T) {
	events := buildChain(t, "session-1", 1)
	_, err := Next(&events[0], Draft{ChainID: "session-2", EventType: model.AuditBundleCreated}, time.Now())
	assert.Error(t, err)
}

func TestNext_RequiresChainID(t *testing.T) {
	_, err := Next(nil, Draft{EventType: model.AuditBundleCreated}, time.Now())
	assert.Error(t, err)
}

func TestVerify_EmptyChain(t *testing.T) {
	res := Verify(nil)
	assert.True(t, res.OK)
	assert.Equal(t, 0, res.VerifiedCount)
	assert.Equal(t, int64(-1), res.FirstFailureIndex)
}

func TestVerify_ValidChain(t *testing.T) {
	events := buildChain(t, "session-1", 5)
	res := Verify(events)
	assert.True(t, res.OK)
	assert.Equal(t, 5, res.VerifiedCount)
}

func TestVerify_TamperedPayloadIsLocalized(t *testing.T) {
	for tampered := 0; tampered < 4; tampered++ {
		events := buildChain(t, "session-1", 4)
		events[tampered].Payload["iteration"] = 999

		res := Verify(events)
		assert.False(t, res.OK)
		assert.Equal(t, events[tampered].Seq, res.FirstFailureIndex)
		assert.Equal(t, FailureHashMismatch, res.FirstFailureReason)
		// Everything before the tampered event still counts as verified.
		assert.Equal(t, tampered, res.VerifiedCount)
	}
}

func TestVerify_BrokenLink(t *testing.T) {
	events := buildChain(t, "session-1", 3)
	events[1].PrevHash = "0000000000000000000000000000000000000000000000000000000000000000"
	// Recompute the hash so only the linkage is wrong, not the content.
	h, err := EventHash(events[1])
	require.NoError(t, err)
	events[1].Hash = h

	res := Verify(events)
	assert.False(t, res.OK)
	assert.Equal(t, int64(2), res.FirstFailureIndex)
	assert.Equal(t, FailureBrokenLink, res.FirstFailureReason)
	assert.Equal(t, 1, res.VerifiedCount)
}

func TestVerify_FirstEventMustBeGenesis(t *testing.T) {
	events := buildChain(t, "session-1", 2)
	res := Verify(events[1:])
	assert.False(t, res.OK)
	assert.Equal(t, events[1].Seq, res.FirstFailureIndex)
	assert.Equal(t, FailureBrokenLink, res.FirstFailureReason)
}

func TestVerify_OutOfOrder(t *testing.T) {
	events := buildChain(t, "session-1", 3)
	res := Verify([]model.AuditEvent{events[0], events[2], events[1]})
	assert.False(t, res.OK)
	assert.Equal(t, FailureBadOrder, res.FirstFailureReason)
}

type failingAppender struct{ calls int }

func (f *failingAppender) AppendAuditEvent(ctx context.Context, d Draft) (model.AuditEvent, error) {
	f.calls++
	return model.AuditEvent{}, errors.New("db down")
}

func TestRecorder_SwallowsFailures(t *testing.T) {
	app := &failingAppender{}
	r := NewRecorder(app, testLogger())

	assert.NotPanics(t, func() {
		r.Record(context.Background(), Draft{ChainID: "session-1", EventType: model.AuditBundleCreated})
	})
	assert.Equal(t, 1, app.calls)
}

func TestRecorder_NilAppenderIsNoop(t *testing.T) {
	r := NewRecorder(nil, testLogger())
	assert.NotPanics(t, func() {
		r.Record(context.Background(), Draft{ChainID: "session-1", EventType: model.AuditBundleCreated})
	})
}
