package tracking_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/kiranshivaraju/errtrack/internal/tracking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandlerLogger(f *fixture, out *bytes.Buffer) *slog.Logger {
	return slog.New(tracking.NewHandler(slog.NewJSONHandler(out, nil), f.logger))
}

func TestHandler_TracksFlaggedRecords(t *testing.T) {
	f := newFixture(t)
	out := &bytes.Buffer{}
	log := newHandlerLogger(f, out)

	log.Error("Contract 17 not found",
		tracking.AttrTrack, true,
		tracking.AttrEntityType, "contract",
		tracking.AttrEntityID, "C-17",
		"contract_number", "V-17",
	)

	require.Equal(t, 1, f.tracker.callCount())
	p := f.tracker.calls[0]
	assert.Equal(t, "contract", p.EntityType)
	assert.Equal(t, "C-17", p.EntityID)
	assert.Equal(t, "Contract 17 not found", p.Message)
	assert.Equal(t, map[string]any{"contract_number": "V-17"}, p.Details)
	assert.Equal(t, map[string]any{"contract_number": "V-17"}, p.Extensions)

	// The record itself reaches the wrapped handler unchanged.
	logs := lines(t, out)
	require.Len(t, logs, 1)
	assert.Equal(t, true, logs[0]["track"])
	assert.Equal(t, "C-17", logs[0]["entity_id"])
}

func TestHandler_IgnoresUnflaggedAndLowLevels(t *testing.T) {
	f := newFixture(t)
	log := newHandlerLogger(f, &bytes.Buffer{})

	log.Error("no flag", tracking.AttrEntityType, "contract", tracking.AttrEntityID, "C-1")
	log.Info("info", tracking.AttrTrack, true, tracking.AttrEntityType, "contract", tracking.AttrEntityID, "C-1")
	log.Error("flag not bool", tracking.AttrTrack, "yes", tracking.AttrEntityType, "contract", tracking.AttrEntityID, "C-1")
	log.Error("no entity", tracking.AttrTrack, true)

	assert.Equal(t, 0, f.tracker.callCount())
}

func TestHandler_WithAttrsCarriesEntity(t *testing.T) {
	f := newFixture(t)
	log := newHandlerLogger(f, &bytes.Buffer{}).With(
		tracking.AttrEntityType, "tenant",
		tracking.AttrEntityID, 42,
	)

	log.Warn("Tenant email invalid", tracking.AttrTrack, true, "email_domain", "example.com")

	require.Equal(t, 1, f.tracker.callCount())
	assert.Equal(t, "tenant", f.tracker.calls[0].EntityType)
	assert.Equal(t, "42", f.tracker.calls[0].EntityID)
	assert.Equal(t, map[string]any{"email_domain": "example.com"}, f.tracker.calls[0].Extensions)
}

func TestHandler_GroupedAttrsDoNotControlTracking(t *testing.T) {
	f := newFixture(t)
	log := newHandlerLogger(f, &bytes.Buffer{}).WithGroup("upstream")

	log.Error("boom", tracking.AttrTrack, true, tracking.AttrEntityType, "contract", tracking.AttrEntityID, "C-1")
	assert.Equal(t, 0, f.tracker.callCount())

	log = newHandlerLogger(f, &bytes.Buffer{})
	log.Error("Contract not found",
		tracking.AttrTrack, true,
		tracking.AttrEntityType, "contract",
		tracking.AttrEntityID, "C-1",
		slog.Group("http", slog.Int("status", 404)),
	)
	require.Equal(t, 1, f.tracker.callCount())
	assert.Equal(t, map[string]any{"http.status": int64(404)}, f.tracker.calls[0].Details)
}

func TestHandler_TrackingFailureDoesNotFailHandle(t *testing.T) {
	f := newFixture(t)
	f.tracker.panics = true
	out := &bytes.Buffer{}

	h := tracking.NewHandler(slog.NewJSONHandler(out, nil), f.logger)
	r := slog.NewRecord(time.Time{}, slog.LevelError, "boom", 0)
	r.AddAttrs(slog.Bool("track", true), slog.String("entity_type", "webhook"), slog.String("entity_id", "W-1"))

	assert.NoError(t, h.Handle(context.Background(), r))
	assert.NotEmpty(t, out.String())
	assert.Contains(t, f.side.String(), "tracker exploded")
}
