// Package tracking routes flagged log calls into error tracking. Tracking
// failures are isolated: they are written to a side-channel logger and
// counted, never returned to or raised in the caller.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/kiranshivaraju/errtrack/internal/classifier"
	"github.com/kiranshivaraju/errtrack/internal/metrics"
	"github.com/kiranshivaraju/errtrack/internal/store"
	"github.com/kiranshivaraju/errtrack/pkg/models"
)

// Attribute keys recognized by Handler.
const (
	AttrTrack      = "track"
	AttrEntityType = "entity_type"
	AttrEntityID   = "entity_id"
)

// ClassifierSource resolves entity types. *classifier.Factory satisfies it.
type ClassifierSource interface {
	Create(entityType string) (classifier.Classifier, error)
}

// Entry is one log call.
type Entry struct {
	Level      slog.Level
	Message    string
	Context    map[string]any
	EntityType string
	EntityID   string
	Track      bool
}

// Option adjusts an Entry built by the level helpers.
type Option func(*Entry)

// WithEntity attaches the entity the message is about.
func WithEntity(entityType, entityID string) Option {
	return func(e *Entry) {
		e.EntityType = entityType
		e.EntityID = entityID
	}
}

// Tracked requests error tracking for the entry.
func Tracked() Option {
	return func(e *Entry) {
		e.Track = true
	}
}

// Logger writes every entry to a plain logger and tracks qualifying ones.
type Logger struct {
	plain       *slog.Logger
	side        *slog.Logger
	classifiers ClassifierSource
	metrics     *metrics.Metrics
}

// NewLogger builds a Logger. A nil plain logger means slog.Default(); a
// nil side logger writes JSON to stderr. m may be nil.
func NewLogger(plain, side *slog.Logger, classifiers ClassifierSource, m *metrics.Metrics) *Logger {
	if plain == nil {
		plain = slog.Default()
	}
	if side == nil {
		side = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return &Logger{
		plain:       plain,
		side:        side,
		classifiers: classifiers,
		metrics:     m,
	}
}

// Log writes e to the plain logger and, when e asks for tracking at warn
// level or above with a complete entity reference, records it. It returns
// the tracking result, or nil when nothing was tracked.
func (l *Logger) Log(ctx context.Context, e Entry) *models.TrackResult {
	l.plain.LogAttrs(ctx, e.Level, e.Message, entryAttrs(e)...)
	if !shouldTrack(e) {
		return nil
	}
	return l.track(ctx, e)
}

func (l *Logger) Error(ctx context.Context, msg string, fields map[string]any, opts ...Option) *models.TrackResult {
	return l.Log(ctx, newEntry(slog.LevelError, msg, fields, opts))
}

func (l *Logger) Warn(ctx context.Context, msg string, fields map[string]any, opts ...Option) *models.TrackResult {
	return l.Log(ctx, newEntry(slog.LevelWarn, msg, fields, opts))
}

// Info never tracks, whatever the options say.
func (l *Logger) Info(ctx context.Context, msg string, fields map[string]any, opts ...Option) *models.TrackResult {
	return l.Log(ctx, newEntry(slog.LevelInfo, msg, fields, opts))
}

func newEntry(level slog.Level, msg string, fields map[string]any, opts []Option) Entry {
	e := Entry{Level: level, Message: msg, Context: fields}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

func shouldTrack(e Entry) bool {
	return e.Track && e.Level >= slog.LevelWarn && e.EntityType != "" && e.EntityID != ""
}

func (l *Logger) track(ctx context.Context, e Entry) (res *models.TrackResult) {
	defer func() {
		if r := recover(); r != nil {
			l.fail(ctx, e, metrics.ReasonPanic, fmt.Errorf("panic: %v", r))
			res = nil
		}
	}()

	c, err := l.classifiers.Create(e.EntityType)
	if err != nil {
		l.fail(ctx, e, failureReason(err), err)
		return nil
	}

	res, err = c.Track(ctx, e.EntityID, e.Message, e.Context)
	if err != nil {
		l.fail(ctx, e, failureReason(err), err)
		return nil
	}

	l.metrics.RecordTracked(c.EntityType(), res.IsNew)
	if res.IsNew {
		l.plain.LogAttrs(ctx, slog.LevelInfo, "new error tracked",
			slog.String("error_id", res.ErrorID.String()),
			slog.String("fingerprint", res.Fingerprint),
			slog.String(AttrEntityType, c.EntityType()),
			slog.String(AttrEntityID, e.EntityID),
		)
	}
	return res
}

// fail reports a tracking failure on the side channel only.
func (l *Logger) fail(ctx context.Context, e Entry, reason string, err error) {
	l.metrics.RecordTrackingFailure(e.EntityType, reason)
	l.side.LogAttrs(ctx, slog.LevelError, "error tracking failed",
		slog.String(AttrEntityType, e.EntityType),
		slog.String(AttrEntityID, e.EntityID),
		slog.String("reason", reason),
		slog.String("message", e.Message),
		slog.String("error", err.Error()),
	)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, classifier.ErrUnsupportedEntityType):
		return metrics.ReasonUnsupportedEntityType
	case errors.Is(err, store.ErrValidation):
		return metrics.ReasonValidation
	case errors.Is(err, store.ErrPersistence):
		return metrics.ReasonPersistence
	default:
		return metrics.ReasonOther
	}
}

// entryAttrs renders the entity reference and context in key order. The
// track key is dropped so a Handler downstream cannot track the entry a
// second time.
func entryAttrs(e Entry) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(e.Context)+2)
	if e.EntityType != "" {
		attrs = append(attrs, slog.String(AttrEntityType, e.EntityType))
	}
	if e.EntityID != "" {
		attrs = append(attrs, slog.String(AttrEntityID, e.EntityID))
	}

	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		if k == AttrTrack || k == AttrEntityType || k == AttrEntityID {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, e.Context[k]))
	}
	return attrs
}
