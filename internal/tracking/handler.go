package tracking

import (
	"context"
	"log/slog"
	"strings"
)

// Handler decorates a slog.Handler so that ordinary slog calls carrying
// track=true, entity_type and entity_id attributes are tracked through a
// Logger. The record always reaches the wrapped handler first.
type Handler struct {
	next   slog.Handler
	logger *Logger
	attrs  []slog.Attr
	groups []string
}

// NewHandler wraps next. Tracking goes through l's classifiers, metrics
// and side channel; l's plain logger receives the new-error notes.
func NewHandler(next slog.Handler, l *Logger) *Handler {
	return &Handler{next: next, logger: l}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	err := h.next.Handle(ctx, r)
	if r.Level < slog.LevelWarn {
		return err
	}

	e := Entry{Level: r.Level, Message: r.Message, Context: map[string]any{}}
	// Scoped attributes already carry their group prefix.
	for _, a := range h.attrs {
		collectAttr(&e, "", a)
	}
	prefix := strings.Join(h.groups, ".")
	r.Attrs(func(a slog.Attr) bool {
		collectAttr(&e, prefix, a)
		return true
	})
	if len(e.Context) == 0 {
		e.Context = nil
	}

	if shouldTrack(e) {
		h.logger.track(ctx, e)
	}
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := strings.Join(h.groups, ".")
	scoped := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	scoped = append(scoped, h.attrs...)
	for _, a := range attrs {
		if prefix != "" {
			a.Key = prefix + "." + a.Key
		}
		scoped = append(scoped, a)
	}
	return &Handler{
		next:   h.next.WithAttrs(attrs),
		logger: h.logger,
		attrs:  scoped,
		groups: h.groups,
	}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	groups := append(append([]string(nil), h.groups...), name)
	return &Handler{
		next:   h.next.WithGroup(name),
		logger: h.logger,
		attrs:  h.attrs,
		groups: groups,
	}
}

// collectAttr folds a into e. Only top-level attributes control tracking;
// grouped ones become dotted context keys.
func collectAttr(e *Entry, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			collectAttr(e, key, ga)
		}
		return
	}

	if prefix == "" {
		switch key {
		case AttrTrack:
			e.Track = a.Value.Kind() == slog.KindBool && a.Value.Bool()
			return
		case AttrEntityType:
			e.EntityType = a.Value.String()
			return
		case AttrEntityID:
			e.EntityID = a.Value.String()
			return
		}
	}
	e.Context[key] = a.Value.Any()
}
