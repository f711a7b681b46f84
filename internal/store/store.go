package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/errtrack/pkg/models"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000

	// maxTrackAttempts bounds the insert/update loop of TrackError. A third
	// attempt is only needed when retention cleanup deletes the row between
	// a rejected insert and the follow-up update.
	maxTrackAttempts = 3
)

// Store is the data access interface for tracked errors. All database
// operations go through here. Implementations must be safe for concurrent
// use by multiple goroutines and multiple processes sharing one database.
type Store interface {
	Ping(ctx context.Context) error

	TrackError(ctx context.Context, params TrackParams) (*models.TrackResult, error)
	GetErrors(ctx context.Context, filter ErrorFilter) ([]*models.ErrorRecord, error)
	GetError(ctx context.Context, id uuid.UUID) (*models.ErrorRecord, error)
	GetErrorStats(ctx context.Context, filter ErrorFilter) (*models.ErrorStats, error)

	ResolveError(ctx context.Context, id uuid.UUID, notes string) error
	IgnoreError(ctx context.Context, id uuid.UUID, notes string) error
	CleanOldResolvedErrors(ctx context.Context, daysToKeep int) (int64, error)
}

// TrackParams describes one occurrence of an error.
type TrackParams struct {
	EntityType string
	EntityID   string
	Message    string
	Category   models.Category
	// Details is stored on first occurrence only.
	Details map[string]any
	// Extensions are upserted by key on every occurrence.
	Extensions map[string]any
}

func (p TrackParams) validate() error {
	switch {
	case strings.TrimSpace(p.EntityType) == "":
		return &ValidationError{Field: "entity_type", Reason: "must not be empty"}
	case strings.TrimSpace(p.EntityID) == "":
		return &ValidationError{Field: "entity_id", Reason: "must not be empty"}
	case strings.TrimSpace(p.Message) == "":
		return &ValidationError{Field: "message", Reason: "must not be empty"}
	case !p.Category.Valid():
		return &ValidationError{Field: "category", Reason: "unknown category " + strings.TrimSpace(string(p.Category))}
	}
	for k := range p.Extensions {
		if k == "" {
			return &ValidationError{Field: "extensions", Reason: "keys must not be empty"}
		}
	}
	return nil
}

// Order selects the GetErrors sort order.
type Order string

const (
	// OrderRecent sorts by last occurrence, newest first. It is the default.
	OrderRecent Order = ""
	// OrderOccurrences sorts by occurrence count, highest first, breaking
	// ties by last occurrence.
	OrderOccurrences Order = "occurrences"
)

// ErrorFilter narrows GetErrors and GetErrorStats. Zero values mean "no
// filter". All set fields are AND-combined.
type ErrorFilter struct {
	EntityType string
	EntityID   string
	Status     models.Status
	Category   models.Category
	// OccurredAfter matches records last seen at or after this instant.
	OccurredAfter time.Time
	// OccurredBefore matches records first seen at or before this instant.
	OccurredBefore time.Time
	MinOccurrences int
	OrderBy        Order
	Limit          int
	Offset         int
}

func (f ErrorFilter) validate() error {
	if f.Status != "" && !f.Status.Valid() {
		return &ValidationError{Field: "status", Reason: "unknown status " + string(f.Status)}
	}
	if f.Category != "" && !f.Category.Valid() {
		return &ValidationError{Field: "category", Reason: "unknown category " + string(f.Category)}
	}
	if f.OrderBy != OrderRecent && f.OrderBy != OrderOccurrences {
		return &ValidationError{Field: "order_by", Reason: "unknown order " + string(f.OrderBy)}
	}
	return nil
}

// Page returns the limit and offset GetErrors applies: a zero limit becomes
// the default, larger limits are capped and negative offsets become zero.
func (f ErrorFilter) Page() (limit, offset int) {
	limit = f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset = f.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Option configures a store implementation.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for occurrence, resolution and
// retention timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func newOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) timestamp() time.Time {
	return o.now().UTC()
}
