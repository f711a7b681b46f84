package models

import (
	"time"

	"github.com/google/uuid"
)

// Category classifies a tracked error. The set is closed.
type Category string

const (
	CategoryAPI        Category = "api_error"
	CategoryValidation Category = "validation_error"
	CategoryData       Category = "data_error"
	CategorySystem     Category = "system_error"
	CategoryPermission Category = "permission_error"
)

// Categories lists every valid category.
var Categories = []Category{
	CategoryAPI,
	CategoryValidation,
	CategoryData,
	CategorySystem,
	CategoryPermission,
}

// Valid reports whether c belongs to the closed category set.
func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// Status is the lifecycle state of an ErrorRecord.
// Resolved and ignored are terminal.
type Status string

const (
	StatusActive   Status = "active"
	StatusResolved Status = "resolved"
	StatusIgnored  Status = "ignored"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusResolved, StatusIgnored:
		return true
	}
	return false
}

// Terminal reports whether no further transition is defined from s.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusIgnored
}

// ErrorRecord is one distinct problem, identified by its fingerprint.
// Repeat occurrences bump OccurrenceCount and LastOccurrence on the same row.
type ErrorRecord struct {
	ID              uuid.UUID      `db:"id"               json:"id"`
	EntityType      string         `db:"entity_type"      json:"entity_type"`
	EntityID        string         `db:"entity_id"        json:"entity_id"`
	Fingerprint     string         `db:"fingerprint"      json:"fingerprint"`
	Message         string         `db:"message"          json:"message"`
	Category        Category       `db:"category"         json:"category"`
	Details         map[string]any `db:"details"          json:"details,omitempty"`
	FirstOccurrence time.Time      `db:"first_occurrence" json:"first_occurrence"`
	LastOccurrence  time.Time      `db:"last_occurrence"  json:"last_occurrence"`
	OccurrenceCount int            `db:"occurrence_count" json:"occurrence_count"`
	Status          Status         `db:"status"           json:"status"`
	ResolutionNotes *string        `db:"resolution_notes" json:"resolution_notes,omitempty"`
	ResolvedAt      *time.Time     `db:"resolved_at"      json:"resolved_at,omitempty"`
	// StatusChangedAt is the time of the last status assignment; for ignored
	// records it is the terminal timestamp used by retention.
	StatusChangedAt time.Time      `db:"status_changed_at" json:"status_changed_at"`
	UpdatedAt       time.Time      `db:"updated_at"        json:"updated_at"`
	Extensions      map[string]any `db:"-"                 json:"extensions"`
}

// ErrorExtension is an entity-specific key/value attached to an ErrorRecord.
// Unique on (ErrorID, Key); deleted together with its record.
type ErrorExtension struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	ErrorID   uuid.UUID `db:"error_id"   json:"error_id"`
	Key       string    `db:"key"        json:"key"`
	Value     any       `db:"value"      json:"value"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TrackResult is returned by every track call.
type TrackResult struct {
	ErrorID         uuid.UUID `json:"error_id"`
	IsNew           bool      `json:"is_new"`
	Fingerprint     string    `json:"fingerprint"`
	OccurrenceCount int       `json:"occurrence_count"`
}
