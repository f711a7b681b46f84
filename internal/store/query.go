package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kiranshivaraju/errtrack/pkg/models"
)

const recordColumns = `id, entity_type, entity_id, fingerprint, message, category, details,
	first_occurrence, last_occurrence, occurrence_count, status, resolution_notes,
	resolved_at, status_changed_at, updated_at`

const (
	recentOrder     = ` ORDER BY last_occurrence DESC, occurrence_count DESC, id`
	occurrenceOrder = ` ORDER BY occurrence_count DESC, last_occurrence DESC, id`
)

// listOrder renders the ORDER BY clause for a validated filter.
func listOrder(f ErrorFilter) string {
	if f.OrderBy == OrderOccurrences {
		return occurrenceOrder
	}
	return recentOrder
}

// placeholder renders the n-th (1-based) bind parameter of a dialect.
type placeholder func(n int) string

func dollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

func questionPlaceholder(int) string { return "?" }

// buildWhere renders the filter as a WHERE clause body ("1 = 1" when empty)
// and its bind arguments.
func buildWhere(f ErrorFilter, ph placeholder) (string, []any) {
	var conditions []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, ph(len(args))))
	}

	if f.EntityType != "" {
		add("entity_type = %s", f.EntityType)
	}
	if f.EntityID != "" {
		add("entity_id = %s", f.EntityID)
	}
	if f.Status != "" {
		add("status = %s", string(f.Status))
	}
	if f.Category != "" {
		add("category = %s", string(f.Category))
	}
	if !f.OccurredAfter.IsZero() {
		add("last_occurrence >= %s", f.OccurredAfter.UTC())
	}
	if !f.OccurredBefore.IsZero() {
		add("first_occurrence <= %s", f.OccurredBefore.UTC())
	}
	if f.MinOccurrences > 0 {
		add("occurrence_count >= %s", f.MinOccurrences)
	}

	if len(conditions) == 0 {
		return "1 = 1", nil
	}
	return strings.Join(conditions, " AND "), args
}

// statsSelect renders the aggregate column list shared by both dialects.
// keyExpr is the grouping column, or NULL for the ungrouped totals.
func statsSelect(keyExpr string) string {
	return `SELECT COALESCE(` + keyExpr + `, ''),
		COUNT(*),
		COUNT(DISTINCT entity_type),
		COUNT(DISTINCT entity_id),
		COALESCE(SUM(occurrence_count), 0),
		CAST(COALESCE(AVG(occurrence_count), 0) AS DOUBLE PRECISION)`
}

// marshalJSON encodes v for a JSON column. Nil maps are stored as NULL.
func marshalJSON(v map[string]any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func marshalValue(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalDetails(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode details: %w", err)
	}
	return m, nil
}

func unmarshalValue(raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode extension value: %w", err)
	}
	return v, nil
}

// retentionCutoff returns the instant before which terminal records expire.
func retentionCutoff(now time.Time, daysToKeep int) time.Time {
	return now.AddDate(0, 0, -daysToKeep)
}

func validateRetention(daysToKeep int) error {
	if daysToKeep < 0 {
		return &ValidationError{Field: "days_to_keep", Reason: "must not be negative"}
	}
	return nil
}

// attachExtensions sets every record's Extensions map, empty when none.
func attachExtensions(records []*models.ErrorRecord, exts map[string]map[string]any) {
	for _, r := range records {
		if m, ok := exts[r.ID.String()]; ok {
			r.Extensions = m
			continue
		}
		r.Extensions = map[string]any{}
	}
}
