package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kiranshivaraju/errtrack/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFilter_Page(t *testing.T) {
	tests := []struct {
		name       string
		filter     ErrorFilter
		wantLimit  int
		wantOffset int
	}{
		{"defaults", ErrorFilter{}, defaultListLimit, 0},
		{"explicit", ErrorFilter{Limit: 5, Offset: 10}, 5, 10},
		{"clamped", ErrorFilter{Limit: 5000}, maxListLimit, 0},
		{"negative", ErrorFilter{Limit: -1, Offset: -3}, defaultListLimit, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, offset := tt.filter.Page()
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}

func TestBuildWhere(t *testing.T) {
	where, args := buildWhere(ErrorFilter{}, dollarPlaceholder)
	assert.Equal(t, "1 = 1", where)
	assert.Empty(t, args)

	after := time.Date(2024, 1, 1, 0, 0, 0, 0, time.FixedZone("CET", 3600))
	where, args = buildWhere(ErrorFilter{
		EntityType:     "contract",
		Status:         models.StatusActive,
		OccurredAfter:  after,
		MinOccurrences: 3,
	}, dollarPlaceholder)
	assert.Equal(t, "entity_type = $1 AND status = $2 AND last_occurrence >= $3 AND occurrence_count >= $4", where)
	assert.Equal(t, []any{"contract", "active", after.UTC(), 3}, args)

	where, _ = buildWhere(ErrorFilter{EntityID: "1", Category: models.CategoryAPI}, questionPlaceholder)
	assert.Equal(t, "entity_id = ? AND category = ?", where)
}

func TestListOrder(t *testing.T) {
	assert.Equal(t, recentOrder, listOrder(ErrorFilter{}))
	assert.Equal(t, occurrenceOrder, listOrder(ErrorFilter{OrderBy: OrderOccurrences}))
}

func TestErrorFilter_ValidateOrder(t *testing.T) {
	assert.NoError(t, ErrorFilter{OrderBy: OrderOccurrences}.validate())
	err := ErrorFilter{OrderBy: "random"}.validate()
	assert.ErrorIs(t, err, ErrValidation)
}

func TestErrors_Matching(t *testing.T) {
	cause := errors.New("boom")
	ve := &ValidationError{Field: "entity_type", Reason: "unsupported", Err: cause}
	assert.ErrorIs(t, ve, ErrValidation)
	assert.ErrorIs(t, ve, cause)
	assert.Equal(t, "invalid entity_type: unsupported", ve.Error())

	pe := persistenceError("insert error record", cause)
	assert.ErrorIs(t, pe, ErrPersistence)
	assert.ErrorIs(t, pe, cause)
	assert.NotErrorIs(t, pe, ErrValidation)
	assert.Equal(t, "insert error record: boom", pe.Error())
}

func TestTrackParams_ValidateExtensionKeys(t *testing.T) {
	p := TrackParams{
		EntityType: "contract",
		EntityID:   "1",
		Message:    "m",
		Category:   models.CategoryData,
		Extensions: map[string]any{"": "x"},
	}
	err := p.validate()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "extensions", ve.Field)
}

func TestSQLiteStore_CleanupCascadesExtensions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	clock := now.Add(-60 * 24 * time.Hour)

	s, err := NewSQLiteStore(":memory:", WithClock(func() time.Time { return clock }))
	require.NoError(t, err)
	defer s.Close()

	res, err := s.TrackError(ctx, TrackParams{
		EntityType: "payment",
		EntityID:   "P-1",
		Message:    "Card declined",
		Category:   models.CategoryAPI,
		Extensions: map[string]any{"payment_id": "P-1", "amount": 12.5},
	})
	require.NoError(t, err)
	require.NoError(t, s.ResolveError(ctx, res.ErrorID, "retried"))

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM error_extensions`).Scan(&count))
	assert.Equal(t, 2, count)

	clock = now
	n, err := s.CleanOldResolvedErrors(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM error_extensions`).Scan(&count))
	assert.Equal(t, 0, count)
}
