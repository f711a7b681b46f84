package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/errtrack/internal/fingerprint"
	"github.com/kiranshivaraju/errtrack/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
	opts options
}

// NewPostgresStore creates a new PostgresStore. The schema must already be
// migrated (see RunMigrations).
func NewPostgresStore(pool *pgxpool.Pool, opts ...Option) *PostgresStore {
	return &PostgresStore{pool: pool, opts: newOptions(opts)}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Tracking ---

// TrackError records one occurrence of an error. A new fingerprint inserts a
// row; a known one increments its count. Concurrent callers racing on the
// same new fingerprint are serialized by the unique constraint: the loser's
// insert is a no-op and it falls through to the increment.
func (s *PostgresStore) TrackError(ctx context.Context, p TrackParams) (*models.TrackResult, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	fp := fingerprint.Compute(p.EntityType, p.EntityID, p.Message, string(p.Category))

	details, err := marshalJSON(p.Details)
	if err != nil {
		return nil, &ValidationError{Field: "details", Reason: err.Error(), Err: err}
	}

	var result *models.TrackResult
	for attempt := 0; attempt < maxTrackAttempts && result == nil; attempt++ {
		now := s.opts.timestamp()

		result, err = s.insertRecord(ctx, fp, p, details, now)
		if err == nil {
			break
		}
		if !errors.Is(err, errConflictOnInsert) {
			return nil, persistenceError("insert error record", err)
		}

		result, err = s.incrementRecord(ctx, fp, now)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, persistenceError("increment error record", err)
		}
	}
	if result == nil {
		return nil, persistenceError("track error", fmt.Errorf("fingerprint %s vanished during upsert", fp))
	}

	if len(p.Extensions) > 0 {
		if err := s.saveExtensions(ctx, result.ErrorID, p.Extensions); err != nil {
			return nil, persistenceError("save extensions", err)
		}
	}
	return result, nil
}

func (s *PostgresStore) insertRecord(ctx context.Context, fp string, p TrackParams, details []byte, now time.Time) (*models.TrackResult, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx,
		`INSERT INTO error_records (id, entity_type, entity_id, fingerprint, message, category, details,
		   first_occurrence, last_occurrence, occurrence_count, status, status_changed_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, 1, $9, $8, $8)
		 ON CONFLICT (fingerprint) DO NOTHING
		 RETURNING id`,
		uuid.New(), p.EntityType, p.EntityID, fp, p.Message, string(p.Category), details,
		now, string(models.StatusActive),
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) || isDuplicateKeyError(err) {
		return nil, errConflictOnInsert
	}
	if err != nil {
		return nil, err
	}
	return &models.TrackResult{ErrorID: id, IsNew: true, Fingerprint: fp, OccurrenceCount: 1}, nil
}

func (s *PostgresStore) incrementRecord(ctx context.Context, fp string, now time.Time) (*models.TrackResult, error) {
	res := models.TrackResult{Fingerprint: fp}
	err := s.pool.QueryRow(ctx,
		`UPDATE error_records SET
		   occurrence_count = occurrence_count + 1,
		   last_occurrence = GREATEST(last_occurrence, $2),
		   updated_at = $2
		 WHERE fingerprint = $1
		 RETURNING id, occurrence_count`,
		fp, now,
	).Scan(&res.ErrorID, &res.OccurrenceCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *PostgresStore) saveExtensions(ctx context.Context, errorID uuid.UUID, exts map[string]any) error {
	keys := make([]string, 0, len(exts))
	for k := range exts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	now := s.opts.timestamp()
	batch := &pgx.Batch{}
	for _, k := range keys {
		value, err := marshalValue(exts[k])
		if err != nil {
			return fmt.Errorf("encode extension %q: %w", k, err)
		}
		batch.Queue(
			`INSERT INTO error_extensions (id, error_id, key, value, created_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (error_id, key) DO UPDATE SET value = EXCLUDED.value`,
			uuid.New(), errorID, k, value, now)
	}
	return s.pool.SendBatch(ctx, batch).Close()
}

// --- Queries ---

func (s *PostgresStore) GetErrors(ctx context.Context, filter ErrorFilter) ([]*models.ErrorRecord, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}
	where, args := buildWhere(filter, dollarPlaceholder)
	limit, offset := filter.Page()
	query := fmt.Sprintf(`SELECT %s FROM error_records WHERE %s%s LIMIT $%d OFFSET $%d`,
		recordColumns, where, listOrder(filter), len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	records, err := s.queryRecords(ctx, query, args...)
	if err != nil {
		return nil, persistenceError("list error records", err)
	}
	if err := s.loadExtensions(ctx, records); err != nil {
		return nil, persistenceError("load extensions", err)
	}
	return records, nil
}

func (s *PostgresStore) GetError(ctx context.Context, id uuid.UUID) (*models.ErrorRecord, error) {
	records, err := s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM error_records WHERE id = $1`, id)
	if err != nil {
		return nil, persistenceError("get error record", err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	if err := s.loadExtensions(ctx, records); err != nil {
		return nil, persistenceError("load extensions", err)
	}
	return records[0], nil
}

func (s *PostgresStore) queryRecords(ctx context.Context, query string, args ...any) ([]*models.ErrorRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []*models.ErrorRecord{}
	for rows.Next() {
		var r models.ErrorRecord
		var details []byte
		if err := rows.Scan(&r.ID, &r.EntityType, &r.EntityID, &r.Fingerprint, &r.Message,
			&r.Category, &details, &r.FirstOccurrence, &r.LastOccurrence, &r.OccurrenceCount,
			&r.Status, &r.ResolutionNotes, &r.ResolvedAt, &r.StatusChangedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan error record: %w", err)
		}
		if r.Details, err = unmarshalDetails(details); err != nil {
			return nil, err
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}

func (s *PostgresStore) loadExtensions(ctx context.Context, records []*models.ErrorRecord) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID.String()
	}

	rows, err := s.pool.Query(ctx,
		`SELECT error_id, key, value FROM error_extensions
		 WHERE error_id = ANY($1::uuid[]) ORDER BY error_id, key`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	exts := make(map[string]map[string]any)
	for rows.Next() {
		var errorID uuid.UUID
		var key string
		var raw []byte
		if err := rows.Scan(&errorID, &key, &raw); err != nil {
			return fmt.Errorf("scan extension: %w", err)
		}
		v, err := unmarshalValue(raw)
		if err != nil {
			return err
		}
		if exts[errorID.String()] == nil {
			exts[errorID.String()] = make(map[string]any)
		}
		exts[errorID.String()][key] = v
	}
	if err := rows.Err(); err != nil {
		return err
	}
	attachExtensions(records, exts)
	return nil
}

// --- Statistics ---

func (s *PostgresStore) GetErrorStats(ctx context.Context, filter ErrorFilter) (*models.ErrorStats, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}
	where, args := buildWhere(filter, dollarPlaceholder)

	stats := &models.ErrorStats{}
	err := s.pool.QueryRow(ctx, statsSelect("NULL")+` FROM error_records WHERE `+where, args...).
		Scan(&stats.General.Key, &stats.General.TotalErrors, &stats.General.UniqueEntityTypes,
			&stats.General.UniqueEntities, &stats.General.TotalOccurrences, &stats.General.AverageOccurrences)
	if err != nil {
		return nil, persistenceError("general error stats", err)
	}

	if stats.ByEntityType, err = s.queryGroups(ctx, "entity_type", where, args); err != nil {
		return nil, persistenceError("error stats by entity type", err)
	}
	if stats.ByCategory, err = s.queryGroups(ctx, "category", where, args); err != nil {
		return nil, persistenceError("error stats by category", err)
	}
	return stats, nil
}

func (s *PostgresStore) queryGroups(ctx context.Context, column, where string, args []any) ([]models.StatsGroup, error) {
	rows, err := s.pool.Query(ctx, statsSelect(column)+` FROM error_records WHERE `+where+
		` GROUP BY `+column+` ORDER BY COUNT(*) DESC, `+column, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := []models.StatsGroup{}
	for rows.Next() {
		var g models.StatsGroup
		if err := rows.Scan(&g.Key, &g.TotalErrors, &g.UniqueEntityTypes, &g.UniqueEntities,
			&g.TotalOccurrences, &g.AverageOccurrences); err != nil {
			return nil, fmt.Errorf("scan stats group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// --- Lifecycle ---

func (s *PostgresStore) ResolveError(ctx context.Context, id uuid.UUID, notes string) error {
	now := s.opts.timestamp()
	tag, err := s.pool.Exec(ctx,
		`UPDATE error_records SET status = $2, resolution_notes = $3,
		   resolved_at = $4, status_changed_at = $4, updated_at = $4
		 WHERE id = $1`,
		id, string(models.StatusResolved), notes, now)
	if err != nil {
		return persistenceError("resolve error record", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) IgnoreError(ctx context.Context, id uuid.UUID, notes string) error {
	now := s.opts.timestamp()
	tag, err := s.pool.Exec(ctx,
		`UPDATE error_records SET status = $2, resolution_notes = $3,
		   resolved_at = NULL, status_changed_at = $4, updated_at = $4
		 WHERE id = $1`,
		id, string(models.StatusIgnored), notes, now)
	if err != nil {
		return persistenceError("ignore error record", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CleanOldResolvedErrors deletes terminal records whose terminal timestamp
// is older than daysToKeep days. Extensions go with them via ON DELETE CASCADE.
func (s *PostgresStore) CleanOldResolvedErrors(ctx context.Context, daysToKeep int) (int64, error) {
	if err := validateRetention(daysToKeep); err != nil {
		return 0, err
	}
	cutoff := retentionCutoff(s.opts.timestamp(), daysToKeep)
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM error_records
		 WHERE status IN ($1, $2) AND COALESCE(resolved_at, status_changed_at) < $3`,
		string(models.StatusResolved), string(models.StatusIgnored), cutoff)
	if err != nil {
		return 0, persistenceError("clean old resolved errors", err)
	}
	return tag.RowsAffected(), nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
