package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/errtrack/internal/fingerprint"
	"github.com/kiranshivaraju/errtrack/pkg/models"
	_ "modernc.org/sqlite"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

// SQLiteStore implements the Store interface on an embedded SQLite
// database. It suits single-host deployments and tests; processes sharing
// the file are serialized by SQLite's own locking.
type SQLiteStore struct {
	db   *sql.DB
	opts options
}

// NewSQLiteStore opens (creating if needed) the database at path and applies
// the schema. Use ":memory:" for a private in-memory database.
//
// Timestamps are written as UTC text in a fixed layout, so SQL comparisons
// and MAX() on them order chronologically.
func NewSQLiteStore(path string, opts ...Option) (*SQLiteStore, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; one connection also keeps an in-memory
	// database alive for the life of the store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db, opts: newOptions(opts)}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Tracking ---

// TrackError follows the same insert-then-increment protocol as
// PostgresStore.TrackError.
func (s *SQLiteStore) TrackError(ctx context.Context, p TrackParams) (*models.TrackResult, error) {
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

func (s *SQLiteStore) insertRecord(ctx context.Context, fp string, p TrackParams, details []byte, now time.Time) (*models.TrackResult, error) {
	id := uuid.New()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO error_records (id, entity_type, entity_id, fingerprint, message, category, details,
		   first_occurrence, last_occurrence, occurrence_count, status, status_changed_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
		 ON CONFLICT (fingerprint) DO NOTHING`,
		id, p.EntityType, p.EntityID, fp, p.Message, string(p.Category), nullableText(details),
		now, now, string(models.StatusActive), now, now)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errConflictOnInsert
	}
	return &models.TrackResult{ErrorID: id, IsNew: true, Fingerprint: fp, OccurrenceCount: 1}, nil
}

func (s *SQLiteStore) incrementRecord(ctx context.Context, fp string, now time.Time) (*models.TrackResult, error) {
	res := models.TrackResult{Fingerprint: fp}
	err := s.db.QueryRowContext(ctx,
		`UPDATE error_records SET
		   occurrence_count = occurrence_count + 1,
		   last_occurrence = MAX(last_occurrence, ?),
		   updated_at = ?
		 WHERE fingerprint = ?
		 RETURNING id, occurrence_count`,
		now, now, fp,
	).Scan(&res.ErrorID, &res.OccurrenceCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *SQLiteStore) saveExtensions(ctx context.Context, errorID uuid.UUID, exts map[string]any) error {
	keys := make([]string, 0, len(exts))
	for k := range exts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := s.opts.timestamp()
	for _, k := range keys {
		value, err := marshalValue(exts[k])
		if err != nil {
			return fmt.Errorf("encode extension %q: %w", k, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO error_extensions (id, error_id, key, value, created_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (error_id, key) DO UPDATE SET value = excluded.value`,
			uuid.New(), errorID, k, nullableText(value), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// --- Queries ---

func (s *SQLiteStore) GetErrors(ctx context.Context, filter ErrorFilter) ([]*models.ErrorRecord, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}
	where, args := buildWhere(filter, questionPlaceholder)
	limit, offset := filter.Page()
	query := `SELECT ` + recordColumns + ` FROM error_records WHERE ` + where + listOrder(filter) + ` LIMIT ? OFFSET ?`
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

func (s *SQLiteStore) GetError(ctx context.Context, id uuid.UUID) (*models.ErrorRecord, error) {
	records, err := s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM error_records WHERE id = ?`, id)
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

// queryRecords closes its rows before returning; with a single connection
// a follow-up query would otherwise block.
func (s *SQLiteStore) queryRecords(ctx context.Context, query string, args ...any) ([]*models.ErrorRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
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

func (s *SQLiteStore) loadExtensions(ctx context.Context, records []*models.ErrorRecord) error {
	if len(records) == 0 {
		return nil
	}
	marks := make([]string, len(records))
	args := make([]any, len(records))
	for i, r := range records {
		marks[i] = "?"
		args[i] = r.ID
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT error_id, key, value FROM error_extensions
		 WHERE error_id IN (`+strings.Join(marks, ", ")+`) ORDER BY error_id, key`, args...)
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

func (s *SQLiteStore) GetErrorStats(ctx context.Context, filter ErrorFilter) (*models.ErrorStats, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}
	where, args := buildWhere(filter, questionPlaceholder)

	stats := &models.ErrorStats{}
	err := s.db.QueryRowContext(ctx, statsSelect("NULL")+` FROM error_records WHERE `+where, args...).
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

func (s *SQLiteStore) queryGroups(ctx context.Context, column, where string, args []any) ([]models.StatsGroup, error) {
	rows, err := s.db.QueryContext(ctx, statsSelect(column)+` FROM error_records WHERE `+where+
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

func (s *SQLiteStore) ResolveError(ctx context.Context, id uuid.UUID, notes string) error {
	now := s.opts.timestamp()
	res, err := s.db.ExecContext(ctx,
		`UPDATE error_records SET status = ?, resolution_notes = ?,
		   resolved_at = ?, status_changed_at = ?, updated_at = ?
		 WHERE id = ?`,
		string(models.StatusResolved), notes, now, now, now, id)
	if err != nil {
		return persistenceError("resolve error record", err)
	}
	return requireAffected(res)
}

func (s *SQLiteStore) IgnoreError(ctx context.Context, id uuid.UUID, notes string) error {
	now := s.opts.timestamp()
	res, err := s.db.ExecContext(ctx,
		`UPDATE error_records SET status = ?, resolution_notes = ?,
		   resolved_at = NULL, status_changed_at = ?, updated_at = ?
		 WHERE id = ?`,
		string(models.StatusIgnored), notes, now, now, id)
	if err != nil {
		return persistenceError("ignore error record", err)
	}
	return requireAffected(res)
}

func (s *SQLiteStore) CleanOldResolvedErrors(ctx context.Context, daysToKeep int) (int64, error) {
	if err := validateRetention(daysToKeep); err != nil {
		return 0, err
	}
	cutoff := retentionCutoff(s.opts.timestamp(), daysToKeep)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM error_records
		 WHERE status IN (?, ?) AND COALESCE(resolved_at, status_changed_at) < ?`,
		string(models.StatusResolved), string(models.StatusIgnored), cutoff)
	if err != nil {
		return 0, persistenceError("clean old resolved errors", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, persistenceError("clean old resolved errors", err)
	}
	return n, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return persistenceError("rows affected", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// nullableText binds encoded JSON as TEXT, or NULL when empty.
func nullableText(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
