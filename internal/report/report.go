// Package report serves read models over the error store, caching
// aggregate reports in Redis when a cache is configured.
package report

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/errtrack/internal/cache"
	"github.com/kiranshivaraju/errtrack/internal/store"
	"github.com/kiranshivaraju/errtrack/pkg/models"
)

const (
	DefaultTop = 10
	MaxTop     = 100
)

// Summary is the overview report: aggregate stats plus the active errors
// that recur most.
type Summary struct {
	GeneratedAt  time.Time             `json:"generated_at"`
	Stats        models.ErrorStats     `json:"stats"`
	TopOffenders []*models.ErrorRecord `json:"top_offenders"`
}

// Service wraps a store.Store. Mutations go through it so cached reports
// are invalidated. Cache failures are logged and fall through to the store.
type Service struct {
	store  store.Store
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds a Service. c may be nil to disable caching; a zero ttl
// also disables it.
func NewService(s store.Store, c cache.Cache, ttl time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, cache: c, ttl: ttl, logger: logger, now: time.Now}
}

func (s *Service) ListErrors(ctx context.Context, filter store.ErrorFilter) ([]*models.ErrorRecord, error) {
	return s.store.GetErrors(ctx, filter)
}

func (s *Service) GetError(ctx context.Context, id uuid.UUID) (*models.ErrorRecord, error) {
	return s.store.GetError(ctx, id)
}

// Stats returns aggregate statistics for filter.
func (s *Service) Stats(ctx context.Context, filter store.ErrorFilter) (*models.ErrorStats, error) {
	// Paging and ordering do not affect aggregates.
	filter.Limit, filter.Offset, filter.OrderBy = 0, 0, store.OrderRecent

	var key string
	if gen, ok := s.generation(ctx); ok {
		key = cache.StatsKey(gen, filterHash(filter))
		var cached models.ErrorStats
		if s.load(ctx, key, &cached) {
			return &cached, nil
		}
	}

	stats, err := s.store.GetErrorStats(ctx, filter)
	if err != nil {
		return nil, err
	}
	if key != "" {
		s.save(ctx, key, stats)
	}
	return stats, nil
}

// Summary builds the overview report with up to top repeat offenders.
func (s *Service) Summary(ctx context.Context, top int) (*Summary, error) {
	if top <= 0 {
		top = DefaultTop
	}
	if top > MaxTop {
		top = MaxTop
	}

	var key string
	if gen, ok := s.generation(ctx); ok {
		key = cache.SummaryKey(gen, top)
		var cached Summary
		if s.load(ctx, key, &cached) {
			return &cached, nil
		}
	}

	stats, err := s.store.GetErrorStats(ctx, store.ErrorFilter{})
	if err != nil {
		return nil, err
	}
	active, err := s.store.GetErrors(ctx, store.ErrorFilter{
		Status:         models.StatusActive,
		MinOccurrences: 2,
		OrderBy:        store.OrderOccurrences,
		Limit:          top,
	})
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		GeneratedAt:  s.now().UTC(),
		Stats:        *stats,
		TopOffenders: active,
	}
	if key != "" {
		s.save(ctx, key, summary)
	}
	return summary, nil
}

func (s *Service) ResolveError(ctx context.Context, id uuid.UUID, notes string) error {
	if err := s.store.ResolveError(ctx, id, notes); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) IgnoreError(ctx context.Context, id uuid.UUID, notes string) error {
	if err := s.store.IgnoreError(ctx, id, notes); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Cleanup deletes expired terminal records and returns how many were removed.
func (s *Service) Cleanup(ctx context.Context, daysToKeep int) (int64, error) {
	n, err := s.store.CleanOldResolvedErrors(ctx, daysToKeep)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.invalidate(ctx)
	}
	return n, nil
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.ttl > 0
}

// generation reads the current cache generation. ok is false when caching
// is disabled or unavailable.
func (s *Service) generation(ctx context.Context) (int64, bool) {
	if !s.cacheEnabled() {
		return 0, false
	}
	gen, err := s.cache.Counter(ctx, cache.StatsGenerationKey())
	if err != nil {
		s.logger.WarnContext(ctx, "report cache unavailable", "error", err)
		return 0, false
	}
	return gen, true
}

func (s *Service) load(ctx context.Context, key string, dst any) bool {
	raw, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "report cache read failed", "key", key, "error", err)
		return false
	}
	if !found {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.logger.WarnContext(ctx, "report cache entry corrupt", "key", key, "error", err)
		return false
	}
	return true
}

func (s *Service) save(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.logger.WarnContext(ctx, "report cache encode failed", "key", key, "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "report cache write failed", "key", key, "error", err)
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if !s.cacheEnabled() {
		return
	}
	if _, err := s.cache.Incr(ctx, cache.StatsGenerationKey()); err != nil {
		s.logger.WarnContext(ctx, "report cache invalidation failed", "error", err)
	}
}

func filterHash(f store.ErrorFilter) string {
	raw, err := json.Marshal(f)
	if err != nil {
		// ErrorFilter holds only strings, ints and times.
		raw = []byte(fmt.Sprintf("%+v", f))
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
