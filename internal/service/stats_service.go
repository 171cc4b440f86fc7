package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/revuehq/revue-api/internal/dto"
	"github.com/revuehq/revue-api/internal/insights"
	"github.com/revuehq/revue-api/internal/models"
	appErrors "github.com/revuehq/revue-api/pkg/errors"
)

// StatsRepository describes the persistence layer required by StatsService.
type StatsRepository interface {
	ListSince(ctx context.Context, cutoff *time.Time) ([]models.ReviewItem, error)
}

// StatsService computes review KPIs and daily trend buckets, cached in
// Redis with a short TTL.
type StatsService struct {
	repo    StatsRepository
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	ttl     time.Duration
	now     func() time.Time
}

// NewStatsService constructs a stats service.
func NewStatsService(repo StatsRepository, cache *CacheService, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &StatsService{
		repo:    repo,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Metrics returns the KPI summary and daily buckets for the requested
// range. The boolean indicates whether the payload came from cache.
func (s *StatsService) Metrics(ctx context.Context, rng insights.Range) (*dto.MetricsResponse, bool, error) {
	if !rng.Valid() {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "range must be one of 7d, 30d, all")
	}

	cacheKey := fmt.Sprintf("metrics:%s", rng)
	var cached dto.MetricsResponse
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
			return nil, false, fmt.Errorf("get metrics cache: %w", err)
		} else if hit {
			return &cached, true, nil
		}
	}

	now := s.now()
	var cutoff *time.Time
	if days := rng.Days(); days > 0 {
		t := now.AddDate(0, 0, -days)
		cutoff = &t
	}

	start := time.Now()
	items, err := s.repo.ListSince(ctx, cutoff)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review items for metrics")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("stats_metrics", time.Since(start))
	}

	kpis, daily := insights.Aggregate(items, rng, now)
	response := &dto.MetricsResponse{Range: string(rng), KPIs: kpis, Daily: daily}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, response, s.ttl); err != nil {
			s.logger.Warn("cache metrics", zap.Error(err))
		}
	}
	return response, false, nil
}

// System returns the runtime instrumentation snapshot.
func (s *StatsService) System() models.SystemMetrics {
	if s.metrics == nil {
		return models.SystemMetrics{}
	}
	return s.metrics.Snapshot()
}
