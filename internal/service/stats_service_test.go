package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/revuehq/revue-api/internal/insights"
	"github.com/revuehq/revue-api/internal/models"
)

type mockStatsRepo struct {
	items  []models.ReviewItem
	calls  int
	cutoff *time.Time
}

func (m *mockStatsRepo) ListSince(_ context.Context, cutoff *time.Time) ([]models.ReviewItem, error) {
	m.calls++
	m.cutoff = cutoff
	return m.items, nil
}

func TestStatsServiceMetricsComputesKPIs(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	reviewed := now.Add(-2 * time.Hour)
	repo := &mockStatsRepo{items: []models.ReviewItem{
		{ID: "a", Status: models.StatusApproved, CreatedAt: now.Add(-3 * time.Hour), ReviewedAt: &reviewed},
		{ID: "b", Status: models.StatusPending, CreatedAt: now.Add(-1 * time.Hour)},
	}}
	svc := NewStatsService(repo, nil, nil, time.Minute, zap.NewNop())
	svc.now = func() time.Time { return now }

	resp, fromCache, err := svc.Metrics(context.Background(), insights.Range7d)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, "7d", resp.Range)
	assert.Equal(t, 2, resp.KPIs.Total)
	assert.Equal(t, 1, resp.KPIs.Approved)
	assert.Equal(t, 1, resp.KPIs.Pending)

	require.NotNil(t, repo.cutoff)
	assert.Equal(t, now.AddDate(0, 0, -7), *repo.cutoff)
}

func TestStatsServiceMetricsAllRangeHasNoCutoff(t *testing.T) {
	repo := &mockStatsRepo{}
	svc := NewStatsService(repo, nil, nil, time.Minute, zap.NewNop())

	_, _, err := svc.Metrics(context.Background(), insights.RangeAll)
	require.NoError(t, err)
	assert.Nil(t, repo.cutoff)
}

func TestStatsServiceMetricsInvalidRange(t *testing.T) {
	svc := NewStatsService(&mockStatsRepo{}, nil, nil, time.Minute, zap.NewNop())

	_, _, err := svc.Metrics(context.Background(), insights.Range("90d"))
	require.Error(t, err)
}

func TestStatsServiceMetricsCaching(t *testing.T) {
	repo := &mockStatsRepo{items: []models.ReviewItem{{ID: "a", Status: models.StatusPending, CreatedAt: time.Now().UTC()}}}
	cacheSvc := NewCacheService(&stubCacheRepo{}, nil, time.Minute, zap.NewNop(), true)
	svc := NewStatsService(repo, cacheSvc, nil, time.Minute, zap.NewNop())

	_, fromCache, err := svc.Metrics(context.Background(), insights.Range30d)
	require.NoError(t, err)
	assert.False(t, fromCache)

	_, fromCache, err = svc.Metrics(context.Background(), insights.Range30d)
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, 1, repo.calls)
}
