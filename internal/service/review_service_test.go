package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/revuehq/revue-api/internal/dto"
	"github.com/revuehq/revue-api/internal/models"
	appErrors "github.com/revuehq/revue-api/pkg/errors"
)

type mockReviewRepo struct {
	items       map[string]models.ReviewItem
	listItems   []models.ReviewItem
	listCalls   int
	updateCalls int
	updateErr   map[string]error
}

func (m *mockReviewRepo) FindByID(_ context.Context, id string) (*models.ReviewItem, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &item, nil
}

func (m *mockReviewRepo) List(_ context.Context, _ models.ReviewItemFilter) ([]models.ReviewItem, int, error) {
	m.listCalls++
	return m.listItems, len(m.listItems), nil
}

func (m *mockReviewRepo) UpdateDecision(_ context.Context, id string, status models.ReviewStatus, feedback *string, now time.Time) (*models.ReviewItem, error) {
	m.updateCalls++
	if err, ok := m.updateErr[id]; ok {
		return nil, err
	}
	item, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	item.Status = status
	item.Feedback = feedback
	item.ReviewedAt = &now
	item.UpdatedAt = now
	m.items[id] = item
	return &item, nil
}

type recordingAuditRepo struct {
	entries []*models.AuditEntry
	err     error
}

func (r *recordingAuditRepo) Create(_ context.Context, entry *models.AuditEntry) error {
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, entry)
	return nil
}

func strPtr(s string) *string { return &s }

func testActor() models.UserInfo {
	return models.UserInfo{ID: "user-1", FullName: "Ada Reviewer", Role: models.RoleReviewer}
}

func TestReviewServiceDecideApprovesAndAudits(t *testing.T) {
	repo := &mockReviewRepo{items: map[string]models.ReviewItem{
		"item-1": {ID: "item-1", Prompt: "p", Output: "o", Model: "gpt-4", Status: models.StatusPending},
	}}
	audits := &recordingAuditRepo{}
	svc := NewReviewService(repo, audits, nil, nil, nil, zap.NewNop())

	item, err := svc.Decide(context.Background(), testActor(), "item-1", dto.DecisionRequest{
		Status:   models.StatusApproved,
		Feedback: strPtr("looks good"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, item.Status)
	require.NotNil(t, item.ReviewedAt)

	require.Len(t, audits.entries, 1)
	entry := audits.entries[0]
	assert.Equal(t, models.AuditActionReviewApproved, entry.Action)
	assert.Equal(t, models.RiskLow, entry.RiskLevel)
	assert.Equal(t, "user-1", entry.ActorID)
	require.NotNil(t, entry.TargetID)
	assert.Equal(t, "item-1", *entry.TargetID)
	assert.Nil(t, entry.GroupID)

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(entry.Metadata, &meta))
	assert.Equal(t, "looks good", meta["feedback"])
}

func TestReviewServiceDecideRejectsPendingStatus(t *testing.T) {
	repo := &mockReviewRepo{items: map[string]models.ReviewItem{}}
	svc := NewReviewService(repo, nil, nil, nil, nil, zap.NewNop())

	_, err := svc.Decide(context.Background(), testActor(), "item-1", dto.DecisionRequest{Status: models.StatusPending})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInvalidStatus.Code, appErr.Code)
	assert.Zero(t, repo.updateCalls)
}

func TestReviewServiceDecideNotFound(t *testing.T) {
	repo := &mockReviewRepo{items: map[string]models.ReviewItem{}}
	svc := NewReviewService(repo, nil, nil, nil, nil, zap.NewNop())

	_, err := svc.Decide(context.Background(), testActor(), "missing", dto.DecisionRequest{Status: models.StatusApproved})
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestReviewServiceDecideAuditFailureDoesNotFailDecision(t *testing.T) {
	repo := &mockReviewRepo{items: map[string]models.ReviewItem{
		"item-1": {ID: "item-1", Status: models.StatusPending},
	}}
	audits := &recordingAuditRepo{err: errors.New("db down")}
	svc := NewReviewService(repo, audits, nil, nil, nil, zap.NewNop())

	item, err := svc.Decide(context.Background(), testActor(), "item-1", dto.DecisionRequest{Status: models.StatusRejected})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, item.Status)
}

func TestReviewServiceDecideBulkWritesOneGroupedEntry(t *testing.T) {
	repo := &mockReviewRepo{items: map[string]models.ReviewItem{
		"a": {ID: "a", Status: models.StatusPending},
		"b": {ID: "b", Status: models.StatusPending},
		"c": {ID: "c", Status: models.StatusPending},
	}}
	audits := &recordingAuditRepo{}
	svc := NewReviewService(repo, audits, nil, nil, nil, zap.NewNop())

	result, err := svc.DecideBulk(context.Background(), testActor(), dto.BulkDecisionRequest{
		IDs:      []string{"a", "b", "c"},
		Status:   models.StatusRejected,
		Feedback: strPtr("off policy"),
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, result.UpdatedIDs)
	assert.Empty(t, result.Failed)

	require.Len(t, audits.entries, 1)
	entry := audits.entries[0]
	assert.Equal(t, models.AuditActionBulkReject, entry.Action)
	assert.Equal(t, models.RiskHigh, entry.RiskLevel)
	require.NotNil(t, entry.GroupID)
	assert.NotEmpty(t, *entry.GroupID)

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(entry.Metadata, &meta))
	assert.Equal(t, float64(3), meta["count"])
	assert.Equal(t, "off policy", meta["feedback"])
}

func TestReviewServiceDecideBulkSingleItemUsesPlainAction(t *testing.T) {
	repo := &mockReviewRepo{items: map[string]models.ReviewItem{
		"a": {ID: "a", Status: models.StatusPending},
	}}
	audits := &recordingAuditRepo{}
	svc := NewReviewService(repo, audits, nil, nil, nil, zap.NewNop())

	_, err := svc.DecideBulk(context.Background(), testActor(), dto.BulkDecisionRequest{
		IDs:    []string{"a"},
		Status: models.StatusApproved,
	})
	require.NoError(t, err)

	require.Len(t, audits.entries, 1)
	assert.Equal(t, models.AuditActionReviewApproved, audits.entries[0].Action)
	assert.Nil(t, audits.entries[0].GroupID)
}

func TestReviewServiceDecideBulkPartialFailureStillSucceeds(t *testing.T) {
	repo := &mockReviewRepo{
		items: map[string]models.ReviewItem{
			"a": {ID: "a", Status: models.StatusPending},
		},
		updateErr: map[string]error{"broken": errors.New("constraint violation")},
	}
	audits := &recordingAuditRepo{}
	svc := NewReviewService(repo, audits, nil, nil, nil, zap.NewNop())

	result, err := svc.DecideBulk(context.Background(), testActor(), dto.BulkDecisionRequest{
		IDs:    []string{"a", "missing", "broken"},
		Status: models.StatusApproved,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, result.UpdatedIDs)
	require.Len(t, result.Failed, 2)
	assert.Equal(t, "missing", result.Failed[0].ID)
	assert.Equal(t, "not found", result.Failed[0].Reason)
	assert.Equal(t, "broken", result.Failed[1].ID)

	require.Len(t, audits.entries, 1)
	assert.Equal(t, models.AuditActionReviewApproved, audits.entries[0].Action)
}

func TestReviewServiceListCaching(t *testing.T) {
	repo := &mockReviewRepo{listItems: []models.ReviewItem{{ID: "a"}, {ID: "b"}}}
	cacheRepo := &stubCacheRepo{}
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewReviewService(repo, nil, cacheSvc, nil, nil, zap.NewNop())

	filter := models.ReviewItemFilter{Page: 1, PageSize: 20}

	items, total, fromCache, err := svc.List(context.Background(), filter)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 2, total)
	assert.Len(t, items, 2)

	items, total, fromCache, err = svc.List(context.Background(), filter)
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, 2, total)
	assert.Len(t, items, 2)
	assert.Equal(t, 1, repo.listCalls)
}
