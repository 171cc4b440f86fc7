package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/revuehq/revue-api/internal/middleware"
	"github.com/revuehq/revue-api/internal/models"
	"github.com/revuehq/revue-api/internal/service"
)

type fakeReviewRepo struct {
	items map[string]models.ReviewItem
	list  []models.ReviewItem
}

func (f *fakeReviewRepo) FindByID(_ context.Context, id string) (*models.ReviewItem, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &item, nil
}

func (f *fakeReviewRepo) List(_ context.Context, _ models.ReviewItemFilter) ([]models.ReviewItem, int, error) {
	return f.list, len(f.list), nil
}

func (f *fakeReviewRepo) UpdateDecision(_ context.Context, id string, status models.ReviewStatus, feedback *string, now time.Time) (*models.ReviewItem, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	item.Status = status
	item.Feedback = feedback
	item.ReviewedAt = &now
	f.items[id] = item
	return &item, nil
}

type fakeAuditWriter struct {
	entries []*models.AuditEntry
}

func (f *fakeAuditWriter) Create(_ context.Context, entry *models.AuditEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func reviewTestContext(t *testing.T, method, target string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")

	c.Set(middleware.ContextUserKey, &models.JWTClaims{
		UserID:   "user-1",
		Email:    "ada@example.com",
		FullName: "Ada Reviewer",
		Role:     models.RoleReviewer,
	})
	return c, rec
}

func newReviewHandler(repo *fakeReviewRepo, audits *fakeAuditWriter) *ReviewHandler {
	svc := service.NewReviewService(repo, audits, nil, nil, nil, zap.NewNop())
	return NewReviewHandler(svc)
}

func TestReviewHandlerListRejectsUnknownStatus(t *testing.T) {
	h := newReviewHandler(&fakeReviewRepo{}, nil)

	c, rec := reviewTestContext(t, http.MethodGet, "/reviews?status=WEIRD", nil)
	h.List(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviewHandlerListSuccess(t *testing.T) {
	h := newReviewHandler(&fakeReviewRepo{list: []models.ReviewItem{{ID: "a"}, {ID: "b"}}}, nil)

	c, rec := reviewTestContext(t, http.MethodGet, "/reviews?page=1&page_size=10", nil)
	h.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data       []models.ReviewItem `json:"data"`
		Pagination *models.Pagination  `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data, 2)
	require.NotNil(t, envelope.Pagination)
	assert.Equal(t, 2, envelope.Pagination.TotalCount)
}

func TestReviewHandlerDecide(t *testing.T) {
	repo := &fakeReviewRepo{items: map[string]models.ReviewItem{
		"item-1": {ID: "item-1", Status: models.StatusPending},
	}}
	audits := &fakeAuditWriter{}
	h := newReviewHandler(repo, audits)

	c, rec := reviewTestContext(t, http.MethodPatch, "/reviews/item-1/decision", map[string]interface{}{
		"status":   "APPROVED",
		"feedback": "solid answer",
	})
	c.Params = gin.Params{{Key: "id", Value: "item-1"}}
	h.Decide(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, audits.entries, 1)
	assert.Equal(t, models.AuditActionReviewApproved, audits.entries[0].Action)
	assert.Equal(t, "Ada Reviewer", audits.entries[0].ActorName)
}

func TestReviewHandlerDecideNotFound(t *testing.T) {
	h := newReviewHandler(&fakeReviewRepo{items: map[string]models.ReviewItem{}}, &fakeAuditWriter{})

	c, rec := reviewTestContext(t, http.MethodPatch, "/reviews/missing/decision", map[string]interface{}{"status": "REJECTED"})
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	h.Decide(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReviewHandlerDecideBulkReportsFailures(t *testing.T) {
	repo := &fakeReviewRepo{items: map[string]models.ReviewItem{
		"a": {ID: "a", Status: models.StatusPending},
	}}
	audits := &fakeAuditWriter{}
	h := newReviewHandler(repo, audits)

	c, rec := reviewTestContext(t, http.MethodPost, "/reviews/bulk-decision", map[string]interface{}{
		"ids":    []string{"a", "missing"},
		"status": "REJECTED",
	})
	h.DecideBulk(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data models.BatchDecisionResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, []string{"a"}, envelope.Data.UpdatedIDs)
	require.Len(t, envelope.Data.Failed, 1)
	assert.Equal(t, "missing", envelope.Data.Failed[0].ID)
}
