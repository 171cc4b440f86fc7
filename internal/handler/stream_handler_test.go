package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/revuehq/revue-api/internal/models"
	"github.com/revuehq/revue-api/internal/service"
)

func TestStreamHandlerPlan(t *testing.T) {
	repo := &fakeReviewRepo{items: map[string]models.ReviewItem{
		"item-1": {ID: "item-1", Output: "alpha beta gamma delta"},
	}}
	h := NewStreamHandler(service.NewStreamService(repo, 2, 40, zap.NewNop()))

	c, rec := reviewTestContext(t, http.MethodGet, "/reviews/item-1/stream-plan", nil)
	c.Params = gin.Params{{Key: "id", Value: "item-1"}}
	h.Plan(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data models.ChunkPlan `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 40, envelope.Data.DelayMs)
	assert.Equal(t, []string{"alpha beta ", "gamma delta"}, envelope.Data.Chunks)
}

func TestStreamHandlerPlanNotFound(t *testing.T) {
	h := NewStreamHandler(service.NewStreamService(&fakeReviewRepo{}, 2, 40, zap.NewNop()))

	c, rec := reviewTestContext(t, http.MethodGet, "/reviews/missing/stream-plan", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	h.Plan(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
