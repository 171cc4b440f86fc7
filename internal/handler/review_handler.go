package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/revuehq/revue-api/internal/dto"
	"github.com/revuehq/revue-api/internal/models"
	"github.com/revuehq/revue-api/internal/service"
	appErrors "github.com/revuehq/revue-api/pkg/errors"
	"github.com/revuehq/revue-api/pkg/response"
)

// ReviewHandler wires HTTP endpoints to the review service.
type ReviewHandler struct {
	service *service.ReviewService
}

// NewReviewHandler creates a new handler.
func NewReviewHandler(svc *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{service: svc}
}

// List godoc
// @Summary List review items
// @Description List review items with filtering, search and pagination
// @Tags Reviews
// @Produce json
// @Param status query string false "Filter by status (PENDING, APPROVED, REJECTED)"
// @Param search query string false "Search prompt and output text"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param sort_by query string false "Sort column"
// @Param sort_order query string false "Sort order (asc, desc)"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /reviews [get]
func (h *ReviewHandler) List(c *gin.Context) {
	filter := models.ReviewItemFilter{
		Search:    c.Query("search"),
		Page:      parseIntQuery(c, "page", 1),
		PageSize:  parseIntQuery(c, "page_size", 20),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.ReviewStatus(raw)
		if !status.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrInvalidStatus, "unknown status filter"))
			return
		}
		filter.Status = &status
	}

	items, total, fromCache, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, items, pagination, map[string]interface{}{"cached": fromCache})
}

// Get godoc
// @Summary Get review item
// @Description Fetch a single review item by ID
// @Tags Reviews
// @Produce json
// @Param id path string true "Review item ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reviews/{id} [get]
func (h *ReviewHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Decide godoc
// @Summary Decide a review item
// @Description Approve or reject a single review item
// @Tags Reviews
// @Accept json
// @Produce json
// @Param id path string true "Review item ID"
// @Param payload body dto.DecisionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reviews/{id}/decision [patch]
func (h *ReviewHandler) Decide(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}

	item, err := h.service.Decide(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// DecideBulk godoc
// @Summary Decide review items in bulk
// @Description Approve or reject multiple review items at once. Partial failures are reported per item.
// @Tags Reviews
// @Accept json
// @Produce json
// @Param payload body dto.BulkDecisionRequest true "Bulk decision payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reviews/bulk-decision [post]
func (h *ReviewHandler) DecideBulk(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.BulkDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk decision payload"))
		return
	}

	result, err := h.service.DecideBulk(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
