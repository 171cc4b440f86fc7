package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/revuehq/revue-api/internal/dto"
	"github.com/revuehq/revue-api/internal/models"
	"github.com/revuehq/revue-api/internal/service"
	appErrors "github.com/revuehq/revue-api/pkg/errors"
	"github.com/revuehq/revue-api/pkg/response"
)

// AuditHandler wires HTTP endpoints to the audit service.
type AuditHandler struct {
	service *service.AuditService
}

// NewAuditHandler creates a new handler.
func NewAuditHandler(svc *service.AuditService) *AuditHandler {
	return &AuditHandler{service: svc}
}

// Create godoc
// @Summary Record audit entry
// @Description Record a client-originated audit entry. Risk level is derived server-side.
// @Tags Audit
// @Accept json
// @Produce json
// @Param payload body dto.CreateAuditRequest true "Audit payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /audit [post]
func (h *AuditHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid audit payload"))
		return
	}

	entry, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// List godoc
// @Summary List audit entries
// @Description List audit entries with filtering. Set grouped=true to fold bulk operations under their parent entry.
// @Tags Audit
// @Produce json
// @Param action query string false "Filter by action"
// @Param role query string false "Filter by actor role"
// @Param risk query string false "Filter by risk level"
// @Param search query string false "Search actor, target and action"
// @Param start_date query string false "Start date (RFC3339)"
// @Param end_date query string false "End date (RFC3339)"
// @Param grouped query bool false "Group bulk operations"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /audit [get]
func (h *AuditHandler) List(c *gin.Context) {
	filter, err := auditFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}

	if c.Query("grouped") == "true" {
		grouped, total, err := h.service.ListGrouped(c.Request.Context(), filter)
		if err != nil {
			response.Error(c, err)
			return
		}
		pagination.TotalCount = total
		response.JSON(c, http.StatusOK, grouped, pagination)
		return
	}

	entries, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination.TotalCount = total
	response.JSON(c, http.StatusOK, entries, pagination)
}

// Export godoc
// @Summary Export audit log
// @Description Download the filtered audit log as CSV or PDF
// @Tags Audit
// @Produce octet-stream
// @Param format query string false "Export format (csv, pdf)" default(csv)
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /audit/export [get]
func (h *AuditHandler) Export(c *gin.Context) {
	filter, err := auditFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	format := c.DefaultQuery("format", "csv")

	var payload []byte
	var filename, contentType string
	switch format {
	case "csv":
		payload, filename, err = h.service.ExportCSV(c.Request.Context(), filter)
		contentType = "text/csv"
	case "pdf":
		payload, filename, err = h.service.ExportPDF(c.Request.Context(), filter)
		contentType = "application/pdf"
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}

func auditFilterFromQuery(c *gin.Context) (models.AuditFilter, error) {
	filter := models.AuditFilter{
		Search:    c.Query("search"),
		Page:      parseIntQuery(c, "page", 1),
		PageSize:  parseIntQuery(c, "page_size", 50),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	if raw := c.Query("action"); raw != "" {
		action := models.AuditAction(raw)
		filter.Action = &action
	}
	if raw := c.Query("role"); raw != "" {
		role := models.UserRole(raw)
		filter.UserRole = &role
	}
	if raw := c.Query("risk"); raw != "" {
		risk := models.RiskLevel(raw)
		filter.RiskLevel = &risk
	}
	if raw := c.Query("start_date"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "start_date must be RFC3339")
		}
		filter.StartDate = &ts
	}
	if raw := c.Query("end_date"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "end_date must be RFC3339")
		}
		filter.EndDate = &ts
	}

	return filter, nil
}
