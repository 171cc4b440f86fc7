package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/revuehq/revue-api/internal/insights"
	"github.com/revuehq/revue-api/internal/service"
	"github.com/revuehq/revue-api/pkg/response"
)

// StatsHandler wires HTTP endpoints to the stats service.
type StatsHandler struct {
	service *service.StatsService
}

// NewStatsHandler creates a new handler.
func NewStatsHandler(svc *service.StatsService) *StatsHandler {
	return &StatsHandler{service: svc}
}

// Metrics godoc
// @Summary Review metrics
// @Description KPI summary and daily decision trend for the requested range
// @Tags Metrics
// @Produce json
// @Param range query string false "Time range (7d, 30d, all)" default(7d)
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /metrics/reviews [get]
func (h *StatsHandler) Metrics(c *gin.Context) {
	rng := insights.Range(c.DefaultQuery("range", string(insights.Range7d)))

	resp, fromCache, err := h.service.Metrics(c.Request.Context(), rng)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil, map[string]interface{}{"cached": fromCache})
}

// System godoc
// @Summary System metrics snapshot
// @Description Runtime instrumentation counters
// @Tags Metrics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /metrics/system [get]
func (h *StatsHandler) System(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.System(), nil)
}
