package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/revuehq/revue-api/internal/service"
	"github.com/revuehq/revue-api/pkg/response"
)

// StreamHandler wires HTTP endpoints to the stream service.
type StreamHandler struct {
	service *service.StreamService
}

// NewStreamHandler creates a new handler.
func NewStreamHandler(svc *service.StreamService) *StreamHandler {
	return &StreamHandler{service: svc}
}

// Plan godoc
// @Summary Stream chunk plan
// @Description Chunk plan clients replay to simulate the item's output as a token stream
// @Tags Streaming
// @Produce json
// @Param id path string true "Review item ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reviews/{id}/stream-plan [get]
func (h *StreamHandler) Plan(c *gin.Context) {
	plan, err := h.service.Plan(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}
