package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-admin-api/internal/models"
	"github.com/noah-isme/attendance-admin-api/pkg/response"
)

type dashboardService interface {
	Dashboard(ctx context.Context) (*models.DashboardSummary, error)
}

// DashboardHandler serves the admin overview.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(svc dashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Show godoc
// @Summary Admin dashboard
// @Description User and session totals with the profile list
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Show(c *gin.Context) {
	summary, err := h.service.Dashboard(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary)
}
