package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/dto"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/models"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/response"
)

type dashboardSrv interface {
	Summary(ctx context.Context, actor *models.JWTClaims) (*dto.DashboardSummary, error)
}

// DashboardHandler serves the admin operational summary.
type DashboardHandler struct {
	dashboard dashboardSrv
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(dashboard dashboardSrv) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Summary godoc
// @Summary Admin dashboard summary
// @Description Aggregated counters for the back-office home screen, served from cache when fresh
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /dashboard/summary [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	summary, err := h.dashboard.Summary(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summary, nil)
}
